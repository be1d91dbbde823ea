package apihttp

import (
	"net/http"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
)

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, []domain.SessionSnapshot{})
		return
	}
	snapshots := s.sessions.Snapshot()
	if snapshots == nil {
		snapshots = []domain.SessionSnapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// handleSessionsWS upgrades the connection and streams periodic session
// snapshots until the client disconnects or the hub shuts down.
func (s *Server) handleSessionsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &wsClient{hub: s.wsHub, conn: conn, send: make(chan []byte, 16)}
	s.wsHub.register <- client

	go client.writePump()
	go client.readPump()
}
