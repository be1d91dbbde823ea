package apihttp

import (
	"net/http"
	"net/url"
)

// identifierFromQuery pulls the swarm identifier out of the request. The
// canonical parameter is "magnet" but "id" and "torrent" are accepted as
// aliases for clients that pass a bare info-hash or a descriptor URL.
func identifierFromQuery(q url.Values) string {
	for _, key := range []string{"magnet", "id", "torrent"} {
		if v := q.Get(key); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}

	identifier := identifierFromQuery(r.URL.Query())
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "magnet parameter is required")
		return
	}

	info, err := s.listFiles.Execute(r.Context(), identifier)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
