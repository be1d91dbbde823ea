package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/TellyCloud/torrent-stream-server/internal/auth"
	"github.com/TellyCloud/torrent-stream-server/internal/domain"
	"github.com/TellyCloud/torrent-stream-server/internal/usecase"
)

type ListFilesUseCase interface {
	Execute(ctx context.Context, identifier string) (usecase.SessionInfo, error)
}

type OpenStreamUseCase interface {
	Execute(ctx context.Context, identifier string, sel usecase.Selection) (usecase.StreamResult, error)
}

// SessionsView exposes the registry's point-in-time session listing.
type SessionsView interface {
	Snapshot() []domain.SessionSnapshot
}

// TokenService issues and verifies the gateway's bearer tokens.
type TokenService interface {
	Issue(user string) (string, error)
	Verify(raw string) (auth.Identity, error)
}

// snapshotInterval is how often the WebSocket hub pushes session snapshots.
const snapshotInterval = 5 * time.Second

type Server struct {
	listFiles      ListFilesUseCase
	openStream     OpenStreamUseCase
	sessions       SessionsView
	tokens         TokenService
	requireAuth    bool
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
	stopBroadcast  context.CancelFunc
}

type ServerOption func(*Server)

func WithOpenStream(uc OpenStreamUseCase) ServerOption {
	return func(s *Server) {
		s.openStream = uc
	}
}

func WithSessionsView(view SessionsView) ServerOption {
	return func(s *Server) {
		s.sessions = view
	}
}

// WithAuth gates the API behind bearer tokens. With required false the gate
// passes every request through and /api/token returns a null token.
func WithAuth(tokens TokenService, required bool) ServerOption {
	return func(s *Server) {
		s.tokens = tokens
		s.requireAuth = required
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func NewServer(listFiles ListFilesUseCase, opts ...ServerOption) *Server {
	s := &Server{listFiles: listFiles}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	broadcastCtx, cancel := context.WithCancel(context.Background())
	s.stopBroadcast = cancel
	if s.sessions != nil {
		go s.broadcastSnapshots(broadcastCtx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/files", s.requireBearer(s.handleFiles))
	mux.HandleFunc("/api/stream", s.requireBearer(s.handleStream))
	mux.HandleFunc("/api/sessions", s.requireBearer(s.handleSessions))
	mux.HandleFunc("/api/sessions/ws", s.requireBearer(s.handleSessionsWS))
	mux.HandleFunc("/api/token", s.handleToken)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "torrent-stream-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops the snapshot broadcaster and disconnects all WebSocket clients.
func (s *Server) Close() {
	if s.stopBroadcast != nil {
		s.stopBroadcast()
	}
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

// broadcastSnapshots periodically pushes the registry's session snapshots to
// connected WebSocket clients.
func (s *Server) broadcastSnapshots(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wsHub.Broadcast("sessions", s.sessions.Snapshot())
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
