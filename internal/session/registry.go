package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
	"github.com/TellyCloud/torrent-stream-server/internal/domain/ports"
	"github.com/TellyCloud/torrent-stream-server/internal/metrics"
)

// minIdleTTL is the floor applied to the configured idle TTL when arming an
// eviction timer.
const minIdleTTL = time.Second

var ErrRegistryClosed = errors.New("session registry closed")

type Config struct {
	// IdleTTL is the inactivity window after which a session's backing
	// storage is destroyed. Values below one second are clamped up.
	IdleTTL time.Duration
	// CreationTimeout bounds the wait for swarm metadata during session
	// creation.
	CreationTimeout time.Duration
}

// Registry owns every active swarm session, keyed by canonical info-hash.
// Concurrent requests for the same content share a single in-flight creation
// regardless of how the identifier was spelled.
type Registry struct {
	engine         ports.Engine
	normalize      func(string) (string, bool)
	idleTTL        time.Duration
	creationWindow time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	timers   map[string]*time.Timer
	closed   bool

	creating singleflight.Group
}

type RegistryOption func(*Registry)

// WithNormalizer installs the identifier canonicalization function, usually
// the swarm adapter's. Identifiers it cannot parse are compared verbatim.
func WithNormalizer(fn func(string) (string, bool)) RegistryOption {
	return func(r *Registry) {
		r.normalize = fn
	}
}

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(engine ports.Engine, cfg Config, opts ...RegistryOption) *Registry {
	ttl := cfg.IdleTTL
	if ttl < minIdleTTL {
		ttl = minIdleTTL
	}
	window := cfg.CreationTimeout
	if window <= 0 {
		window = 20 * time.Second
	}

	r := &Registry{
		engine:         engine,
		normalize:      func(string) (string, bool) { return "", false },
		idleTTL:        ttl,
		creationWindow: window,
		sessions:       make(map[string]*Session),
		timers:         make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// ResolveOrCreate returns the session for the given identifier, creating one
// when no match exists. Callers arriving while a creation is in flight for
// the same normalized identifier share its outcome; a caller whose ctx ends
// first stops waiting without cancelling the shared creation.
func (r *Registry) ResolveOrCreate(ctx context.Context, identifier string) (*Session, error) {
	key := r.flightKey(identifier)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if s := r.lookupLocked(key, identifier); s != nil {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	ch := r.creating.DoChan(key, func() (interface{}, error) {
		return r.create(key, identifier)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flightKey is the canonical info-hash when the identifier parses, otherwise
// the trimmed lowercase identifier itself.
func (r *Registry) flightKey(identifier string) string {
	if hash, ok := r.normalize(identifier); ok {
		return hash
	}
	return strings.ToLower(strings.TrimSpace(identifier))
}

// lookupLocked matches by canonical id first, then verbatim against each
// session's id and the descriptor string that created it.
func (r *Registry) lookupLocked(key, identifier string) *Session {
	if s, ok := r.sessions[key]; ok {
		return s
	}
	verbatim := strings.ToLower(strings.TrimSpace(identifier))
	for _, s := range r.sessions {
		if s.ID() == verbatim || strings.ToLower(s.Descriptor()) == verbatim {
			return s
		}
	}
	return nil
}

// create runs inside the single-flight group. The metadata wait is bounded
// by the registry's creation window and detached from any one caller's
// context so an early client disconnect cannot fail the other waiters.
func (r *Registry) create(key, identifier string) (*Session, error) {
	// A prior flight may have registered the session after the caller's
	// fast-path lookup missed.
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if s := r.lookupLocked(key, identifier); s != nil {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.creationWindow)
	defer cancel()

	started := time.Now()
	backing, err := r.engine.Open(ctx, identifier)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.SessionCreateTimeouts.Inc()
			r.logger.Warn("session creation timed out",
				slog.String("identifier", truncateID(identifier)),
				slog.Duration("window", r.creationWindow),
			)
			return nil, domain.ErrCreationTimeout
		}
		return nil, err
	}

	s := newSession(identifier, backing)
	s.markReady()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = backing.Drop(true)
		return nil, ErrRegistryClosed
	}
	if existing, ok := r.sessions[s.ID()]; ok {
		// Two identifiers resolved to the same swarm; the engine already
		// deduplicated the underlying transfer, so keep the original.
		r.mu.Unlock()
		return existing, nil
	}
	r.sessions[s.ID()] = s
	// Arm the idle timer here, not in Touch: every waiter may have given up
	// during the metadata wait, and an untouched session must still age out.
	r.armTimerLocked(s)
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Set(float64(count))
	r.logger.Info("session created",
		slog.String("infoHash", s.ID()),
		slog.String("name", s.Name()),
		slog.Int("files", len(s.Files())),
		slog.Int64("durationMs", time.Since(started).Milliseconds()),
	)
	return s, nil
}

// Touch records activity on a session and re-arms its idle eviction timer.
// A new touch always cancels and replaces the prior timer; timers never
// stack.
func (r *Registry) Touch(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.sessions[s.ID()] != s {
		return
	}
	s.touch()
	r.armTimerLocked(s)
}

func (r *Registry) armTimerLocked(s *Session) {
	if t, ok := r.timers[s.ID()]; ok {
		t.Stop()
	}
	r.timers[s.ID()] = time.AfterFunc(r.idleTTL, func() {
		r.evict(s)
	})
}

// evict fires when a session's idle timer expires. A session with readers
// still attached is never destroyed; its timer is re-armed for one more TTL
// interval instead.
func (r *Registry) evict(s *Session) {
	r.mu.Lock()
	if r.closed || r.sessions[s.ID()] != s {
		r.mu.Unlock()
		return
	}

	if !s.destroyIfIdle() {
		r.logger.Debug("eviction deferred, streams still active",
			slog.String("infoHash", s.ID()),
			slog.Int64("activeReaders", s.ActiveReaders()),
		)
		r.armTimerLocked(s)
		r.mu.Unlock()
		return
	}

	delete(r.sessions, s.ID())
	if t, ok := r.timers[s.ID()]; ok {
		t.Stop()
		delete(r.timers, s.ID())
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if err := s.backing.Drop(true); err != nil {
		r.logger.Warn("session storage teardown failed",
			slog.String("infoHash", s.ID()),
			slog.String("error", err.Error()),
		)
	}
	metrics.SessionsEvicted.Inc()
	metrics.ActiveSessions.Set(float64(count))
	r.logger.Info("idle session destroyed", slog.String("infoHash", s.ID()))
}

// Snapshot returns a point-in-time view of every registered session.
func (r *Registry) Snapshot() []domain.SessionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SessionSnapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.snapshot())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown stops all eviction timers and detaches every session from the
// engine. Fetched content is left on disk; only idle eviction destroys
// storage.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.markDestroyed()
		_ = s.backing.Drop(false)
	}
	metrics.ActiveSessions.Set(0)
}

func truncateID(identifier string) string {
	const limit = 96
	if len(identifier) <= limit {
		return identifier
	}
	return identifier[:limit-3] + "..."
}
