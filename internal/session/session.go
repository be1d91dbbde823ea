package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
	"github.com/TellyCloud/torrent-stream-server/internal/domain/ports"
)

// Session is one active swarm transfer owned by the Registry. Streaming
// pipelines borrow it for the duration of a single request; they must never
// hold a reference past the response.
type Session struct {
	id         string
	name       string
	descriptor string
	files      []domain.File
	backing    ports.SwarmSession

	mu         sync.Mutex
	phase      domain.SessionPhase
	lastAccess time.Time

	readers atomic.Int64
}

func newSession(identifier string, backing ports.SwarmSession) *Session {
	return &Session{
		id:         backing.InfoHash(),
		descriptor: identifier,
		backing:    backing,
		phase:      domain.PhasePending,
		lastAccess: time.Now().UTC(),
	}
}

// markReady fixes the session's name and file list. The file list is never
// reordered afterwards.
func (s *Session) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !domain.CanTransition(s.phase, domain.PhaseReady) {
		return
	}
	s.phase = domain.PhaseReady
	s.name = s.backing.Name()
	s.files = s.backing.Files()
}

func (s *Session) markDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !domain.CanTransition(s.phase, domain.PhaseDestroyed) {
		return false
	}
	s.phase = domain.PhaseDestroyed
	return true
}

// destroyIfIdle marks the session destroyed only when no reader holds it
// open. The readers check shares the mutex with OpenReader's claim, so an
// open in flight either completes before the destroy or fails with
// ErrDestroyed.
func (s *Session) destroyIfIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readers.Load() > 0 {
		return false
	}
	if !domain.CanTransition(s.phase, domain.PhaseDestroyed) {
		return false
	}
	s.phase = domain.PhaseDestroyed
	return true
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Session) ID() string         { return s.id }
func (s *Session) Descriptor() string { return s.descriptor }

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) Phase() domain.SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Files returns the session's file list. Empty until the session is Ready.
func (s *Session) Files() []domain.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.File(nil), s.files...)
}

// ActiveReaders is the number of in-flight streams reading from this
// session's storage. The registry defers eviction while it is non-zero.
func (s *Session) ActiveReaders() int64 {
	return s.readers.Load()
}

// OpenReader opens a byte stream over one of the session's files. The reader
// count is incremented before the stream opens and decremented exactly once
// when the returned reader is closed.
func (s *Session) OpenReader(file domain.File) (ports.StreamReader, error) {
	s.mu.Lock()
	if s.phase != domain.PhaseReady {
		s.mu.Unlock()
		return nil, domain.ErrDestroyed
	}
	// The slot is claimed under the same lock as the phase check so
	// destroyIfIdle cannot observe zero readers between the check and the
	// open.
	s.readers.Add(1)
	s.mu.Unlock()

	reader, err := s.backing.NewReader(file)
	if err != nil {
		s.readers.Add(-1)
		return nil, err
	}
	return &countedReader{StreamReader: reader, session: s}, nil
}

func (s *Session) snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, f := range s.files {
		total += f.Length
	}
	return domain.SessionSnapshot{
		InfoHash:      s.id,
		Name:          s.name,
		Phase:         s.phase,
		FileCount:     len(s.files),
		TotalBytes:    total,
		ActiveReaders: s.readers.Load(),
		LastAccess:    s.lastAccess,
	}
}

// countedReader decrements the owning session's reader count on Close,
// exactly once regardless of how many times Close is called.
type countedReader struct {
	ports.StreamReader
	session *Session
	closed  sync.Once
}

func (r *countedReader) Close() error {
	err := r.StreamReader.Close()
	r.closed.Do(func() {
		r.session.readers.Add(-1)
	})
	return err
}
