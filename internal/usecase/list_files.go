package usecase

import (
	"context"
	"errors"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
	"github.com/TellyCloud/torrent-stream-server/internal/session"
)

// SessionRegistry is the slice of the registry the use cases need.
type SessionRegistry interface {
	ResolveOrCreate(ctx context.Context, identifier string) (*session.Session, error)
	Touch(s *session.Session)
}

type SessionInfo struct {
	Name     string        `json:"name"`
	InfoHash string        `json:"infoHash"`
	Files    []domain.File `json:"files"`
}

// ListFiles resolves an identifier to a session and returns its file list,
// keeping the session warm.
type ListFiles struct {
	Registry SessionRegistry
}

func (uc ListFiles) Execute(ctx context.Context, identifier string) (SessionInfo, error) {
	if uc.Registry == nil {
		return SessionInfo{}, errors.New("registry not configured")
	}

	s, err := uc.Registry.ResolveOrCreate(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrCreationTimeout) {
			return SessionInfo{}, err
		}
		return SessionInfo{}, wrapEngine(err)
	}
	uc.Registry.Touch(s)

	return SessionInfo{
		Name:     s.Name(),
		InfoHash: s.ID(),
		Files:    s.Files(),
	}, nil
}
