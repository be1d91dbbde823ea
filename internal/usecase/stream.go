package usecase

import (
	"context"
	"errors"

	"github.com/TellyCloud/torrent-stream-server/internal/domain"
	"github.com/TellyCloud/torrent-stream-server/internal/domain/ports"
)

const defaultStreamReadahead = 16 << 20

type StreamResult struct {
	InfoHash string
	Name     string
	File     domain.File
	// Open positions a fresh reader at byte 0 of the file. Closing the
	// reader releases the session's reader slot; the caller must close it
	// exactly once. Opening is deferred so the transport can reject a bad
	// byte range without ever claiming a reader slot.
	Open func(ctx context.Context) (ports.StreamReader, error)
}

// OpenStream resolves an identifier, selects a file and prepares a byte
// stream over it. Readers obtained through the result block while the engine
// fetches bytes that are not yet locally available.
type OpenStream struct {
	Registry       SessionRegistry
	ReadaheadBytes int64
}

func (uc OpenStream) Execute(ctx context.Context, identifier string, sel Selection) (StreamResult, error) {
	if uc.Registry == nil {
		return StreamResult{}, errors.New("registry not configured")
	}

	s, err := uc.Registry.ResolveOrCreate(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrCreationTimeout) {
			return StreamResult{}, err
		}
		return StreamResult{}, wrapEngine(err)
	}
	uc.Registry.Touch(s)

	file, ok := ChooseFile(s.Files(), sel)
	if !ok {
		return StreamResult{}, domain.ErrNotFound
	}

	readahead := uc.ReadaheadBytes
	if readahead <= 0 {
		readahead = defaultStreamReadahead
	}

	return StreamResult{
		InfoHash: s.ID(),
		Name:     s.Name(),
		File:     file,
		Open: func(ctx context.Context) (ports.StreamReader, error) {
			reader, err := s.OpenReader(file)
			if err != nil {
				return nil, wrapEngine(err)
			}
			reader.SetReadahead(readahead)
			reader.SetContext(ctx)
			return reader, nil
		},
	}, nil
}
