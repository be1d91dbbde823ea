package ports

import "github.com/TellyCloud/torrent-stream-server/internal/domain"

// SwarmSession is one active transfer held by the engine. The file list is
// fixed by the time Open returns.
type SwarmSession interface {
	InfoHash() string
	Name() string
	Files() []domain.File
	NewReader(file domain.File) (StreamReader, error)
	// Drop detaches the session from the engine. With destroyStorage set it
	// also removes the fetched content from the local data directory.
	Drop(destroyStorage bool) error
}
