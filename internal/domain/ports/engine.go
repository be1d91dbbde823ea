package ports

import (
	"context"
)

// Engine is the external swarm transfer engine. Open blocks until the swarm's
// metadata (name and file list) is available or ctx is done; on ctx
// cancellation any partially created resource is discarded by the adapter.
type Engine interface {
	Open(ctx context.Context, identifier string) (SwarmSession, error)
	Close() error
}
