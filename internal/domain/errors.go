package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrCreationTimeout = errors.New("timeout waiting for swarm metadata")
	ErrDestroyed       = errors.New("session destroyed")
)
