package domain

import "time"

// SessionPhase is the lifecycle state of a swarm session held by the registry.
type SessionPhase string

const (
	PhasePending   SessionPhase = "pending"   // Metadata not yet available.
	PhaseReady     SessionPhase = "ready"     // File list fixed, streams may open.
	PhaseDestroyed SessionPhase = "destroyed" // Backing storage torn down.
)

var validTransitions = map[SessionPhase][]SessionPhase{
	PhasePending: {PhaseReady, PhaseDestroyed},
	PhaseReady:   {PhaseDestroyed},
}

// CanTransition reports whether a transition from one phase to another is valid.
func CanTransition(from, to SessionPhase) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// SessionSnapshot is a point-in-time view of a registry session, served by
// the session listing endpoint and pushed over the status WebSocket.
type SessionSnapshot struct {
	InfoHash      string       `json:"infoHash"`
	Name          string       `json:"name"`
	Phase         SessionPhase `json:"phase"`
	FileCount     int          `json:"fileCount"`
	TotalBytes    int64        `json:"totalBytes"`
	ActiveReaders int64        `json:"activeReaders"`
	LastAccess    time.Time    `json:"lastAccess"`
}
