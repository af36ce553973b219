package pipeline

import (
	"errors"
	"sync"
)

// ErrSessionBusy is returned when a session already has an active run.
// Starting a second run must fail fast rather than interleave writes.
var ErrSessionBusy = errors.New("session already has an active run")

// SessionRegistry enforces at most one active run per session id.
type SessionRegistry struct {
	mu     sync.Mutex
	active map[string]string // session id -> run id
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{active: make(map[string]string)}
}

func (r *SessionRegistry) Acquire(sessionID, runID string) error {
	if sessionID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[sessionID]; busy {
		return ErrSessionBusy
	}
	r.active[sessionID] = runID
	return nil
}

// Release frees the session only if it is still held by the given run.
func (r *SessionRegistry) Release(sessionID, runID string) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[sessionID] == runID {
		delete(r.active, sessionID)
	}
}

// ActiveRun returns the run currently holding the session, if any.
func (r *SessionRegistry) ActiveRun(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[sessionID]
	return id, ok
}
