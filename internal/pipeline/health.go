package pipeline

import "sync"

// Health is the 3-state per-source degradation indicator for one run.
type Health string

const (
	HealthGreen  Health = "green"
	HealthYellow Health = "yellow"
	HealthRed    Health = "red"
)

// HealthTracker is owned by one run. Sources start green and degrade to
// yellow on any recoverable failure. A source goes red only when every call
// to it in a phase failed hard; timeouts alone never push past yellow.
// Health never recovers within a run.
type HealthTracker struct {
	mu         sync.Mutex
	state      map[string]Health
	phaseFails map[string]int
	degraded   bool
}

func NewHealthTracker(sourceNames ...string) *HealthTracker {
	t := &HealthTracker{
		state:      make(map[string]Health, len(sourceNames)),
		phaseFails: make(map[string]int),
	}
	for _, s := range sourceNames {
		t.state[s] = HealthGreen
	}
	return t
}

// Degrade marks a recoverable failure. Implements sources.HealthRecorder.
func (t *HealthTracker) Degrade(source string, timeout bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state[source] != HealthRed {
		t.state[source] = HealthYellow
	}
	if !timeout {
		t.phaseFails[source]++
	}
	t.degraded = true
}

// BeginPhase resets the per-phase failure bookkeeping.
func (t *HealthTracker) BeginPhase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phaseFails = make(map[string]int)
	t.degraded = false
}

// FinalizePhase marks a source red when every one of its attempts in the
// current phase failed hard.
func (t *HealthTracker) FinalizePhase(source string, attempts int) {
	if attempts <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phaseFails[source] >= attempts {
		t.state[source] = HealthRed
	}
}

// PhaseDegraded reports whether any source degraded since BeginPhase.
func (t *HealthTracker) PhaseDegraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// Snapshot returns a copy of the current health map.
func (t *HealthTracker) Snapshot() map[string]Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Health, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}

// Get returns the current health of one source (green when unknown).
func (t *HealthTracker) Get(source string) Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.state[source]; ok {
		return h
	}
	return HealthGreen
}
