package results

import (
	"fmt"
	"sync"
)

// RunRegistry enforces that at most one TestRun is active at a time.
type RunRegistry struct {
	mu     sync.Mutex
	active string
	held   bool
}

// DefaultRegistry is the process-wide registry used unless a run is
// created WithRegistry.
var DefaultRegistry = &RunRegistry{}

// Acquire claims the slot for the named run.
func (r *RunRegistry) Acquire(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held {
		return fmt.Errorf("failed to start TestRun %q: %w (active: %q)", name, ErrRunAlreadyActive, r.active)
	}
	r.held = true
	r.active = name
	return nil
}

// Release frees the slot. Releasing a free slot is a no-op.
func (r *RunRegistry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held = false
	r.active = ""
}

// Active returns the name of the active run, if any.
func (r *RunRegistry) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.held
}
