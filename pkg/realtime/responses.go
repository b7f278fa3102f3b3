package realtime

import (
	"strings"
	"sync"
)

// ResponseStatus tracks the lifecycle of a server-generated response.
type ResponseStatus int

const (
	// StatusActive means fragments for the response are still valid.
	StatusActive ResponseStatus = iota
	// StatusCanceled means the client interrupted the response.
	StatusCanceled
	// StatusCompleted means the server reported normal completion.
	StatusCompleted
	// StatusIncomplete means the server reported early termination.
	StatusIncomplete
	// StatusFailed means the server reported a failure.
	StatusFailed
)

// String returns a human-readable status name.
func (s ResponseStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusCanceled:
		return "CANCELED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusIncomplete:
		return "INCOMPLETE"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// statusFromWire maps a server-reported terminal status string.
func statusFromWire(status string) ResponseStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "cancelled", "canceled":
		return StatusCanceled
	case "incomplete":
		return StatusIncomplete
	case "failed":
		return StatusFailed
	default:
		return StatusCompleted
	}
}

// maxResponseRecords bounds the registry. Terminal records beyond the
// bound are pruned oldest-first; a pruned id behaves like any unknown
// id (non-active, fragments dropped) and is never resurrected.
const maxResponseRecords = 32

// responseRegistry tracks per-response lifecycle state. It is read on
// the hot receive path, so it carries its own lock independent of the
// playback buffer.
type responseRegistry struct {
	mu      sync.RWMutex
	states  map[string]ResponseStatus
	order   []string
	current string
}

func newResponseRegistry() *responseRegistry {
	return &responseRegistry{
		states: make(map[string]ResponseStatus),
	}
}

// Begin registers id as the single active response, superseding any
// previous current response.
func (r *responseRegistry) Begin(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.states[id]; !seen {
		r.order = append(r.order, id)
	}
	r.states[id] = StatusActive
	r.current = id
	r.pruneLocked()
}

// IsActive reports whether fragments tagged id are still valid. An
// unknown id is treated as non-active; the comma-ok lookup matters
// because the zero map value is StatusActive.
func (r *responseRegistry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.states[id]
	return ok && status == StatusActive
}

// Cancel transitions id from active to canceled. It reports whether
// the transition happened, so double-interrupts collapse to one.
func (r *responseRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.states[id]
	if !ok || status != StatusActive {
		return false
	}
	r.states[id] = StatusCanceled
	return true
}

// Finish records a server-reported terminal status. A canceled
// response stays canceled; terminal states are never reactivated.
func (r *responseRegistry) Finish(id string, status ResponseStatus) {
	id = strings.TrimSpace(id)
	if id == "" || status == StatusActive {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.states[id]
	if seen && prev != StatusActive {
		return
	}
	if !seen {
		r.order = append(r.order, id)
	}
	r.states[id] = status
	r.pruneLocked()
}

// Current returns the id of the most recently started response.
func (r *responseRegistry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Status reports the recorded state for id.
func (r *responseRegistry) Status(id string) (ResponseStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.states[id]
	return status, ok
}

func (r *responseRegistry) pruneLocked() {
	for len(r.order) > maxResponseRecords {
		oldest := r.order[0]
		if r.states[oldest] == StatusActive {
			// Never prune the active response.
			break
		}
		r.order = r.order[1:]
		delete(r.states, oldest)
	}
}
