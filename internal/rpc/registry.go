// Package rpc implements the asynchronous request/response bridge over the
// message broker: a correlation registry with exactly-once settlement, the
// bridge that races delivery against a deadline, and the dispatcher that
// feeds reply-queue messages back into the registry.
package rpc

import (
	"sync"
	"time"
)

// Outcome is the single resolution of a pending call: either a response
// payload or a timeout marker, never both.
type Outcome struct {
	Payload  []byte
	TimedOut bool
}

// Waiter is the receiving end of one pending call. Its channel yields
// exactly one Outcome.
type Waiter struct {
	id      string
	created time.Time
	done    chan Outcome
}

// Done returns the channel the call's single outcome arrives on.
func (w *Waiter) Done() <-chan Outcome { return w.done }

// Registry is the process-wide table of pending calls, keyed by correlation
// id. It is shared by every call site and the dispatch loop, so all access
// goes through the mutex. An entry leaves the table on its first resolution;
// Complete and Expire are therefore mutually exclusive per id and both are
// no-ops once either has won.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Waiter
}

func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*Waiter)}
}

// Register creates the waiter for a new correlation id. The id must not be
// outstanding already; the bridge generates a fresh UUID per call.
func (r *Registry) Register(id string) *Waiter {
	w := &Waiter{
		id:      id,
		created: time.Now(),
		done:    make(chan Outcome, 1),
	}
	r.mu.Lock()
	r.pending[id] = w
	r.mu.Unlock()
	return w
}

// Complete resolves the pending call with a response payload. It returns
// true only if this call performed the resolution; a false return means the
// id was never registered or was already settled (delivered or expired), and
// the payload is discarded.
func (r *Registry) Complete(id string, payload []byte) bool {
	w := r.take(id)
	if w == nil {
		return false
	}
	w.done <- Outcome{Payload: payload}
	return true
}

// Expire resolves the pending call with a timeout marker, with the same
// idempotency contract as Complete. Safe to call from the timer path even
// after a delivery already settled the id.
func (r *Registry) Expire(id string) bool {
	w := r.take(id)
	if w == nil {
		return false
	}
	w.done <- Outcome{TimedOut: true}
	return true
}

// Pending reports the number of outstanding calls.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// take removes and returns the waiter for id, or nil if already resolved.
// Removal under the lock is what makes the second resolver lose the race.
func (r *Registry) take(id string) *Waiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.pending[id]
	if !ok {
		return nil
	}
	delete(r.pending, id)
	return w
}
