// ABOUTME: Run-control primitives handed out per team run
// ABOUTME: CancellationToken forces immediate unwind, ExternalTermination requests a graceful stop

package team

import (
	"sync"
)

// CancellationToken requests immediate unwind of an in-flight run. The run's
// model calls observe it through context cancellation, so a fired token
// interrupts network I/O rather than waiting for the next turn boundary.
type CancellationToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancellationToken returns an unfired token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Cancel fires the token. Safe to call more than once.
func (t *CancellationToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Done returns a channel closed when the token fires.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.done
}

// Cancelled reports whether the token has fired.
func (t *CancellationToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// ExternalTermination requests a graceful stop. The team checks it at every
// turn boundary and the user-proxy input wait selects on Done, so the
// current step is allowed to finish before the run winds down.
type ExternalTermination struct {
	once sync.Once
	done chan struct{}
}

// NewExternalTermination returns an unset termination condition.
func NewExternalTermination() *ExternalTermination {
	return &ExternalTermination{done: make(chan struct{})}
}

// Set signals the termination condition. Safe to call more than once.
func (e *ExternalTermination) Set() {
	e.once.Do(func() { close(e.done) })
}

// Done returns a channel closed when the condition is signalled.
func (e *ExternalTermination) Done() <-chan struct{} {
	return e.done
}

// Terminated reports whether the condition has been signalled.
func (e *ExternalTermination) Terminated() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
