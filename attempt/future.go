package attempt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a session.
type State int32

const (
	Idle State = iota
	Attempting
	Succeeded
	TimedOut
	Stopped
	Exhausted
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case TimedOut:
		return "timed-out"
	case Stopped:
		return "stopped"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	switch s {
	case Succeeded, Stopped, Exhausted, Aborted:
		return true
	}
	return false
}

// Record describes one attempt.  Err is nil until the attempt settles
// and stays nil when it succeeded.
type Record struct {
	Index    int // 1-based
	Endpoint string
	Started  time.Time
	Deadline time.Time
	Err      error
}

// Result is the final outcome of a session.
type Result struct {
	ID       uuid.UUID
	Endpoint string
	State    State
	Attempts int           // attempts issued, including the last one
	Err      error         // nil only when State is Succeeded
	Elapsed  time.Duration // from session start to resolution
}

// Future is the single-assignment result slot of a session.
type Future struct {
	id     uuid.UUID
	done   chan struct{}
	res    Result
	state  atomic.Int32
	cancel context.CancelFunc
}

func newFuture(id uuid.UUID, cancel context.CancelFunc) *Future {
	return &Future{id: id, done: make(chan struct{}), cancel: cancel}
}

// ID identifies the session.
func (f *Future) ID() uuid.UUID { return f.id }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// State reports the current phase without blocking.
func (f *Future) State() State { return State(f.state.Load()) }

// Wait blocks until the session resolves and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.res.Err
}

// Result blocks until the session resolves and returns the outcome.
func (f *Future) Result() Result {
	<-f.done
	return f.res
}

// Cancel aborts the session.  It is a no-op once the session resolved.
func (f *Future) Cancel() { f.cancel() }

func (f *Future) set(s State) { f.state.Store(int32(s)) }

func (f *Future) resolve(res Result) {
	f.res = res
	f.set(res.State)
	close(f.done)
}
