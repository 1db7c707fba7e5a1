// Package attempt repeatedly tries to connect any [capability.Connecter]
// to an endpoint.  Each attempt races the connection's AsyncConnect
// against a per-attempt deadline; the loser is cancelled.  After every
// failed or timed-out attempt a caller-supplied [Decision] says whether
// to stop, and the session resolves a single [Future].
//
// Two entry shapes share the same state machine:
//
//   - [Connect] runs a bounded session of at most N attempts.
//   - [Make] binds a connection and a decision once and returns an
//     [AttemptFunc] that runs an unbounded session per call.
//
// At most one session may be active per connection.  A second start
// fails synchronously with [capability.ErrAlreadyStarted].
package attempt

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"goattempt/capability"
)

// ErrTimedOut is the error of an attempt whose deadline fired first.
var ErrTimedOut = errors.New("connection attempt timed out")

// ErrNoIdentity rejects a connection that is nil or whose dynamic value
// cannot be compared, so no session can be tracked for it.
var ErrNoIdentity = errors.New("attempt: connection has no comparable identity")

// Decision is invoked once per failed or timed-out attempt with the
// attempt's error.  Returning true stops the session with that error;
// false asks for another attempt if the budget allows.
//
// Decision runs on the session goroutine and must not block.
type Decision func(err error) (stop bool)

// Target is a connection the engine can drive.  It must be comparable
// so the engine can track the active session per connection identity.
// When T is an interface type the dynamic value must be comparable too;
// otherwise the session is rejected with [ErrNoIdentity].
type Target interface {
	comparable
	capability.Connecter
}

// AttemptFunc runs one unbounded session against endpoint.
type AttemptFunc func(ctx context.Context, endpoint string, timeout time.Duration) (*Future, error)

// Connect starts a bounded session of at most attempts attempts, each
// limited to timeout.  Cancelling ctx or calling [Future.Cancel] aborts
// the session with [capability.ErrOperationAborted].
func Connect[T Target](ctx context.Context, conn T, endpoint string, attempts int, timeout time.Duration, decide Decision, opts ...Option) (*Future, error) {
	if attempts < 1 {
		return nil, fmt.Errorf("attempt: budget must be at least 1, got %d", attempts)
	}
	return start(ctx, conn, endpoint, attempts, timeout, decide, newOptions(opts))
}

// Make binds conn and decide and returns a reusable function that runs
// an unbounded session each time it is called.  Such a session ends
// only on success, when decide says stop, or when it is aborted.
func Make[T Target](conn T, decide Decision, opts ...Option) AttemptFunc {
	o := newOptions(opts)
	return func(ctx context.Context, endpoint string, timeout time.Duration) (*Future, error) {
		return start(ctx, conn, endpoint, unbounded, timeout, decide, o)
	}
}

// Busy reports whether conn has an active session.
func Busy[T Target](conn T) bool {
	key, err := identity(conn)
	if err != nil {
		return false
	}
	return sessions.busy(key)
}

// identity returns the session-table key of conn.
func identity[T Target](conn T) (any, error) {
	key := any(conn)
	if key == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrNoIdentity)
	}
	if v := reflect.ValueOf(key); !v.Comparable() {
		return nil, fmt.Errorf("%w: %s is not comparable", ErrNoIdentity, v.Type())
	}
	return key, nil
}

func start[T Target](ctx context.Context, conn T, endpoint string, budget int, timeout time.Duration, decide Decision, o options) (*Future, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("attempt: timeout must be positive, got %v", timeout)
	}
	if decide == nil {
		return nil, errors.New("attempt: nil decision function")
	}
	key, err := identity(conn)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	if !sessions.acquire(key, id) {
		o.logger.Debug("rejecting session for %s: connection busy", endpoint)
		return nil, capability.ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	f := newFuture(id, cancel)
	s := &session{
		id:       id,
		key:      key,
		conn:     conn,
		endpoint: endpoint,
		timeout:  timeout,
		budget:   budget,
		decide:   decide,
		future:   f,
		observer: o.observer,
		pacer:    o.pacer,
		log:      o.logger.With("session", id.String()[:8]).With("endpoint", endpoint),
	}
	go s.run(ctx)
	return f, nil
}
