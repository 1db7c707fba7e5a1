package attempt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"goattempt/capability"
	"goattempt/util"
)

// unbounded is the budget of sessions started through Make.
const unbounded = 0

// ── Active-session table ─────────────────────────────────────────────

// sessions maps a connection to the id of its active session.
var sessions = &registry{}

type registry struct {
	active sync.Map // connection → uuid.UUID
}

func (r *registry) acquire(key any, id uuid.UUID) bool {
	_, loaded := r.active.LoadOrStore(key, id)
	return !loaded
}

func (r *registry) release(key any, id uuid.UUID) {
	r.active.CompareAndDelete(key, id)
}

func (r *registry) busy(key any) bool {
	_, ok := r.active.Load(key)
	return ok
}

// ── Session ──────────────────────────────────────────────────────────

type session struct {
	id       uuid.UUID
	key      any
	conn     capability.Connecter
	endpoint string
	timeout  time.Duration
	budget   int // attempts allowed, unbounded for 0
	decide   Decision
	future   *Future
	observer Observer
	pacer    Pacer
	log      *util.Logger

	// current is the index of the attempt whose completion is awaited.
	// Completions tagged with any other index are stale.
	current atomic.Int64
}

func (s *session) run(ctx context.Context) {
	started := time.Now()
	s.observer.SessionStarted(s.id, s.endpoint)

	res := s.loop(ctx)
	res.ID = s.id
	res.Endpoint = s.endpoint
	res.Elapsed = time.Since(started)

	// Late completions from here on are dropped; the connection is free
	// for a new session before anyone observes the result.
	s.current.Store(0)
	sessions.release(s.key, s.id)

	s.log.Verbose("session %s after %d attempt(s) in %v: %v",
		res.State, res.Attempts, res.Elapsed.Round(time.Millisecond), res.Err)
	s.observer.SessionFinished(res)
	s.future.resolve(res)
	s.future.cancel()
}

func (s *session) loop(ctx context.Context) Result {
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return Result{State: Aborted, Attempts: n - 1, Err: capability.ErrOperationAborted}
		}

		rec := Record{Index: n, Endpoint: s.endpoint, Started: time.Now()}
		rec.Deadline = rec.Started.Add(s.timeout)
		s.observer.AttemptStarted(rec)
		s.log.Debug("attempt %d (deadline %v)", n, s.timeout)

		err, aborted := s.race(ctx, n)
		rec.Err = err
		s.observer.AttemptFinished(rec)

		switch {
		case aborted:
			return Result{State: Aborted, Attempts: n, Err: err}
		case err == nil:
			return Result{State: Succeeded, Attempts: n}
		}

		s.log.Debug("attempt %d failed: %v", n, err)
		if s.decide(err) {
			return Result{State: Stopped, Attempts: n, Err: err}
		}
		if s.budget != unbounded && n >= s.budget {
			return Result{State: Exhausted, Attempts: n, Err: err}
		}
		if !s.pause(ctx, n) {
			return Result{State: Aborted, Attempts: n, Err: capability.ErrOperationAborted}
		}
	}
}

// race issues attempt n and waits for whichever of its completion, its
// deadline or an abort comes first.  The operation that loses against
// the deadline or an abort is cancelled.
func (s *session) race(ctx context.Context, n int) (err error, aborted bool) {
	s.current.Store(int64(n))
	s.future.set(Attempting)

	done := make(chan error, 1)
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	s.conn.AsyncConnect(s.endpoint, s.completion(n, done))

	select {
	case err = <-done:
		if ctx.Err() != nil {
			// The abort wins even if the connect finished concurrently.
			return capability.ErrOperationAborted, true
		}
		return err, false

	case <-timer.C:
		s.future.set(TimedOut)
		s.conn.Cancel()
		if ctx.Err() != nil {
			return capability.ErrOperationAborted, true
		}
		s.log.Debug("attempt %d timed out after %v", n, s.timeout)
		return ErrTimedOut, false

	case <-ctx.Done():
		s.conn.Cancel()
		return capability.ErrOperationAborted, true
	}
}

// completion returns the done callback for attempt n.  The callback is
// safe to call from any goroutine, including synchronously from within
// AsyncConnect, and only its first invocation counts.
func (s *session) completion(n int, done chan<- error) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			if s.current.Load() != int64(n) {
				s.log.Debug("discarding stale completion of attempt %d: %v", n, err)
				return
			}
			done <- err
		})
	}
}

// pause waits the pacer's delay after attempt n.  It returns false if
// the session was aborted meanwhile.
func (s *session) pause(ctx context.Context, n int) bool {
	if s.pacer == nil {
		return true
	}
	d := s.pacer.Delay(n)
	if d <= 0 {
		return true
	}
	s.log.Debug("waiting %v before attempt %d", d, n+1)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
