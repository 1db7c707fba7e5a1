package retry

import (
	"errors"
	"sync/atomic"

	"goattempt/attempt"
	ncerr "goattempt/internal/errors"
)

// ── Decisions ────────────────────────────────────────────────────────
//
// Each builder returns an attempt.Decision: it sees the error of every
// failed attempt and returns true to stop.

// Never keeps trying; the session ends only on success, budget
// exhaustion or abort.
func Never() attempt.Decision {
	return func(error) bool { return false }
}

// After stops once n failed attempts have been seen.  The count spans
// every session the decision is used for.
func After(n int) attempt.Decision {
	var remaining atomic.Int64
	remaining.Store(int64(n))
	return func(error) bool {
		return remaining.Add(-1) <= 0
	}
}

// StopOn stops as soon as an attempt fails with one of targets.
func StopOn(targets ...error) attempt.Decision {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// StopOnRefused stops when the peer actively refused the connection.
func StopOnRefused() attempt.Decision {
	return func(err error) bool { return ncerr.IsRefused(err) }
}

// StopUnlessRetryable stops on errors another attempt cannot fix, such
// as a failed SSH authentication.
func StopUnlessRetryable() attempt.Decision {
	return func(err error) bool { return !ncerr.IsRetryable(err) }
}

// Any stops when any of decisions says so.  Every decision still sees
// every error, so stateful ones keep counting.
func Any(decisions ...attempt.Decision) attempt.Decision {
	return func(err error) bool {
		stop := false
		for _, d := range decisions {
			if d != nil && d(err) {
				stop = true
			}
		}
		return stop
	}
}
