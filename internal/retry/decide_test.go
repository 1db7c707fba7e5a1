package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goattempt/attempt"
	"goattempt/capability"
	ncerr "goattempt/internal/errors"
)

func TestNever(t *testing.T) {
	d := Never()
	for i := 0; i < 100; i++ {
		assert.False(t, d(attempt.ErrTimedOut))
	}
}

func TestAfter(t *testing.T) {
	d := After(3)
	assert.False(t, d(attempt.ErrTimedOut))
	assert.False(t, d(attempt.ErrTimedOut))
	assert.True(t, d(attempt.ErrTimedOut))
	assert.True(t, d(attempt.ErrTimedOut), "stays stopped once reached")
}

func TestStopOn(t *testing.T) {
	d := StopOn(syscall.ECONNREFUSED, syscall.EHOSTUNREACH)

	assert.True(t, d(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, d(syscall.EHOSTUNREACH))
	assert.False(t, d(attempt.ErrTimedOut))
	assert.False(t, StopOn()(syscall.ECONNREFUSED))
}

func TestStopOnRefused(t *testing.T) {
	d := StopOnRefused()
	assert.True(t, d(ncerr.Wrap("connect", "h:1", syscall.ECONNREFUSED)))
	assert.False(t, d(attempt.ErrTimedOut))
}

func TestStopUnlessRetryable(t *testing.T) {
	d := StopUnlessRetryable()

	assert.False(t, d(attempt.ErrTimedOut))
	assert.False(t, d(syscall.ECONNREFUSED))
	assert.True(t, d(ncerr.WrapSSH("handshake", "gw", 22, errors.New("unable to authenticate"))))
	assert.True(t, d(capability.ErrOperationAborted))
}

func TestAny_EveryDecisionSeesEveryError(t *testing.T) {
	countdown := After(2)
	d := Any(StopOnRefused(), countdown, nil)

	assert.True(t, d(syscall.ECONNREFUSED))
	// The countdown was charged by the first call as well.
	assert.True(t, d(attempt.ErrTimedOut))
}

// hangingConn never completes a connect until cancelled.
type hangingConn struct {
	done chan func(error)
}

func (c *hangingConn) AsyncConnect(_ string, done func(error)) { c.done <- done }

func (c *hangingConn) Cancel() {
	select {
	case done := <-c.done:
		done(capability.ErrOperationAborted)
	default:
	}
}

func TestPolicies_DriveEngine(t *testing.T) {
	conn := &hangingConn{done: make(chan func(error), 1)}
	pacer := &Backoff{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	f, err := attempt.Connect(context.Background(), conn, "h:1", 10, 10*time.Millisecond,
		Any(After(4), StopOnRefused()), attempt.WithPacer(pacer))
	require.NoError(t, err)

	res := f.Result()
	assert.Equal(t, attempt.Stopped, res.State)
	assert.Equal(t, 4, res.Attempts)
	assert.ErrorIs(t, res.Err, attempt.ErrTimedOut)
}
