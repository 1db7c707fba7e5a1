package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"goattempt/attempt"
	"goattempt/internal/metrics"
	"goattempt/internal/retry"
	"goattempt/internal/transport"
	"goattempt/util"
)

// WatchMode keeps a connection up.  Each round runs an unbounded
// session; once connected it forwards everything the peer sends to
// Stdout until the peer disconnects, then pauses and reconnects.  It
// ends when the stop policy gives up or ctx is cancelled.
type WatchMode struct {
	Conn      transport.Binding
	Attempt   attempt.AttemptFunc
	Endpoint  string
	Timeout   time.Duration
	Reconnect *retry.Backoff        // pause after a disconnect
	Breaker   *retry.CircuitBreaker // optional
	Send      []byte                // sent after every connect
	Metrics   *metrics.Collector    // optional
	Logger    *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *WatchMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run loops until ctx is cancelled, which is a clean shutdown, or a
// session ends without connecting, whose error is returned.
func (m *WatchMode) Run(ctx context.Context) error {
	defer closeConn(m.Conn, m.Logger)

	m.Logger.Verbose("watching %s", describe(m.Conn.Kind(), m.Endpoint))

	streak := 0 // consecutive short-lived connections
	for round := 0; ; round++ {
		if m.Breaker != nil {
			if err := m.Breaker.Allow(); err != nil {
				return err
			}
		}

		fut, err := m.Attempt(ctx, m.Endpoint, m.Timeout)
		if err != nil {
			return err
		}
		if err := fut.Wait(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			res := fut.Result()
			return fmt.Errorf("connect to %s: %s after %d attempt(s): %w",
				m.Endpoint, res.State, res.Attempts, err)
		}
		if m.Breaker != nil {
			m.Breaker.Success()
		}
		if round > 0 {
			m.Metrics.Reconnect()
		}
		m.Logger.Info("connected to %s after %d attempt(s)", m.Endpoint, fut.Result().Attempts)

		up := time.Now()
		err, outErr := m.pump(ctx)
		if outErr != nil {
			return fmt.Errorf("write output: %w", outErr)
		}
		if ctx.Err() != nil {
			return nil
		}
		if m.Conn.RemoteHasDisconnected(err) {
			m.Logger.Info("peer disconnected after %v", time.Since(up).Round(time.Millisecond))
		} else {
			m.Logger.Warn("connection lost: %v", err)
		}

		if m.Reconnect != nil && time.Since(up) > m.Reconnect.MaxDelay {
			streak = 0
		}
		streak++
		if !m.pause(ctx, m.Reconnect.Delay(streak)) {
			return nil
		}
	}
}

// pump sends the payload, then copies received data to Stdout until
// the first connection error.  A failed write to Stdout is reported
// separately as outErr.
func (m *WatchMode) pump(ctx context.Context) (err, outErr error) {
	if len(m.Send) > 0 {
		n, err := sendAll(ctx, m.Conn, m.Send)
		m.Metrics.BytesSent(int64(n))
		if err != nil {
			return err, nil
		}
	}

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	out := m.stdout()
	for {
		data, err := receiveOne(ctx, m.Conn, buf)
		m.Metrics.BytesReceived(int64(len(data)))
		if len(data) > 0 {
			if _, werr := out.Write(data); werr != nil {
				return nil, werr
			}
		}
		if err != nil {
			return err, nil
		}
	}
}

// pause waits d; it reports false if ctx ended first.
func (m *WatchMode) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	m.Logger.Verbose("reconnecting in %v", d.Round(time.Millisecond))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
