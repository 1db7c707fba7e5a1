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

// ConnectMode runs one bounded session against Endpoint and, once
// connected, optionally sends a payload and reads one reply.  This is
// the default mode.
type ConnectMode struct {
	Conn     transport.Binding
	Endpoint string
	Attempts int
	Timeout  time.Duration
	Decide   attempt.Decision
	Options  []attempt.Option
	Breaker  *retry.CircuitBreaker // optional
	Send     []byte
	Recv     bool
	Metrics  *metrics.Collector // optional
	Logger   *util.Logger

	// Stdout defaults to os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdout io.Writer
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run connects, exchanges the optional payload and closes the
// connection.  It returns the session error when every attempt failed.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer closeConn(m.Conn, m.Logger)

	if m.Breaker != nil {
		if err := m.Breaker.Allow(); err != nil {
			return err
		}
	}

	m.Logger.Verbose("connecting to %s, %d attempt(s) of %v",
		describe(m.Conn.Kind(), m.Endpoint), m.Attempts, m.Timeout)

	fut, err := attempt.Connect(ctx, m.Conn, m.Endpoint, m.Attempts, m.Timeout, m.Decide, m.Options...)
	if err != nil {
		return err
	}
	if err := fut.Wait(); err != nil {
		res := fut.Result()
		return fmt.Errorf("connect to %s: %s after %d attempt(s): %w",
			m.Endpoint, res.State, res.Attempts, err)
	}
	if m.Breaker != nil {
		m.Breaker.Success()
	}

	res := fut.Result()
	m.Logger.Info("connected to %s after %d attempt(s) in %v",
		m.Endpoint, res.Attempts, res.Elapsed.Round(time.Millisecond))

	return m.exchange(ctx)
}

// exchange sends the payload and reads one reply if asked to.
func (m *ConnectMode) exchange(ctx context.Context) error {
	if len(m.Send) > 0 {
		n, err := sendAll(ctx, m.Conn, m.Send)
		m.Metrics.BytesSent(int64(n))
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		m.Logger.Debug("sent %d bytes", n)
	}

	if !m.Recv {
		return nil
	}

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	data, err := receiveOne(ctx, m.Conn, buf)
	m.Metrics.BytesReceived(int64(len(data)))
	if len(data) > 0 {
		if _, werr := m.stdout().Write(data); werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
	}
	switch {
	case err == nil:
		return nil
	case m.Conn.RemoteHasDisconnected(err):
		m.Logger.Verbose("peer closed the connection")
		return nil
	default:
		return fmt.Errorf("receive: %w", err)
	}
}
