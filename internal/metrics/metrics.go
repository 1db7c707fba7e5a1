// Package metrics provides lightweight, lock-free counters and gauges
// for tracking connection attempts, and exports them to Prometheus.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"goattempt/attempt"
	"goattempt/capability"
)

// Collector tracks attempt statistics across sessions.  It implements
// [attempt.Observer], so it can be handed straight to the engine.
// A nil Collector is safe to use: all methods become no-ops.
type Collector struct {
	sessionsStarted atomic.Int64
	sessionsActive  atomic.Int64
	attempts        atomic.Int64
	timeouts        atomic.Int64
	failures        atomic.Int64
	succeeded       atomic.Int64
	stopped         atomic.Int64
	exhausted       atomic.Int64
	aborted         atomic.Int64
	reconnects      atomic.Int64
	bytesIn         atomic.Int64
	bytesOut        atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastConnect  time.Time
	lastError    time.Time
	lastErrorMsg string
}

var _ attempt.Observer = (*Collector)(nil)

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Engine events ────────────────────────────────────────────────────

// SessionStarted counts a new session.
func (c *Collector) SessionStarted(uuid.UUID, string) {
	if c == nil {
		return
	}
	c.sessionsStarted.Add(1)
	c.sessionsActive.Add(1)
}

// AttemptStarted counts an issued attempt.
func (c *Collector) AttemptStarted(attempt.Record) {
	if c == nil {
		return
	}
	c.attempts.Add(1)
}

// AttemptFinished classifies a settled attempt.  Aborted attempts are
// counted by the session outcome only.
func (c *Collector) AttemptFinished(rec attempt.Record) {
	if c == nil || rec.Err == nil {
		return
	}
	switch {
	case errors.Is(rec.Err, capability.ErrOperationAborted):
		return
	case errors.Is(rec.Err, attempt.ErrTimedOut):
		c.timeouts.Add(1)
	default:
		c.failures.Add(1)
	}
	c.RecordError(rec.Err.Error())
}

// SessionFinished counts the outcome of a session.
func (c *Collector) SessionFinished(res attempt.Result) {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
	switch res.State {
	case attempt.Succeeded:
		c.succeeded.Add(1)
		c.mu.Lock()
		c.lastConnect = time.Now()
		c.mu.Unlock()
	case attempt.Stopped:
		c.stopped.Add(1)
	case attempt.Exhausted:
		c.exhausted.Add(1)
	case attempt.Aborted:
		c.aborted.Add(1)
	}
}

// ── Session metrics ──────────────────────────────────────────────────

// ActiveSessions returns the number of sessions still running.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalAttempts returns the number of attempts issued.
func (c *Collector) TotalAttempts() int64 {
	if c == nil {
		return 0
	}
	return c.attempts.Load()
}

// Outcomes returns how many sessions ended in each terminal state.
func (c *Collector) Outcomes() map[attempt.State]int64 {
	if c == nil {
		return map[attempt.State]int64{}
	}
	return map[attempt.State]int64{
		attempt.Succeeded: c.succeeded.Load(),
		attempt.Stopped:   c.stopped.Load(),
		attempt.Exhausted: c.exhausted.Load(),
		attempt.Aborted:   c.aborted.Load(),
	}
}

// ── Reconnects ───────────────────────────────────────────────────────

// Reconnect records a reconnection after the peer disconnected.
func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.reconnects.Add(1)
}

// Reconnects returns the total reconnection count.
func (c *Collector) Reconnects() int64 {
	if c == nil {
		return 0
	}
	return c.reconnects.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError stores the message of the latest failure.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the number of failed or timed-out attempts.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.timeouts.Load() + c.failures.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsStarted  int64  `json:"sessions_started"`
	SessionsActive   int64  `json:"sessions_active"`
	Attempts         int64  `json:"attempts"`
	Timeouts         int64  `json:"timeouts"`
	Failures         int64  `json:"failures"`
	Succeeded        int64  `json:"succeeded"`
	Stopped          int64  `json:"stopped"`
	Exhausted        int64  `json:"exhausted"`
	Aborted          int64  `json:"aborted"`
	Reconnects       int64  `json:"reconnects"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	LastConnect      string `json:"last_connect,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsStarted: c.sessionsStarted.Load(),
		SessionsActive:  c.sessionsActive.Load(),
		Attempts:        c.attempts.Load(),
		Timeouts:        c.timeouts.Load(),
		Failures:        c.failures.Load(),
		Succeeded:       c.succeeded.Load(),
		Stopped:         c.stopped.Load(),
		Exhausted:       c.exhausted.Load(),
		Aborted:         c.aborted.Load(),
		Reconnects:      c.reconnects.Load(),
		BytesIn:         c.bytesIn.Load(),
		BytesOut:        c.bytesOut.Load(),
	}
	if !c.lastConnect.IsZero() {
		s.LastConnect = c.lastConnect.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
