package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"goattempt/attempt"
	"goattempt/capability"
)

// replay feeds c the events of one session with the given attempt
// errors and outcome.
func replay(c *Collector, state attempt.State, errs ...error) {
	id := uuid.New()
	c.SessionStarted(id, "h:1")
	for i, err := range errs {
		rec := attempt.Record{Index: i + 1, Endpoint: "h:1", Started: time.Now()}
		c.AttemptStarted(rec)
		rec.Err = err
		c.AttemptFinished(rec)
	}
	c.SessionFinished(attempt.Result{ID: id, State: state, Attempts: len(errs)})
}

func TestCollector_SessionEvents(t *testing.T) {
	c := New()

	replay(c, attempt.Exhausted, attempt.ErrTimedOut, attempt.ErrTimedOut, syscall.ECONNREFUSED)
	replay(c, attempt.Succeeded, syscall.ECONNREFUSED, nil)
	replay(c, attempt.Aborted, capability.ErrOperationAborted)

	snap := c.Snapshot()
	if snap.SessionsStarted != 3 {
		t.Errorf("sessions started = %d, want 3", snap.SessionsStarted)
	}
	if snap.SessionsActive != 0 {
		t.Errorf("sessions active = %d, want 0", snap.SessionsActive)
	}
	if snap.Attempts != 6 {
		t.Errorf("attempts = %d, want 6", snap.Attempts)
	}
	if snap.Timeouts != 2 {
		t.Errorf("timeouts = %d, want 2", snap.Timeouts)
	}
	if snap.Failures != 2 {
		t.Errorf("failures = %d, want 2", snap.Failures)
	}
	if c.ErrorCount() != 4 {
		t.Errorf("error count = %d, want 4", c.ErrorCount())
	}

	out := c.Outcomes()
	if out[attempt.Exhausted] != 1 || out[attempt.Succeeded] != 1 || out[attempt.Aborted] != 1 || out[attempt.Stopped] != 0 {
		t.Errorf("outcomes = %v", out)
	}
	if snap.LastConnect == "" {
		t.Error("expected last connect timestamp after a success")
	}
	if !strings.Contains(snap.LastErrorMessage, "refused") {
		t.Errorf("last error = %q, want the refusal", snap.LastErrorMessage)
	}
}

func TestCollector_ActiveWhileRunning(t *testing.T) {
	c := New()
	c.SessionStarted(uuid.New(), "h:1")
	if c.ActiveSessions() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveSessions())
	}
	c.SessionFinished(attempt.Result{State: attempt.Stopped})
	if c.ActiveSessions() != 0 {
		t.Errorf("active = %d, want 0", c.ActiveSessions())
	}
}

func TestCollector_Bytes(t *testing.T) {
	c := New()

	c.BytesReceived(1024)
	c.BytesSent(512)
	c.BytesReceived(100)

	if c.TotalBytesIn() != 1124 {
		t.Errorf("bytes in = %d, want 1124", c.TotalBytesIn())
	}
	if c.TotalBytesOut() != 512 {
		t.Errorf("bytes out = %d, want 512", c.TotalBytesOut())
	}
}

func TestCollector_Reconnects(t *testing.T) {
	c := New()

	c.Reconnect()
	c.Reconnect()
	c.Reconnect()

	if c.Reconnects() != 3 {
		t.Errorf("reconnects = %d, want 3", c.Reconnects())
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	replay(c, attempt.Succeeded, nil)
	c.BytesSent(42)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.Succeeded != 1 {
		t.Errorf("JSON succeeded = %d", snap.Succeeded)
	}
	if snap.BytesOut != 42 {
		t.Errorf("JSON bytes out = %d", snap.BytesOut)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	replay(c, attempt.Exhausted, attempt.ErrTimedOut)
	c.BytesReceived(100)
	c.BytesSent(100)
	c.Reconnect()
	c.RecordError("test")

	if c.ActiveSessions() != 0 || c.TotalAttempts() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.TotalBytesIn() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}
	if len(c.Outcomes()) != 0 {
		t.Error("nil collector should have no outcomes")
	}
	if err := c.Register(prometheus.NewRegistry()); err == nil {
		t.Error("registering a nil collector should fail")
	}

	j := c.JSON()
	if j == "" {
		t.Error("nil JSON should return valid JSON")
	}
}

// ── Prometheus ───────────────────────────────────────────────────────

func scrape(t *testing.T, h http.Handler, path string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, rec.Code)
	}
	return rec.Body.String()
}

func TestRegister_Exports(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register(reg); err == nil {
		t.Error("second Register should report a duplicate")
	}

	replay(c, attempt.Stopped, attempt.ErrTimedOut, errors.New("boom"))
	c.BytesReceived(7)

	body := scrape(t, Handler(c, reg), "/metrics")
	for _, want := range []string{
		`goattempt_sessions_total{outcome="stopped"} 1`,
		`goattempt_sessions_total{outcome="succeeded"} 0`,
		`goattempt_attempts_total 2`,
		`goattempt_attempt_failures_total{reason="timeout"} 1`,
		`goattempt_attempt_failures_total{reason="error"} 1`,
		`goattempt_bytes_total{direction="in"} 7`,
		`goattempt_sessions_active 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestHandler_StatsAndHealth(t *testing.T) {
	c := New()
	replay(c, attempt.Succeeded, nil)
	h := Handler(c, prometheus.NewRegistry())

	var snap Snapshot
	if err := json.Unmarshal([]byte(scrape(t, h, "/stats")), &snap); err != nil {
		t.Fatalf("stats JSON: %v", err)
	}
	if snap.Succeeded != 1 {
		t.Errorf("stats succeeded = %d, want 1", snap.Succeeded)
	}
	if got := scrape(t, h, "/health"); got != "OK" {
		t.Errorf("health = %q", got)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", c, reg, nil, ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "goattempt_attempts_total") {
		t.Error("served metrics missing attempts counter")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
