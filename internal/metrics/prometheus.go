package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goattempt/attempt"
	"goattempt/util"
)

const namespace = "goattempt"

// ── Prometheus export ────────────────────────────────────────────────

// promCollector reads a Collector at scrape time.
type promCollector struct {
	c *Collector

	sessions   *prometheus.Desc
	active     *prometheus.Desc
	attempts   *prometheus.Desc
	failures   *prometheus.Desc
	reconnects *prometheus.Desc
	bytes      *prometheus.Desc
}

func newPromCollector(c *Collector) *promCollector {
	return &promCollector{
		c: c,
		sessions: prometheus.NewDesc(namespace+"_sessions_total",
			"Connection sessions by outcome.", []string{"outcome"}, nil),
		active: prometheus.NewDesc(namespace+"_sessions_active",
			"Connection sessions still attempting.", nil, nil),
		attempts: prometheus.NewDesc(namespace+"_attempts_total",
			"Connection attempts issued.", nil, nil),
		failures: prometheus.NewDesc(namespace+"_attempt_failures_total",
			"Failed connection attempts by reason.", []string{"reason"}, nil),
		reconnects: prometheus.NewDesc(namespace+"_reconnects_total",
			"Reconnections after the peer disconnected.", nil, nil),
		bytes: prometheus.NewDesc(namespace+"_bytes_total",
			"Payload bytes moved over established connections.", []string{"direction"}, nil),
	}
}

func (p *promCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.sessions
	ch <- p.active
	ch <- p.attempts
	ch <- p.failures
	ch <- p.reconnects
	ch <- p.bytes
}

func (p *promCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.c.Snapshot()

	for state, n := range map[attempt.State]int64{
		attempt.Succeeded: s.Succeeded,
		attempt.Stopped:   s.Stopped,
		attempt.Exhausted: s.Exhausted,
		attempt.Aborted:   s.Aborted,
	} {
		ch <- prometheus.MustNewConstMetric(p.sessions, prometheus.CounterValue, float64(n), state.String())
	}
	ch <- prometheus.MustNewConstMetric(p.active, prometheus.GaugeValue, float64(s.SessionsActive))
	ch <- prometheus.MustNewConstMetric(p.attempts, prometheus.CounterValue, float64(s.Attempts))
	ch <- prometheus.MustNewConstMetric(p.failures, prometheus.CounterValue, float64(s.Timeouts), "timeout")
	ch <- prometheus.MustNewConstMetric(p.failures, prometheus.CounterValue, float64(s.Failures), "error")
	ch <- prometheus.MustNewConstMetric(p.reconnects, prometheus.CounterValue, float64(s.Reconnects))
	ch <- prometheus.MustNewConstMetric(p.bytes, prometheus.CounterValue, float64(s.BytesIn), "in")
	ch <- prometheus.MustNewConstMetric(p.bytes, prometheus.CounterValue, float64(s.BytesOut), "out")
}

// Register exports c through reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if c == nil {
		return errors.New("metrics: nil collector")
	}
	return reg.Register(newPromCollector(c))
}

// Handler returns an HTTP handler serving /metrics from reg and the
// JSON snapshot of c on /stats.
func Handler(c *Collector, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(c.JSON()))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve listens on addr and serves [Handler] until ctx is cancelled.
// The bound address is sent on ready, if non-nil, once listening.
func Serve(ctx context.Context, addr string, c *Collector, reg *prometheus.Registry, logger *util.Logger, ready chan<- net.Addr) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           Handler(c, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Verbose("serving metrics on http://%s/metrics", ln.Addr())
	if ready != nil {
		ready <- ln.Addr()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
