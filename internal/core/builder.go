package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"goattempt/attempt"
	"goattempt/config"
	"goattempt/internal/metrics"
	"goattempt/internal/retry"
	"goattempt/internal/transport"
	"goattempt/tunnel"
	"goattempt/util"
)

// Build constructs the appropriate Mode from the given configuration.
// stats may be nil.
func Build(cfg *config.Config, logger *util.Logger, stats *metrics.Collector) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}

	conn, err := transport.New(kind, buildOptions(cfg, kind), logger)
	if err != nil {
		return nil, err
	}

	breaker := buildBreaker(cfg, logger)
	decide := buildDecision(cfg, breaker)
	opts := []attempt.Option{
		attempt.WithLogger(logger),
		attempt.WithPacer(&retry.Backoff{
			InitialDelay: cfg.Delay,
			MaxDelay:     cfg.MaxDelay,
			Jitter:       cfg.Jitter,
		}),
	}
	if stats != nil {
		opts = append(opts, attempt.WithObserver(stats))
	}

	if cfg.Forever {
		return buildWatch(cfg, conn, decide, breaker, opts, logger, stats), nil
	}
	return &ConnectMode{
		Conn:     conn,
		Endpoint: cfg.Endpoint(),
		Attempts: cfg.Attempts,
		Timeout:  cfg.Timeout,
		Decide:   decide,
		Options:  opts,
		Breaker:  breaker,
		Send:     []byte(cfg.Send),
		Recv:     cfg.Recv,
		Metrics:  stats,
		Logger:   logger,
	}, nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildWatch(cfg *config.Config, conn transport.Binding, decide attempt.Decision,
	breaker *retry.CircuitBreaker, opts []attempt.Option, logger *util.Logger, stats *metrics.Collector) *WatchMode {
	pause := cfg.Delay
	if pause < config.DefaultReconnectDelay {
		pause = config.DefaultReconnectDelay
	}
	maxPause := cfg.MaxDelay
	if maxPause < pause {
		maxPause = pause
	}
	return &WatchMode{
		Conn:     conn,
		Attempt:  attempt.Make(conn, decide, opts...),
		Endpoint: cfg.Endpoint(),
		Timeout:  cfg.Timeout,
		Reconnect: &retry.Backoff{
			InitialDelay: pause,
			MaxDelay:     maxPause,
			Jitter:       cfg.Jitter,
		},
		Breaker: breaker,
		Send:    []byte(cfg.Send),
		Metrics: stats,
		Logger:  logger,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

// buildOptions maps the config onto the binding options of kind.
func buildOptions(cfg *config.Config, kind transport.Kind) transport.Options {
	opts := transport.Options{
		LocalPort:        cfg.LocalPort,
		KeepAlive:        config.DefaultKeepAlive,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ALPN:             cfg.ALPN,
	}

	switch kind {
	case transport.SSH:
		opts.Gateway = &tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			Password:      cfg.SSHPasswordValue,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   config.DefaultSSHConnTimeout,
		}
		opts.Network = "tcp"
	case transport.QUIC, transport.WebSocket:
		opts.TLS = &tls.Config{
			InsecureSkipVerify: cfg.Insecure, //nolint:gosec // opt-in via --insecure
			NextProtos:         cfg.ALPN,
		}
		opts.Header = buildHeader(cfg.Headers)
	}
	return opts
}

// buildHeader parses "Name: value" lines; Validate has already
// rejected malformed ones.
func buildHeader(lines []string) http.Header {
	if len(lines) == 0 {
		return nil
	}
	h := make(http.Header, len(lines))
	for _, line := range lines {
		name, value, _ := strings.Cut(line, ":")
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h
}

func buildBreaker(cfg *config.Config, logger *util.Logger) *retry.CircuitBreaker {
	if cfg.Breaker <= 0 {
		return nil
	}
	return retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		MaxFailures:  cfg.Breaker,
		ResetTimeout: cfg.BreakerCooldown,
		OnStateChange: func(from, to retry.State) {
			logger.Verbose("circuit breaker %s → %s", from, to)
		},
	})
}

// buildDecision composes the stop policy: errors another attempt cannot
// fix always stop; refusals and an open breaker stop when configured.
func buildDecision(cfg *config.Config, breaker *retry.CircuitBreaker) attempt.Decision {
	decisions := []attempt.Decision{retry.StopUnlessRetryable()}
	if cfg.StopOnRefused {
		decisions = append(decisions, retry.StopOnRefused())
	}
	if breaker != nil {
		decisions = append(decisions, breaker.Decide)
	}
	return retry.Any(decisions...)
}

// describe names the target of a run for log lines.
func describe(kind transport.Kind, endpoint string) string {
	return fmt.Sprintf("%s (%s)", endpoint, kind)
}
