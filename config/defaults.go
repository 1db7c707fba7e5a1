package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultTransport is used when no --transport is given.
	DefaultTransport = "tcp"

	// DefaultAttempts is the budget of a bounded run.
	DefaultAttempts = 10

	// DefaultAttemptTimeout limits each connection attempt.
	DefaultAttemptTimeout = 5 * time.Second

	// DefaultMaxDelay caps the exponential backoff between attempts.
	DefaultMaxDelay = 60 * time.Second

	// DefaultReconnectDelay is the pause before reconnecting after the
	// peer disconnected in --forever mode, when --delay is not set.
	DefaultReconnectDelay = 1 * time.Second

	// DefaultBreakerCooldown is how long an open circuit breaker waits
	// before letting a probe session through.
	DefaultBreakerCooldown = 30 * time.Second

	// DefaultHandshakeTimeout bounds QUIC and WebSocket handshakes.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultKeepAlive is the TCP and QUIC keepalive period.
	DefaultKeepAlive = 30 * time.Second

	// DefaultSSHConnTimeout is the SSH gateway handshake timeout.
	DefaultSSHConnTimeout = 30 * time.Second
)
