// Package config defines the runtime configuration for goattempt and
// provides helpers for parsing gateway specifications and ports.
package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "goattempt/internal/errors"
	"goattempt/internal/transport"
	"goattempt/util"
)

// Config holds every tuneable for a single goattempt run.
type Config struct {
	// ── Target ───────────────────────────────────────────────────────
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	URL       string `yaml:"url"` // WebSocket endpoint
	Transport string `yaml:"transport"`
	LocalPort int    `yaml:"local_port"`
	NoDNS     bool   `yaml:"no_dns"`

	// ── Attempts ─────────────────────────────────────────────────────
	Attempts        int           `yaml:"attempts"`
	Forever         bool          `yaml:"forever"` // unbounded; reconnect after disconnects
	Timeout         time.Duration `yaml:"timeout"` // per attempt
	Delay           time.Duration `yaml:"delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	Jitter          bool          `yaml:"jitter"`
	StopOnRefused   bool          `yaml:"stop_on_refused"`
	Breaker         int           `yaml:"breaker"` // failures before the breaker opens; 0 = off
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`

	// ── Payload ──────────────────────────────────────────────────────
	Send string `yaml:"send"`
	Recv bool   `yaml:"recv"`

	// ── SSH gateway ──────────────────────────────────────────────────
	TunnelSpec       string `yaml:"tunnel"` // raw user@host[:port] from -T
	TunnelEnabled    bool   `yaml:"-"`
	TunnelUser       string `yaml:"-"`
	TunnelHost       string `yaml:"-"`
	TunnelPort       int    `yaml:"-"`
	SSHKeyPath       string `yaml:"ssh_key"`
	SSHPassword      bool   `yaml:"ssh_password"` // true → prompt interactively
	SSHPasswordValue string `yaml:"-"`            // environment only
	UseSSHAgent      bool   `yaml:"ssh_agent"`
	StrictHostKey    bool   `yaml:"strict_hostkey"`
	KnownHostsPath   string `yaml:"known_hosts"`

	// ── QUIC / WebSocket ─────────────────────────────────────────────
	ALPN             []string      `yaml:"alpn"`
	Insecure         bool          `yaml:"insecure"`
	Headers          []string      `yaml:"headers"` // "Name: value"
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ── Output ───────────────────────────────────────────────────────
	MetricsAddr string `yaml:"metrics_addr"`
	Stats       bool   `yaml:"stats"`
	Verbose     int    `yaml:"verbose"`
	DryRun      bool   `yaml:"-"`
}

// Default returns a Config populated with the values in defaults.go.
func Default() *Config {
	return &Config{
		Transport:        DefaultTransport,
		Attempts:         DefaultAttempts,
		Timeout:          DefaultAttemptTimeout,
		MaxDelay:         DefaultMaxDelay,
		BreakerCooldown:  DefaultBreakerCooldown,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// Kind returns the parsed transport kind.
func (c *Config) Kind() (transport.Kind, error) {
	if c.Transport == "" {
		return transport.TCP, nil
	}
	return transport.ParseKind(c.Transport)
}

// Endpoint returns what each attempt connects to: the URL for
// WebSocket, host:port otherwise.
func (c *Config) Endpoint() string {
	if kind, _ := c.Kind(); kind == transport.WebSocket {
		return c.URL
	}
	return util.FormatAddr(c.Host, c.Port)
}

// Normalize derives the gateway fields from TunnelSpec.  A gateway on
// the default TCP transport switches it to SSH.
func (c *Config) Normalize() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use -T user@gateway[:port]",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	if c.Transport == "" || strings.EqualFold(c.Transport, string(transport.TCP)) {
		c.Transport = string(transport.SSH)
	}
	return nil
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a numeric port or a service name such as "http".
func ParsePort(network, spec string) (int, error) {
	if port, err := strconv.Atoi(spec); err == nil {
		if port < 1 || port > 65535 {
			return 0, fmt.Errorf("port %d out of range 1-65535", port)
		}
		return port, nil
	}
	if spec == "" || strings.ContainsAny(spec, "-:") {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if network != "udp" {
		network = "tcp"
	}
	port, err := net.LookupPort(network, spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Every failure is an *errors.ConfigError naming the offending flag.
func (c *Config) Validate() error {
	kind, err := c.Kind()
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "transport",
			Value:   c.Transport,
			Message: "unknown transport",
			Hint:    "choose one of tcp, udp, ssh, quic, ws",
		}
	}

	if err := c.validateTarget(kind); err != nil {
		return err
	}

	if !c.Forever && c.Attempts < 1 {
		return &ncerr.ConfigError{
			Field:   "attempts",
			Value:   c.Attempts,
			Message: "must be at least 1",
			Hint:    "use --forever to keep trying without a limit",
		}
	}
	if c.Timeout <= 0 {
		return &ncerr.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "per-attempt timeout must be positive",
			Hint:    "for example -w 5s",
		}
	}
	if c.Delay < 0 {
		return &ncerr.ConfigError{Field: "delay", Value: c.Delay, Message: "must not be negative"}
	}
	if c.MaxDelay > 0 && c.Delay > c.MaxDelay {
		return &ncerr.ConfigError{
			Field:   "max-delay",
			Value:   c.MaxDelay,
			Message: fmt.Sprintf("is shorter than --delay=%v", c.Delay),
		}
	}
	if c.Breaker < 0 {
		return &ncerr.ConfigError{Field: "breaker", Value: c.Breaker, Message: "must not be negative"}
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.LocalPort, Message: "local port out of range 0-65535"}
	}

	switch kind {
	case transport.SSH:
		if !c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Message: "the ssh transport needs a gateway",
				Hint:    "add -T user@gateway[:port]",
			}
		}
		if c.TunnelHost == "" {
			return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
		}
	case transport.QUIC:
		if len(c.ALPN) == 0 {
			return &ncerr.ConfigError{
				Field:   "alpn",
				Message: "QUIC requires at least one application protocol",
				Hint:    "for example --alpn h3",
			}
		}
	}
	if c.TunnelEnabled && kind != transport.SSH {
		return &ncerr.ConfigError{
			Field:   "transport",
			Value:   c.Transport,
			Message: "only tcp connections can be forwarded through an SSH gateway",
		}
	}
	for _, h := range c.Headers {
		if name, _, ok := strings.Cut(h, ":"); !ok || strings.TrimSpace(name) == "" {
			return &ncerr.ConfigError{
				Field:   "header",
				Value:   h,
				Message: "malformed header",
				Hint:    `use "Name: value"`,
			}
		}
	}
	return nil
}

func (c *Config) validateTarget(kind transport.Kind) error {
	if kind == transport.WebSocket {
		if c.URL == "" {
			return &ncerr.ConfigError{
				Field:   "url",
				Message: "a WebSocket URL is required",
				Hint:    "goattempt -t ws ws://host:port/path",
			}
		}
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return &ncerr.ConfigError{
				Field:   "url",
				Value:   c.URL,
				Message: "not a ws:// or wss:// URL",
			}
		}
		return nil
	}

	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "hostname is required",
			Hint:    "goattempt [options] <host> <port>",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "destination port out of range 1-65535",
		}
	}
	if err := util.CheckHost(c.Host, c.NoDNS); err != nil {
		return &ncerr.ConfigError{
			Field:   "no-dns",
			Value:   c.Host,
			Message: "not an IP address",
			Hint:    "drop --no-dns to allow DNS resolution",
		}
	}
	return nil
}
