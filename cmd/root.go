// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"goattempt/config"
	"goattempt/internal/core"
	"goattempt/internal/metrics"
	"goattempt/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X goattempt/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// cliFlags are the flags that steer the CLI itself rather than the
// connection.
type cliFlags struct {
	configFile  string
	showVersion bool
	showHelp    bool
}

// Execute parses args and runs the appropriate goattempt mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// ── first pass: locate the config file ──────────────────────────
	var cli cliFlags
	probe := newFlagSet(config.Default(), &cli, stderr)
	if err := probe.Parse(args); err != nil {
		return err
	}

	if cli.showHelp || len(args) == 0 {
		printUsage(probe, stderr)
		return nil
	}
	if cli.showVersion {
		fmt.Fprintf(stdout, "goattempt %s\n", version)
		return nil
	}

	// ── defaults < file < environment < flags ────────────────────────
	cfg := config.Default()
	if cli.configFile != "" {
		if err := config.LoadFile(cli.configFile, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	fs := newFlagSet(cfg, &cli, stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DryRun {
		printPlan(cfg, stdout)
		return nil
	}

	// ── build components ─────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	stats := metrics.New()

	mode, err := core.Build(cfg, logger, stats)
	if err != nil {
		return err
	}
	switch m := mode.(type) {
	case *core.ConnectMode:
		m.Stdout = stdout
	case *core.WatchMode:
		m.Stdout = stdout
	}

	stopMetrics, err := serveMetrics(ctx, cfg.MetricsAddr, stats, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	err = mode.Run(ctx)

	if cfg.Stats {
		fmt.Fprintln(stderr, stats.JSON())
	}
	return err
}

// serveMetrics starts the Prometheus endpoint when addr is set.  The
// returned function stops it and waits for it to finish.
func serveMetrics(ctx context.Context, addr string, stats *metrics.Collector, logger *util.Logger) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	reg := prometheus.NewRegistry()
	if err := stats.Register(reg); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(ctx, addr, stats, reg, logger, nil); err != nil {
			logger.Warn("metrics server: %v", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

// ── flags ────────────────────────────────────────────────────────────

func newFlagSet(cfg *config.Config, cli *cliFlags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("goattempt", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── target ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.Transport, "transport", "t", cfg.Transport, "Transport: tcp, udp, ssh, quic, ws")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local source port")
	fs.BoolVar(&cfg.NoDNS, "no-dns", cfg.NoDNS, "Numeric-only, no DNS resolution")

	// ── attempts ─────────────────────────────────────────────────
	fs.IntVarP(&cfg.Attempts, "attempts", "n", cfg.Attempts, "Maximum connection attempts")
	fs.DurationVarP(&cfg.Timeout, "timeout", "w", cfg.Timeout, "Timeout of each attempt")
	fs.BoolVar(&cfg.Forever, "forever", cfg.Forever, "Retry without limit and reconnect after disconnects")
	fs.BoolVar(&cfg.Forever, "watch", cfg.Forever, "Alias for --forever")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Pause after the first failed attempt, doubling after each")
	fs.DurationVar(&cfg.MaxDelay, "max-delay", cfg.MaxDelay, "Cap on the pause between attempts")
	fs.BoolVar(&cfg.Jitter, "jitter", cfg.Jitter, "Randomise pauses by ±25%")
	fs.BoolVar(&cfg.StopOnRefused, "stop-on-refused", cfg.StopOnRefused, "Give up when the connection is refused")
	fs.IntVar(&cfg.Breaker, "breaker", cfg.Breaker, "Give up after N consecutive failures (0 = off)")
	fs.DurationVar(&cfg.BreakerCooldown, "breaker-cooldown", cfg.BreakerCooldown, "How long an open breaker refuses new runs")

	// ── payload ──────────────────────────────────────────────────
	fs.StringVar(&cfg.Send, "send", cfg.Send, "Send this payload once connected")
	fs.BoolVar(&cfg.Recv, "recv", cfg.Recv, "Print one reply once connected")

	// ── SSH gateway ──────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Connect through SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── QUIC / WebSocket ─────────────────────────────────────────
	fs.StringSliceVar(&cfg.ALPN, "alpn", cfg.ALPN, "Application protocols offered over QUIC")
	fs.BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "Skip TLS certificate verification")
	fs.StringArrayVarP(&cfg.Headers, "header", "H", cfg.Headers, `WebSocket handshake header "Name: value" (repeatable)`)
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "QUIC/WebSocket handshake timeout")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print attempt statistics as JSON on exit")
	verbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	cfg.Verbose = verbose // CountVarP zeroes its target
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")

	fs.StringVar(&cli.configFile, "config", "", "YAML config file")
	fs.BoolVar(&cli.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&cli.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs, stderr) }
	return fs
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads "<host> <port>" or a single "<url>".  Both are
// optional when the config file or environment supplied the target.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return nil
	case 1:
		if !strings.Contains(remaining[0], "://") {
			return errors.New("port required (use --help for usage)")
		}
		cfg.URL = remaining[0]
		if strings.EqualFold(cfg.Transport, config.DefaultTransport) {
			cfg.Transport = "ws"
		}
		return nil
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(cfg.Transport, remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
		return nil
	}
	return fmt.Errorf("too many arguments: %s", strings.Join(remaining, " "))
}

func printPlan(cfg *config.Config, w io.Writer) {
	kind, _ := cfg.Kind()
	budget := fmt.Sprintf("%d attempt(s) of %v", cfg.Attempts, cfg.Timeout)
	if cfg.Forever {
		budget = fmt.Sprintf("unlimited attempts of %v, reconnecting on loss", cfg.Timeout)
	}
	fmt.Fprintf(w, "would connect to %s via %s: %s\n", cfg.Endpoint(), kind, budget)
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "  through gateway %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `goattempt – connection attempt tool v%s

Tries to connect to an endpoint until it answers, a retry policy gives
up, or the attempt budget runs out.

Usage:
  goattempt [options] <host> <port>           Bounded connect
  goattempt --forever [options] <host> <port> Keep connected, reconnect on loss
  goattempt -t ws [options] <ws-url>          WebSocket
  goattempt -T user@gateway <host> <port>     Through an SSH gateway

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  goattempt -n 15 -w 20ms 127.0.0.1 12000      15 quick attempts
  goattempt --delay 1s --jitter db 5432        Wait for a database
  goattempt --send ping --recv host 7          Echo round trip
  goattempt -t quic --alpn h3 host 443         QUIC handshake
  goattempt --forever --metrics-addr :9100 host 9000
`)
}
