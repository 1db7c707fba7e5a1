package config

// loader.go - configuration loading from a YAML file and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. Config file (--config)
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ── Config file ──────────────────────────────────────────────────────

// LoadFile overlays the YAML document at path onto cfg.  Keys absent
// from the file keep their current value; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the GOATTEMPT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("250ms") or a plain number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flags are applied so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GOATTEMPT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("GOATTEMPT_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv("GOATTEMPT_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("GOATTEMPT_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := envInt("GOATTEMPT_LOCAL_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if envBool("GOATTEMPT_NO_DNS") {
		cfg.NoDNS = true
	}

	// Attempts
	if v := envInt("GOATTEMPT_ATTEMPTS"); v > 0 {
		cfg.Attempts = v
	}
	if envBool("GOATTEMPT_FOREVER") {
		cfg.Forever = true
	}
	if v := envDuration("GOATTEMPT_TIMEOUT"); v > 0 {
		cfg.Timeout = v
	}
	if v := envDuration("GOATTEMPT_DELAY"); v > 0 {
		cfg.Delay = v
	}
	if v := envDuration("GOATTEMPT_MAX_DELAY"); v > 0 {
		cfg.MaxDelay = v
	}
	if envBool("GOATTEMPT_JITTER") {
		cfg.Jitter = true
	}
	if envBool("GOATTEMPT_STOP_ON_REFUSED") {
		cfg.StopOnRefused = true
	}
	if v := envInt("GOATTEMPT_BREAKER"); v > 0 {
		cfg.Breaker = v
	}

	// Payload
	if v := os.Getenv("GOATTEMPT_SEND"); v != "" {
		cfg.Send = v
	}
	if envBool("GOATTEMPT_RECV") {
		cfg.Recv = true
	}

	// SSH gateway
	if v := os.Getenv("GOATTEMPT_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("GOATTEMPT_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if v := os.Getenv("GOATTEMPT_SSH_PASSWORD"); v != "" {
		cfg.SSHPasswordValue = v
	}
	if envBool("GOATTEMPT_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("GOATTEMPT_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("GOATTEMPT_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// QUIC / WebSocket
	if v := os.Getenv("GOATTEMPT_ALPN"); v != "" {
		cfg.ALPN = splitList(v)
	}
	if envBool("GOATTEMPT_INSECURE") {
		cfg.Insecure = true
	}

	// Output
	if v := os.Getenv("GOATTEMPT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if envBool("GOATTEMPT_STATS") {
		cfg.Stats = true
	}
	if v := envInt("GOATTEMPT_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return secondsDuration(n)
	}
	return 0
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
