package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "goattempt/internal/errors"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = execute(ctx, args, &out, &errOut)
	return out.String(), errOut.String(), err
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	out, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "goattempt "+version+"\n", out)
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			_, usage, err := run(t, args...)
			require.NoError(t, err)
			assert.Contains(t, usage, "--forever")
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	out, _, err := run(t, "-n", "15", "-w", "20ms", "--dry-run", "127.0.0.1", "12000")
	require.NoError(t, err)
	assert.Equal(t, "would connect to 127.0.0.1:12000 via tcp: 15 attempt(s) of 20ms\n", out)
}

func TestExecute_DryRunTunnel(t *testing.T) {
	out, _, err := run(t, "-T", "admin@bastion", "--dry-run", "db.internal", "5432")
	require.NoError(t, err)
	assert.Contains(t, out, "via ssh")
	assert.Contains(t, out, "through gateway admin@bastion:22")
}

func TestExecute_DryRunURL(t *testing.T) {
	out, _, err := run(t, "--forever", "--dry-run", "ws://127.0.0.1:8080/feed")
	require.NoError(t, err)
	assert.Equal(t, "would connect to ws://127.0.0.1:8080/feed via ws: unlimited attempts of 5s, reconnecting on loss\n", out)
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	_, _, err := run(t, "-n", "0", "--dry-run", "127.0.0.1", "80")
	var ce *ncerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "attempts", ce.Field)
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	_, _, err := run(t, "--nonexistent-flag")
	assert.Error(t, err)
}

func TestExecute_Positional(t *testing.T) {
	_, _, err := run(t, "--dry-run", "localhost")
	assert.ErrorContains(t, err, "port required")

	_, _, err = run(t, "--dry-run", "localhost", "80", "extra")
	assert.ErrorContains(t, err, "too many arguments")

	_, _, err = run(t, "--dry-run", "localhost", "eighty")
	assert.ErrorContains(t, err, "port")

	out, _, err := run(t, "--dry-run", "localhost", "http")
	require.NoError(t, err)
	assert.Contains(t, out, "localhost:80")
}

// TestExecute_Precedence verifies defaults < file < environment < flags.
func TestExecute_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goattempt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: from-file\nport: 1000\nattempts: 3\ntimeout: 2s\n"), 0o600))
	t.Setenv("GOATTEMPT_ATTEMPTS", "4")
	t.Setenv("GOATTEMPT_VERBOSE", "1")

	out, _, err := run(t, "--config", path, "--dry-run", "-w", "1s")
	require.NoError(t, err)
	assert.Equal(t, "would connect to from-file:1000 via tcp: 4 attempt(s) of 1s\n", out)

	_, _, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--dry-run")
	assert.Error(t, err)
}

// TestExecute_Connect runs a real bounded session against an echo
// server and checks the reply and statistics.
func TestExecute_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		io.Copy(c, c) //nolint:errcheck
	}()
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	out, errOut, err := run(t, "--send", "ping", "--recv", "--stats", "127.0.0.1", port)
	require.NoError(t, err)
	assert.Equal(t, "ping", out)
	assert.Contains(t, errOut, `"succeeded": 1`)
}

// TestExecute_Refused verifies the session error is returned.
func TestExecute_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()

	_, _, err = run(t, "-n", "2", "--stop-on-refused", "127.0.0.1", port)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED), "err = %v", err)
	assert.True(t, strings.Contains(err.Error(), "stopped after 1 attempt(s)"), "err = %v", err)
}

func TestExecute_MetricsServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	_, _, err = run(t, "--metrics-addr", "127.0.0.1:0", "127.0.0.1", port)
	require.NoError(t, err)
}
