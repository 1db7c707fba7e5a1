package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"goattempt/capability"
	"goattempt/util"
)

// TCPConfig tunes plain TCP connections.
type TCPConfig struct {
	LocalPort int           // optional source-port binding (0 = ephemeral)
	KeepAlive time.Duration // 0 = system default, negative disables
	NoDelay   bool
}

// Equal reports whether two configurations are identical.
func (c TCPConfig) Equal(o TCPConfig) bool { return capability.Comparable(c, o) }

// TCPConn is a capability connection over TCP.
type TCPConn = Conn[TCPConfig]

// NewTCP returns an unconnected TCP connection.
func NewTCP(cfg TCPConfig, logger *util.Logger) *TCPConn {
	return newConn(TCP, cfg, dialTCP, logger, nil)
}

func dialTCP(ctx context.Context, endpoint string, cfg TCPConfig) (duplex, error) {
	dialer := net.Dialer{KeepAlive: cfg.KeepAlive}

	if cfg.LocalPort > 0 {
		a, err := net.ResolveTCPAddr("tcp", fmt.Sprintf(":%d", cfg.LocalPort))
		if err != nil {
			return nil, fmt.Errorf("resolve local addr: %w", err)
		}
		dialer.LocalAddr = a
	}

	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(cfg.NoDelay)
	}
	return conn, nil
}
