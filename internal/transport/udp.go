package transport

import (
	"context"
	"fmt"
	"net"

	"goattempt/capability"
	"goattempt/util"
)

// UDPConfig tunes connected UDP sockets.
type UDPConfig struct {
	LocalPort int // optional source-port binding (0 = ephemeral)
}

// Equal reports whether two configurations are identical.
func (c UDPConfig) Equal(o UDPConfig) bool { return capability.Comparable(c, o) }

// UDPConn is a capability connection over a connected UDP socket.
// Connecting only associates the socket with the remote address, so
// it succeeds whenever the address resolves; a closed port shows up as
// ECONNREFUSED on a later receive.
type UDPConn = Conn[UDPConfig]

// NewUDP returns an unconnected UDP connection.
func NewUDP(cfg UDPConfig, logger *util.Logger) *UDPConn {
	return newConn(UDP, cfg, dialUDP, logger, nil)
}

func dialUDP(ctx context.Context, endpoint string, cfg UDPConfig) (duplex, error) {
	var dialer net.Dialer

	if cfg.LocalPort > 0 {
		a, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", cfg.LocalPort))
		if err != nil {
			return nil, fmt.Errorf("resolve local addr: %w", err)
		}
		dialer.LocalAddr = a
	}

	return dialer.DialContext(ctx, "udp", endpoint)
}
