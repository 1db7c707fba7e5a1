package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"goattempt/tunnel"
	"goattempt/util"
)

// SSHConfig routes connections through an SSH gateway.  It holds the
// gateway settings by pointer and has no Equal method, so
// [capability.CompareConfigs] always reports two of them as different.
type SSHConfig struct {
	Gateway *tunnel.SSHConfig
	Network string // network dialled from the gateway (default "tcp")
}

// SSHConn is a capability connection forwarded through an SSH gateway.
//
// Forwarded channels do not support deadlines, so cancelling a pending
// send or receive closes the channel; the next connect opens a new one.
type SSHConn = Conn[SSHConfig]

// NewSSH returns an unconnected SSH-forwarded connection.  The gateway
// is connected lazily by the first attempt and reconnected by any later
// attempt that finds it dead.
func NewSSH(cfg SSHConfig, logger *util.Logger) *SSHConn {
	gw := &sshGateway{logger: logger}
	c := newConn(SSH, cfg, gw.dial, logger, nil)
	c.release = gw.Close
	return c
}

// sshGateway owns the tunnel for the gateway settings currently in use.
type sshGateway struct {
	mu     sync.Mutex
	cfg    *tunnel.SSHConfig
	tun    *tunnel.SSHTunnel
	logger *util.Logger
}

func (g *sshGateway) get(cfg *tunnel.SSHConfig) *tunnel.SSHTunnel {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tun == nil || g.cfg != cfg {
		if g.tun != nil {
			g.tun.Close()
		}
		g.logger.Verbose("using SSH gateway %s@%s", cfg.User, cfg.Addr())
		g.cfg = cfg
		g.tun = tunnel.NewSSHTunnel(cfg, g.logger)
	}
	return g.tun
}

func (g *sshGateway) dial(ctx context.Context, endpoint string, cfg SSHConfig) (duplex, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("ssh: no gateway configured")
	}
	tun := g.get(cfg.Gateway)
	if err := tun.Ensure(ctx); err != nil {
		return nil, err
	}

	network := cfg.Network
	if network == "" {
		network = "tcp"
	}
	c, err := tun.Dial(ctx, network, endpoint)
	if err != nil {
		return nil, err
	}
	return &sshChannel{Conn: c}, nil
}

// Close tears down the gateway connection.
func (g *sshGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tun == nil {
		return nil
	}
	err := g.tun.Close()
	g.tun = nil
	g.cfg = nil
	return err
}

// sshChannel interrupts blocked I/O by closing the channel, since
// forwarded channels reject deadlines.
type sshChannel struct {
	net.Conn
}

func (c *sshChannel) SetDeadline(t time.Time) error {
	if !t.IsZero() && !t.After(time.Now()) {
		return c.Conn.Close()
	}
	return nil
}
