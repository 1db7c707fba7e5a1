package transport

import (
	"context"
	"errors"
	"sync"

	"goattempt/capability"
	"goattempt/util"
)

// dialFunc opens a duplex to endpoint using cfg.
type dialFunc[C any] func(ctx context.Context, endpoint string, cfg C) (duplex, error)

// Conn implements [capability.Conn] for one transport.  The concrete
// bindings are instantiations: [TCPConn], [UDPConn], [SSHConn],
// [QUICConn] and [WSConn].
type Conn[C any] struct {
	stream

	kind  Kind
	cfgMu sync.RWMutex
	cfg   C
	dial  dialFunc[C]

	release func() error // frees per-connection resources on Close
}

var _ capability.Conn[TCPConfig] = (*Conn[TCPConfig])(nil)

func newConn[C any](kind Kind, cfg C, dial dialFunc[C], logger *util.Logger, mapErr func(error) error) *Conn[C] {
	logger = logger.With("transport", string(kind))
	return &Conn[C]{
		stream: newStream(logger, mapErr),
		kind:   kind,
		cfg:    cfg,
		dial:   dial,
	}
}

// Kind reports which transport the connection uses.
func (c *Conn[C]) Kind() Kind { return c.kind }

// Configure replaces the configuration used by later connects.
func (c *Conn[C]) Configure(cfg C) {
	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()
}

// Config returns the current configuration.
func (c *Conn[C]) Config() C {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// AsyncConnect dials endpoint in the background.  On success the new
// link replaces any previous one.
func (c *Conn[C]) AsyncConnect(endpoint string, done func(err error)) {
	cfg := c.Config()
	c.logger.Debug("connecting to %s", endpoint)
	c.connect(func(ctx context.Context) (duplex, error) {
		return c.dial(ctx, endpoint, cfg)
	}, done)
}

// AsyncSend writes all of p, then reports how much was written.
func (c *Conn[C]) AsyncSend(p []byte, done func(n int, err error)) {
	c.send(p, done)
}

// AsyncReceive reads up to [capability.BufferSize] bytes into buf.
func (c *Conn[C]) AsyncReceive(buf *capability.Buffer, done func(n int, err error)) {
	c.receive(buf, done)
}

// Close cancels pending operations and closes the link.
func (c *Conn[C]) Close() error {
	err := c.stream.Close()
	if c.release != nil {
		err = errors.Join(err, c.release())
	}
	return err
}

// RemoteHasDisconnected reports whether err means the peer went away.
func (c *Conn[C]) RemoteHasDisconnected(err error) bool {
	return capability.IsDisconnect(err)
}
