// Package transport binds the connection capability contract to real
// transports.  Every binding is a [Conn] over a blocking duplex (a TCP
// or UDP socket, an SSH-forwarded channel, a QUIC stream or a
// WebSocket); a shared core turns its blocking I/O into the
// asynchronous, cancellable operations the connection engine drives.
package transport

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"goattempt/capability"
	ncerr "goattempt/internal/errors"
	"goattempt/tunnel"
	"goattempt/util"
)

// Kind names a transport.
type Kind string

const (
	TCP       Kind = "tcp"
	UDP       Kind = "udp"
	SSH       Kind = "ssh"
	QUIC      Kind = "quic"
	WebSocket Kind = "ws"
)

// Kinds lists every supported transport.
var Kinds = []Kind{TCP, UDP, SSH, QUIC, WebSocket}

// ParseKind resolves a transport name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case TCP, UDP, SSH, QUIC, WebSocket:
		return k, nil
	case "websocket":
		return WebSocket, nil
	}
	return "", fmt.Errorf("%w %q", ncerr.ErrUnknownKind, s)
}

// Binding is a connection of any kind with its configuration type
// erased.  Every *Conn[C] satisfies it, and since bindings are pointers
// they can key the engine's per-connection session table.
type Binding interface {
	capability.Connecter
	AsyncSend(p []byte, done func(n int, err error))
	AsyncReceive(buf *capability.Buffer, done func(n int, err error))
	RemoteHasDisconnected(err error) bool
	Kind() Kind
	Close() error
}

// Options gathers the settings of every binding; each kind reads the
// fields it understands.
type Options struct {
	LocalPort int
	KeepAlive time.Duration
	NoDelay   bool

	Gateway *tunnel.SSHConfig // SSH
	Network string            // SSH: network dialled from the gateway

	TLS              *tls.Config // QUIC, WebSocket
	ALPN             []string    // QUIC
	HandshakeTimeout time.Duration
	Header           http.Header // WebSocket
}

// New creates an unconnected binding of the given kind.
func New(kind Kind, opts Options, logger *util.Logger) (Binding, error) {
	switch kind {
	case TCP:
		return NewTCP(TCPConfig{
			LocalPort: opts.LocalPort,
			KeepAlive: opts.KeepAlive,
			NoDelay:   opts.NoDelay,
		}, logger), nil
	case UDP:
		return NewUDP(UDPConfig{LocalPort: opts.LocalPort}, logger), nil
	case SSH:
		if opts.Gateway == nil {
			return nil, fmt.Errorf("ssh transport requires a gateway")
		}
		return NewSSH(SSHConfig{Gateway: opts.Gateway, Network: opts.Network}, logger), nil
	case QUIC:
		return NewQUIC(QUICConfig{
			TLS:                  opts.TLS,
			ALPN:                 opts.ALPN,
			KeepAlive:            opts.KeepAlive,
			HandshakeIdleTimeout: opts.HandshakeTimeout,
		}, logger), nil
	case WebSocket:
		return NewWS(WSConfig{
			Header:           opts.Header,
			HandshakeTimeout: opts.HandshakeTimeout,
			TLS:              opts.TLS,
		}, logger), nil
	}
	return nil, fmt.Errorf("%w %q", ncerr.ErrUnknownKind, kind)
}
