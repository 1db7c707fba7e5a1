// Package capability defines what the attempt engine needs from a
// connection-like object.  A transport participates by satisfying
// [Conn] for its own configuration type; nothing is subclassed and the
// engine never learns which concrete transport it is driving.
//
// Every asynchronous operation reports completion exactly once through
// its callback.  [Conn.Cancel] makes every pending operation complete
// with [ErrOperationAborted].
package capability

import (
	"errors"
	"io"
	"syscall"
)

// BufferSize is the capacity of a receive [Buffer].
const BufferSize = 2048

// Buffer is the fixed-size receive buffer.  It is owned by the caller
// of AsyncReceive and must stay valid until the completion runs.
type Buffer [BufferSize]byte

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrOperationAborted is reported by an operation interrupted by Cancel.
	ErrOperationAborted = errors.New("operation aborted")

	// ErrAlreadyStarted rejects an operation that is already in progress.
	ErrAlreadyStarted = errors.New("operation already in progress")

	// ErrEndOfStream is reported when the peer closed the stream.
	ErrEndOfStream = io.EOF

	// ErrConnectionReset is reported when the peer reset the connection.
	ErrConnectionReset error = syscall.ECONNRESET
)

// ── Contract ─────────────────────────────────────────────────────────

// Connecter is the subset of the contract the attempt engine drives.
type Connecter interface {
	// Cancel interrupts every pending operation.  It is a no-op when
	// nothing is pending.
	Cancel()

	// AsyncConnect starts connecting to endpoint and calls done once.
	AsyncConnect(endpoint string, done func(err error))
}

// Conn is the full capability contract for a connection whose
// configuration type is C.
type Conn[C any] interface {
	Connecter

	// Configure applies cfg.  Failure handling is connection-specific.
	Configure(cfg C)

	// Config returns the configuration currently applied.
	Config() C

	// AsyncSend writes all of p and calls done once.
	AsyncSend(p []byte, done func(n int, err error))

	// AsyncReceive reads into buf and calls done once.
	AsyncReceive(buf *Buffer, done func(n int, err error))
}

// DisconnectClassifier lets a connection override the default
// peer-disconnect classification used by [RemoteHasDisconnected].
type DisconnectClassifier interface {
	RemoteHasDisconnected(err error) bool
}

// ── Customisation points ─────────────────────────────────────────────

// ConfigOf returns the configuration applied to conn.
func ConfigOf[C any](conn Conn[C]) C {
	return conn.Config()
}

// Configure applies cfg to conn.
func Configure[C any](conn Conn[C], cfg C) {
	conn.Configure(cfg)
}

// RemoteHasDisconnected reports whether err means the peer went away.
// It never performs I/O.
func RemoteHasDisconnected[C any](conn Conn[C], err error) bool {
	if dc, ok := conn.(DisconnectClassifier); ok {
		return dc.RemoteHasDisconnected(err)
	}
	return IsDisconnect(err)
}

// IsDisconnect is the default classification: end-of-stream or
// connection reset.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrEndOfStream) || errors.Is(err, ErrConnectionReset)
}
