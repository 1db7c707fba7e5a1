// Package core is the orchestration layer.  It composes a transport
// binding, the attempt engine and the retry policies into complete
// operational modes and provides a builder that selects the right mode
// from a Config.
//
// Architecture layers (bottom → top):
//
//	capability  →  transport  →  attempt  →  retry  →  core  →  cmd (CLI)
package core

import (
	"context"

	"goattempt/capability"
	"goattempt/internal/transport"
	"goattempt/util"
)

// Mode represents a complete operational mode of goattempt (a bounded
// connect or an unbounded watch).  Each mode owns its connection from
// the first attempt to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// ── Synchronous I/O over the capability contract ─────────────────────

type ioResult struct {
	n   int
	err error
}

// sendAll writes p through conn and waits for the completion.  If ctx
// ends first the send is cancelled and completes as aborted.
func sendAll(ctx context.Context, conn transport.Binding, p []byte) (int, error) {
	ch := make(chan ioResult, 1)
	conn.AsyncSend(p, func(n int, err error) { ch <- ioResult{n, err} })
	return await(ctx, conn, ch)
}

// receiveOne reads a single buffer from conn.  The returned slice is
// only valid until buf is reused.
func receiveOne(ctx context.Context, conn transport.Binding, buf *capability.Buffer) ([]byte, error) {
	ch := make(chan ioResult, 1)
	conn.AsyncReceive(buf, func(n int, err error) { ch <- ioResult{n, err} })
	n, err := await(ctx, conn, ch)
	return buf[:n], err
}

func await(ctx context.Context, conn transport.Binding, ch <-chan ioResult) (int, error) {
	select {
	case r := <-ch:
		return r.n, r.err
	case <-ctx.Done():
		conn.Cancel()
		r := <-ch
		return r.n, r.err
	}
}

// closeConn closes conn, logging rather than returning the error.
func closeConn(conn transport.Binding, logger *util.Logger) {
	if err := conn.Close(); err != nil {
		logger.Debug("close: %v", err)
	}
}
