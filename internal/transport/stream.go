package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"goattempt/capability"
	ncerr "goattempt/internal/errors"
	"goattempt/util"
)

// duplex is what a binding hands the stream core once connected.
// net.Conn satisfies it; QUIC and WebSocket wrap their native types.
type duplex interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// stream runs the asynchronous operations of a connection over a
// blocking duplex.  Each operation gets its own goroutine and a
// cancellable context registered in ops; Cancel cancels them all.
//
// Cancelled I/O is interrupted by moving the duplex deadline into the
// past.  Until every cancelled operation has ended, new I/O waits on
// idle; the last one to end clears the deadlines.
type stream struct {
	mu       sync.Mutex
	conn     duplex
	ops      map[uint64]context.CancelFunc
	seq      uint64
	aborting int               // cancelled operations still running
	dirty    []duplex          // duplexes with a past deadline
	idle     chan struct{}     // closed when aborting drops to zero
	mapErr   func(error) error // binding-specific, applied before the common mapping
	logger   *util.Logger
}

func newStream(logger *util.Logger, mapErr func(error) error) stream {
	return stream{
		ops:    make(map[uint64]context.CancelFunc),
		mapErr: mapErr,
		logger: logger,
	}
}

// ── Operation bookkeeping ────────────────────────────────────────────

// begin registers an operation.  It must be called synchronously by
// the Async method so a Cancel issued right after it is not missed.
func (s *stream) begin() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.ops == nil {
		s.ops = make(map[uint64]context.CancelFunc)
	}
	s.seq++
	id := s.seq
	s.ops[id] = cancel
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if _, ok := s.ops[id]; ok {
			delete(s.ops, id)
		} else {
			s.drained()
		}
		s.mu.Unlock()
		cancel()
	}
}

// drained records the end of an operation taken by Cancel.  It must be
// called with s.mu held.
func (s *stream) drained() {
	s.aborting--
	if s.aborting > 0 {
		return
	}
	for _, c := range s.dirty {
		_ = c.SetDeadline(time.Time{})
	}
	s.dirty = nil
	if s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
}

// Cancel makes every outstanding operation complete with
// [capability.ErrOperationAborted].  The connection itself stays usable.
func (s *stream) Cancel() {
	s.mu.Lock()
	ops := s.ops
	s.ops = make(map[uint64]context.CancelFunc)
	if len(ops) > 0 {
		s.aborting += len(ops)
		if s.idle == nil {
			s.idle = make(chan struct{})
		}
	}
	s.mu.Unlock()

	if len(ops) > 0 {
		s.logger.Debug("cancelling %d pending operation(s)", len(ops))
	}
	for _, cancel := range ops {
		cancel()
	}
}

func (s *stream) current() duplex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// ── Connect ──────────────────────────────────────────────────────────

// connect runs dial in the background and installs the result as the
// current duplex, closing any previous one.  A duplex that arrives
// after cancellation is closed and the operation reports aborted.
func (s *stream) connect(dial func(ctx context.Context) (duplex, error), done func(error)) {
	ctx, end := s.begin()
	go func() {
		c, err := dial(ctx)
		if ctx.Err() != nil {
			if c != nil {
				c.Close()
			}
			end()
			done(capability.ErrOperationAborted)
			return
		}
		end()
		if err != nil {
			done(s.mapError(err))
			return
		}

		s.mu.Lock()
		prev := s.conn
		s.conn = c
		s.mu.Unlock()
		if prev != nil {
			prev.Close()
		}
		done(nil)
	}()
}

// ── Send / receive ───────────────────────────────────────────────────

// send writes all of p before completing.
func (s *stream) send(p []byte, done func(int, error)) {
	c := s.current()
	if c == nil {
		go done(0, ncerr.ErrNotConnected)
		return
	}
	ctx, end := s.begin()
	go func() {
		n, err := s.guard(ctx, c, func() (int, error) { return writeFull(c, p) })
		end()
		done(n, err)
	}()
}

// receive reads whatever is available, up to len(buf).
func (s *stream) receive(buf *capability.Buffer, done func(int, error)) {
	c := s.current()
	if c == nil {
		go done(0, ncerr.ErrNotConnected)
		return
	}
	ctx, end := s.begin()
	go func() {
		n, err := s.guard(ctx, c, func() (int, error) {
			n, err := c.Read(buf[:])
			if n > 0 {
				return n, nil
			}
			return 0, err
		})
		end()
		done(n, err)
	}()
}

// guard runs blocking I/O on c, interrupting it through a past deadline
// when ctx is cancelled.  It first waits out operations cancelled
// earlier so their deadline cannot cut this one short.
func (s *stream) guard(ctx context.Context, c duplex, op func() (int, error)) (int, error) {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	if idle != nil {
		select {
		case <-idle:
		case <-ctx.Done():
			return 0, capability.ErrOperationAborted
		}
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		_ = c.SetDeadline(aLongTimeAgo)
		s.dirty = append(s.dirty, c)
		s.mu.Unlock()
		close(fired)
	})

	n, err := op()
	if !stop() {
		<-fired
		return n, capability.ErrOperationAborted
	}
	return n, s.mapError(err)
}

func writeFull(w io.Writer, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// ── Close ────────────────────────────────────────────────────────────

// Close cancels outstanding operations and closes the current duplex.
func (s *stream) Close() error {
	s.Cancel()

	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	if err := c.Close(); err != nil && !util.IsClosed(err) {
		return err
	}
	return nil
}

// ── Error mapping ────────────────────────────────────────────────────

// mapError normalises transport errors onto the capability sentinels:
// an orderly peer close becomes end-of-stream and a broken pipe becomes
// connection reset.  Everything else is returned unchanged.
func (s *stream) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s.mapErr != nil {
		err = s.mapErr(err)
	}
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, capability.ErrConnectionReset):
		return err
	case errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", capability.ErrConnectionReset, err)
	case errors.Is(err, net.ErrClosed), util.IsDeadline(err):
		// Deadlines are only ever set to interrupt a cancelled op.
		return capability.ErrOperationAborted
	}
	return err
}
