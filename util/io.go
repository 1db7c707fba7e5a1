package util

import (
	"errors"
	"io"
	"net"
	"os"
)

// IsClosed reports whether err comes from using a connection that was
// closed locally.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// IsDeadline reports whether err is an I/O deadline expiry.
func IsDeadline(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
