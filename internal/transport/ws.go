package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gorilla/websocket"

	"goattempt/capability"
	"goattempt/util"
)

// WSConfig tunes WebSocket connections.  The endpoint is a ws:// or
// wss:// URL.
type WSConfig struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	TLS              *tls.Config
}

// Equal compares headers and timeout structurally and TLS settings by
// identity.
func (c WSConfig) Equal(o WSConfig) bool {
	return c.TLS == o.TLS &&
		c.HandshakeTimeout == o.HandshakeTimeout &&
		cmp.Equal(c.Header, o.Header, cmpopts.EquateEmpty())
}

// WSConn is a capability connection over a WebSocket.  Messages are
// sent as binary frames; receives read across frame boundaries.
//
// A cancelled receive leaves the WebSocket unusable, so the next
// connect must replace it.
type WSConn = Conn[WSConfig]

// NewWS returns an unconnected WebSocket connection.
func NewWS(cfg WSConfig, logger *util.Logger) *WSConn {
	return newConn(WebSocket, cfg, dialWS, logger, mapWSError)
}

func dialWS(ctx context.Context, endpoint string, cfg WSConfig) (duplex, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		TLSClientConfig:  cfg.TLS,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, resp, err := dialer.DialContext(ctx, endpoint, cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (HTTP %s)", err, resp.Status)
		}
		return nil, err
	}
	return &wsStream{ws: ws}, nil
}

// wsStream presents a WebSocket as a byte stream.
type wsStream struct {
	ws *websocket.Conn
	r  io.Reader // remainder of the current message
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			_, r, err := s.ws.NextReader()
			if err != nil {
				return 0, err
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) SetDeadline(t time.Time) error {
	return errors.Join(s.ws.SetReadDeadline(t), s.ws.SetWriteDeadline(t))
}

func (s *wsStream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.ws.Close()
}

// mapWSError turns a normal close into end-of-stream and any other
// close frame into connection reset.
func mapWSError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %v", capability.ErrConnectionReset, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", capability.ErrConnectionReset, err)
	}
	return err
}
