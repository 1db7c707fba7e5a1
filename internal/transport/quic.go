package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quic-go/quic-go"

	"goattempt/capability"
	"goattempt/util"
)

// QUICConfig tunes QUIC connections.  Each connect opens one QUIC
// connection and one bidirectional stream on it.
type QUICConfig struct {
	TLS                  *tls.Config
	ALPN                 []string // overrides TLS.NextProtos when set
	KeepAlive            time.Duration
	HandshakeIdleTimeout time.Duration
}

// QUICConn is a capability connection over a QUIC stream.
type QUICConn = Conn[QUICConfig]

// NewQUIC returns an unconnected QUIC connection.
func NewQUIC(cfg QUICConfig, logger *util.Logger) *QUICConn {
	return newConn(QUIC, cfg, dialQUIC, logger, mapQUICError)
}

// closeNormal is the application error code of an orderly close.
const closeNormal quic.ApplicationErrorCode = 0

func dialQUIC(ctx context.Context, endpoint string, cfg QUICConfig) (duplex, error) {
	tlsConf := &tls.Config{}
	if cfg.TLS != nil {
		tlsConf = cfg.TLS.Clone()
	}
	if len(cfg.ALPN) > 0 {
		tlsConf.NextProtos = cfg.ALPN
	}
	if len(tlsConf.NextProtos) == 0 {
		return nil, errors.New("quic: at least one ALPN protocol is required")
	}

	qconf := &quic.Config{HandshakeIdleTimeout: cfg.HandshakeIdleTimeout}
	if cfg.KeepAlive > 0 {
		qconf.KeepAlivePeriod = cfg.KeepAlive
	}

	conn, err := quic.DialAddr(ctx, endpoint, tlsConf, qconf)
	if err != nil {
		return nil, err
	}
	st, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(closeNormal, "")
		return nil, err
	}
	return &quicStream{Stream: st, conn: conn}, nil
}

// quicStream ties a stream to the connection that carries it.
type quicStream struct {
	*quic.Stream
	conn *quic.Conn
}

func (s *quicStream) Close() error {
	s.Stream.CancelRead(0)
	_ = s.Stream.Close()
	return s.conn.CloseWithError(closeNormal, "closed")
}

// mapQUICError turns an orderly application close into end-of-stream
// and any reset into connection reset.
func mapQUICError(err error) error {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		if appErr.Remote && appErr.ErrorCode == closeNormal {
			return io.EOF
		}
		return fmt.Errorf("%w: %v", capability.ErrConnectionReset, err)
	}

	var streamErr *quic.StreamError
	if errors.As(err, &streamErr) && streamErr.Remote {
		return fmt.Errorf("%w: %v", capability.ErrConnectionReset, err)
	}
	return err
}
