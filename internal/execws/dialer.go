package execws

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// ReadLimitBytes bounds a single inbound result frame.
const ReadLimitBytes int64 = 4 << 20

type RealDialer struct {
	// HandshakeTimeout bounds the opening handshake. Zero means no bound
	// beyond the caller's context.
	HandshakeTimeout time.Duration
}

func (d RealDialer) Dial(ctx context.Context, url string) (Socket, error) {
	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(ReadLimitBytes)
	return &realSocket{conn: conn}, nil
}

type realSocket struct {
	conn *websocket.Conn
}

func (s *realSocket) ReadText(ctx context.Context) (string, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *realSocket) WriteText(ctx context.Context, text string) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (s *realSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
