// Package execws is the transport of the execution channel: one text
// message per submitted program upstream, one text message per result
// downstream.
package execws

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/coder/websocket"
)

type Socket interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// Client pumps inbound text frames of one socket into a callback.
type Client struct {
	sock   Socket
	onText func(string)
}

func NewClient(sock Socket) *Client {
	return &Client{sock: sock}
}

func (c *Client) OnText(fn func(string)) {
	c.onText = fn
}

// Run reads until the socket ends. A clean end (peer closed normally, local
// close, cancelled context) returns nil; anything else is a transport error.
func (c *Client) Run(ctx context.Context) error {
	for {
		text, err := c.sock.ReadText(ctx)
		if err != nil {
			if IsCleanClose(err) {
				return nil
			}
			return err
		}
		if c.onText != nil {
			c.onText(text)
		}
	}
}

func (c *Client) Send(ctx context.Context, text string) error {
	return c.sock.WriteText(ctx, text)
}

func (c *Client) Close() error {
	return c.sock.Close()
}

// IsCleanClose reports whether err marks an orderly end of the stream.
func IsCleanClose(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
