package executor

import (
	"context"
	"fmt"

	"github.com/AbdouGG/Deep-Code/internal/addrcodec"
	"github.com/AbdouGG/Deep-Code/internal/transcript"
)

// Session wires one Connection and its Coordinator over a shared
// transcript, the unit a consumer mounts for one executor link.
type Session struct {
	Conn  *Connection
	Coord *Coordinator
}

func NewSession(opts Options) *Session {
	conn := NewConnection(opts)
	return &Session{
		Conn:  conn,
		Coord: NewCoordinator(conn),
	}
}

// Start decodes the link token and opens the connection.
func (s *Session) Start(token string) error {
	return s.Conn.Open(addrcodec.Decode(token))
}

func (s *Session) Transcript() *transcript.Transcript {
	return s.Conn.Transcript()
}

// AwaitOpen blocks until the connection is open or ctx ends. Open and close
// both append to the transcript, so its change signal is enough to wake on.
func (s *Session) AwaitOpen(ctx context.Context) error {
	return s.await(ctx, func() bool { return s.Conn.State() == StateOpen })
}

// AwaitSettled blocks until no execution request is in flight or ctx ends.
// The Connection settles a request before appending its outcome under the
// same lock, so the barrier makes that line visible once this returns.
func (s *Session) AwaitSettled(ctx context.Context) error {
	return s.await(ctx, func() bool {
		if s.Coord.InFlight() {
			return false
		}
		s.Conn.barrier()
		return true
	})
}

func (s *Session) await(ctx context.Context, done func() bool) error {
	changed, cancel := s.Transcript().Watch()
	defer cancel()
	for {
		if done() {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", s.Conn.Status(), ctx.Err())
		}
	}
}

func (s *Session) Close() error {
	return s.Conn.Close()
}
