package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AbdouGG/Deep-Code/internal/transcript"
)

const (
	// WelcomeProgram fills the code buffer of a fresh session.
	WelcomeProgram = "// Welcome to the Code Executor! 🚀\n// Write your code here and see it come to life.\n\nconsole.log(\"Hello, World!\");\n"
	// PlaceholderProgram replaces the code buffer on Clear.
	PlaceholderProgram = "// Write your code here...\nconsole.log(\"Hello, World!\");"
)

// Coordinator admits execution requests against connection readiness and
// the in-flight flag. There is no request timeout: only an inbound message,
// a connection drop or Clear ends a request.
type Coordinator struct {
	conn       *Connection
	transcript *transcript.Transcript
	notifier   Notifier
	logger     *slog.Logger

	mu       sync.Mutex
	code     string
	inFlight bool
	reqSeq   uint64
}

func NewCoordinator(conn *Connection) *Coordinator {
	c := &Coordinator{
		conn:       conn,
		transcript: conn.transcript,
		notifier:   conn.notifier,
		logger:     conn.logger.With("module", "coordinator"),
		code:       WelcomeProgram,
	}
	conn.setSettleHook(c.settle)
	return c
}

// Submit transmits code verbatim as a single message. It is rejected with
// ErrNotConnected unless the connection is open, and with ErrBusy while
// another request is in flight.
func (c *Coordinator) Submit(ctx context.Context, code string) error {
	if c.conn.State() != StateOpen {
		c.notifier.Notify(Notice{Level: LevelError, Message: msgNotConnected})
		return ErrNotConnected
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.reqSeq++
	req := c.reqSeq
	c.mu.Unlock()

	if err := c.conn.send(ctx, code); err != nil {
		c.abandon(req)
		if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrClosed) {
			c.notifier.Notify(Notice{Level: LevelError, Message: msgNotConnected})
			return err
		}
		c.logger.Warn("send code failed", "err", err)
		c.notifier.Notify(Notice{Level: LevelError, Message: msgSendFailed})
		return fmt.Errorf("send code: %w", err)
	}
	c.logger.Debug("code submitted", "request", req, "len", len(code))
	c.notifier.Notify(Notice{Level: LevelSuccess, Message: msgSubmitted})
	return nil
}

// Execute submits the current code buffer.
func (c *Coordinator) Execute(ctx context.Context) error {
	return c.Submit(ctx, c.Code())
}

// Clear resets the code buffer to the placeholder program, empties the
// transcript and drops any pending request. The connection is untouched.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.code = PlaceholderProgram
	c.inFlight = false
	c.mu.Unlock()
	c.transcript.Clear()
	c.notifier.Notify(Notice{Level: LevelSuccess, Message: msgEditorCleared})
}

func (c *Coordinator) SetCode(code string) {
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
}

func (c *Coordinator) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// settle ends the current request. The Connection calls it with its own
// lock held.
func (c *Coordinator) settle() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Coordinator) abandon(req uint64) {
	c.mu.Lock()
	if c.inFlight && c.reqSeq == req {
		c.inFlight = false
	}
	c.mu.Unlock()
}
