// Package executor is the client side of the remote code-execution channel:
// one logical connection to an execution server, bounded auto-reconnect,
// and the gate that admits one execution request at a time.
package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AbdouGG/Deep-Code/internal/addrcodec"
	"github.com/AbdouGG/Deep-Code/internal/execws"
	"github.com/AbdouGG/Deep-Code/internal/logging"
	"github.com/AbdouGG/Deep-Code/internal/transcript"
)

// ReconnectDelay is the pause before the single automatic reconnect.
const ReconnectDelay = 5 * time.Second

var (
	ErrNotConnected = errors.New("not connected to execution server")
	ErrBusy         = errors.New("execution already in flight")
	ErrClosed       = errors.New("connection torn down")
)

type Options struct {
	Dialer     execws.Dialer
	Transcript *transcript.Transcript
	Notifier   Notifier
	Clock      Clock
	Logger     *slog.Logger
}

// Connection owns the lifecycle of one logical link to an execution
// endpoint. Every socket, read loop and timer is tagged with the generation
// that created it; callbacks from an older generation are ignored.
type Connection struct {
	id         string
	dialer     execws.Dialer
	transcript *transcript.Transcript
	notifier   Notifier
	clock      Clock
	logger     *slog.Logger

	mu         sync.Mutex
	address    string
	state      State
	hasRetried bool
	generation uint64
	sock       execws.Socket
	cancel     context.CancelFunc
	timer      Timer
	torndown   bool
	onSettle   func()

	wg sync.WaitGroup
}

func NewConnection(opts Options) *Connection {
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Options{Writer: io.Discard})
	}
	logger = logger.With("module", "connection", "conn_id", id)
	c := &Connection{
		id:         id,
		dialer:     opts.Dialer,
		transcript: opts.Transcript,
		notifier:   opts.Notifier,
		clock:      opts.Clock,
		logger:     logger,
	}
	if c.dialer == nil {
		c.dialer = execws.RealDialer{HandshakeTimeout: 10 * time.Second}
	}
	if c.transcript == nil {
		c.transcript = transcript.New()
	}
	if c.notifier == nil {
		c.notifier = LogNotifier(logger)
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	return c
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Transcript() *transcript.Transcript { return c.transcript }

// Open starts a new connection lifetime to address, superseding any live
// socket or pending reconnect. An empty address is dialed anyway and fails
// like any unreachable endpoint.
func (c *Connection) Open(address string) error {
	c.mu.Lock()
	if c.torndown {
		c.mu.Unlock()
		return ErrClosed
	}
	c.address = address
	c.hasRetried = false
	stale := c.openLocked()
	c.mu.Unlock()
	closeSocket(stale)
	return nil
}

// Close tears the connection down. It is idempotent and safe at any point of
// the lifecycle; once it returns, no callback mutates state or transcript.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.torndown {
		c.mu.Unlock()
		return nil
	}
	c.torndown = true
	stale := c.releaseLocked()
	if c.state != StateIdle {
		c.state = StateClosed
	}
	c.mu.Unlock()
	closeSocket(stale)
	c.wg.Wait()
	c.logger.Debug("connection closed")
	return nil
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// HasRetried reports whether the automatic reconnect of the current
// lifetime has been spent.
func (c *Connection) HasRetried() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasRetried
}

// Status is the connection badge text.
func (c *Connection) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateOpen:
		return "Connected"
	case StateConnecting:
		if c.hasRetried {
			return "Reconnecting..."
		}
		return "Connecting..."
	case StateClosed:
		if c.torndown {
			return "Disconnected"
		}
		if c.timer != nil {
			return "Reconnecting..."
		}
		return "Connection failed"
	default:
		return "Disconnected"
	}
}

func (c *Connection) setSettleHook(fn func()) {
	c.mu.Lock()
	c.onSettle = fn
	c.mu.Unlock()
}

// send writes one text frame on the live socket. Only the Coordinator
// calls it.
func (c *Connection) send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.torndown {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateOpen || c.sock == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	sock := c.sock
	c.mu.Unlock()
	return sock.WriteText(ctx, text)
}

func (c *Connection) openLocked() execws.Socket {
	stale := c.releaseLocked()
	gen := c.generation
	c.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	url := addrcodec.EndpointURL(c.address)
	c.logger.Info("connecting", "url", url, "generation", gen, "retry", c.hasRetried)
	c.wg.Add(1)
	go c.run(ctx, gen, url)
	return stale
}

// releaseLocked invalidates every callback of the current generation and
// hands back the socket for closing outside the lock.
func (c *Connection) releaseLocked() execws.Socket {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	sock := c.sock
	c.sock = nil
	return sock
}

func (c *Connection) currentLocked(gen uint64) bool {
	return !c.torndown && gen == c.generation
}

func (c *Connection) run(ctx context.Context, gen uint64, url string) {
	defer c.wg.Done()

	sock, err := c.dialer.Dial(ctx, url)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.currentLocked(gen) {
			return
		}
		c.logger.Warn("dial failed", "url", url, "err", err)
		c.transportErrorLocked()
		c.closedLocked(gen)
		return
	}

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		closeSocket(sock)
		return
	}
	c.sock = sock
	c.state = StateOpen
	c.transcript.Append(transcript.KindNotice, ConnectedNotice)
	c.notifier.Notify(Notice{Level: LevelSuccess, Message: msgConnected})
	c.logger.Info("connected", "url", url, "generation", gen)
	c.mu.Unlock()

	client := execws.NewClient(sock)
	client.OnText(func(text string) {
		c.receive(gen, text)
	})
	runErr := client.Run(ctx)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	if runErr != nil {
		c.logger.Warn("transport error", "err", runErr)
		c.transportErrorLocked()
	}
	c.sock = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.closedLocked(gen)
	c.mu.Unlock()
	closeSocket(sock)
}

func (c *Connection) receive(gen uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		return
	}
	out := Classify(text)
	// Settle before the append: transcript watchers re-check InFlight on
	// the change signal.
	c.settleLocked()
	c.transcript.Append(out.Kind, out.Line)
	if out.Kind == transcript.KindError {
		c.notifier.Notify(Notice{Level: LevelError, Message: msgExecError})
	}
	c.logger.Debug("message received", "kind", string(out.Kind), "len", len(text))
}

// transportErrorLocked reports a transport failure. It never schedules a
// reconnect; only the close that follows does.
func (c *Connection) transportErrorLocked() {
	c.settleLocked()
	c.transcript.Append(transcript.KindError, TransportErrorLine)
	c.notifier.Notify(Notice{Level: LevelError, Message: msgConnError})
}

func (c *Connection) closedLocked(gen uint64) {
	c.state = StateClosed
	c.settleLocked()
	c.transcript.Append(transcript.KindNotice, DisconnectedNotice)
	if c.hasRetried {
		c.logger.Info("connection lost, retry budget spent")
		return
	}
	c.hasRetried = true
	c.logger.Info("connection lost, scheduling reconnect", "delay", ReconnectDelay.String())
	c.timer = c.clock.AfterFunc(ReconnectDelay, func() {
		c.reconnect(gen)
	})
}

func (c *Connection) reconnect(gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	stale := c.openLocked()
	c.mu.Unlock()
	closeSocket(stale)
}

// barrier waits out any callback currently holding the lock.
func (c *Connection) barrier() {
	c.mu.Lock()
	c.mu.Unlock()
}

func (c *Connection) settleLocked() {
	if c.onSettle != nil {
		c.onSettle()
	}
}

func closeSocket(sock execws.Socket) {
	if sock != nil {
		_ = sock.Close()
	}
}
