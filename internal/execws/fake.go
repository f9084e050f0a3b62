package execws

import (
	"context"
	"errors"
	"io"
	"sync"
)

// FakeSocket is an in-memory Socket driven by tests.
type FakeSocket struct {
	mu       sync.Mutex
	readCh   chan string
	errCh    chan error
	done     chan struct{}
	once     sync.Once
	written  []string
	writeErr error
	closed   bool
}

func NewFakeSocket() *FakeSocket {
	return &FakeSocket{
		readCh: make(chan string, 16),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// EmitText queues an inbound frame.
func (f *FakeSocket) EmitText(text string) {
	f.readCh <- text
}

// Fail ends the stream with err as seen by the reader.
func (f *FakeSocket) Fail(err error) {
	select {
	case f.errCh <- err:
	default:
	}
}

// Hangup ends the stream cleanly, as a peer-initiated close.
func (f *FakeSocket) Hangup() {
	f.Fail(io.EOF)
}

func (f *FakeSocket) SetWriteError(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *FakeSocket) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	copy(out, f.written)
	return out
}

func (f *FakeSocket) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeSocket) ReadText(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-f.done:
		return "", io.EOF
	case text := <-f.readCh:
		return text, nil
	case err := <-f.errCh:
		return "", err
	}
}

func (f *FakeSocket) WriteText(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fake socket closed")
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, text)
	return nil
}

func (f *FakeSocket) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

// FakeDialer hands out FakeSockets, or queued errors, one per Dial.
type FakeDialer struct {
	mu      sync.Mutex
	urls    []string
	sockets []*FakeSocket
	errs    []error
	gate    chan struct{}
}

func NewFakeDialer() *FakeDialer {
	return &FakeDialer{}
}

// FailNext makes the next Dial return err.
func (d *FakeDialer) FailNext(err error) {
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
}

// Hold blocks subsequent dials until Release or context cancellation.
func (d *FakeDialer) Hold() {
	d.mu.Lock()
	d.gate = make(chan struct{})
	d.mu.Unlock()
}

func (d *FakeDialer) Release() {
	d.mu.Lock()
	if d.gate != nil {
		close(d.gate)
		d.gate = nil
	}
	d.mu.Unlock()
}

func (d *FakeDialer) Dial(ctx context.Context, url string) (Socket, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	var err error
	if len(d.errs) > 0 {
		err = d.errs[0]
		d.errs = d.errs[1:]
	}
	var sock *FakeSocket
	if err == nil {
		sock = NewFakeSocket()
		d.sockets = append(d.sockets, sock)
	}
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return sock, nil
}

func (d *FakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.urls))
	copy(out, d.urls)
	return out
}

func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// Socket returns the i-th socket handed out, or nil.
func (d *FakeDialer) Socket(i int) *FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.sockets) {
		return nil
	}
	return d.sockets[i]
}

func (d *FakeDialer) Last() *FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}
