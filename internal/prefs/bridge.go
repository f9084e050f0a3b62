// Package prefs keeps the output-panel visibility preference. The local copy
// is authoritative for rendering; the remote settings document only seeds it
// once per signed-in identity and receives best-effort merge-writes.
package prefs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/AbdouGG/Deep-Code/internal/identity"
	"github.com/AbdouGG/Deep-Code/internal/localstore"
	"github.com/AbdouGG/Deep-Code/internal/logging"
)

const (
	SettingsCollection = "settings"
	EditorDocument     = "editor"
	FieldShowOutput    = "showOutput"
)

type LocalStore interface {
	GetBool(ctx context.Context, key string) (bool, bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (string, bool, error)
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
}

type Options struct {
	Local    LocalStore
	Remote   DocumentStore
	Identity identity.Source
	Logger   *slog.Logger
	Now      func() time.Time
}

type remoteWrite struct {
	value bool
	user  string
}

type Bridge struct {
	local    LocalStore
	remote   DocumentStore
	identity identity.Source
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	showOutput bool
	loadedFor  string
	pending    *remoteWrite
	flushing   bool
	closed     bool
}

// New builds a Bridge seeded from the local persisted copy, defaulting to
// visible.
func New(ctx context.Context, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Options{Writer: io.Discard})
	}
	ident := opts.Identity
	if ident == nil {
		ident = identity.Static{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	bctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		local:      opts.Local,
		remote:     opts.Remote,
		identity:   ident,
		logger:     logger.With("module", "prefs"),
		now:        now,
		ctx:        bctx,
		cancel:     cancel,
		showOutput: true,
	}
	if b.local != nil {
		v, ok, err := b.local.GetBool(ctx, localstore.KeyShowOutput)
		if err != nil {
			b.logger.Warn("read local preference failed", "err", err)
		} else if ok {
			b.showOutput = v
		}
	}
	return b
}

func (b *Bridge) ShowOutput() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.showOutput
}

// LoadInitial seeds the local value from the remote document. It reads at
// most once per identity; without an identity, or when the document lacks
// the field, the local value stands.
func (b *Bridge) LoadInitial(ctx context.Context) error {
	user, ok := b.identity.Current()
	if !ok || b.remote == nil {
		return nil
	}
	b.mu.Lock()
	if b.closed || b.loadedFor == user.ID {
		b.mu.Unlock()
		return nil
	}
	b.loadedFor = user.ID
	b.mu.Unlock()

	body, found, err := b.remote.Get(ctx, SettingsCollection, EditorDocument)
	if err != nil {
		b.mu.Lock()
		if b.loadedFor == user.ID {
			b.loadedFor = ""
		}
		b.mu.Unlock()
		b.logger.Warn("load remote preference failed", "user", user.ID, "err", err)
		return fmt.Errorf("load %s/%s: %w", SettingsCollection, EditorDocument, err)
	}
	if !found {
		return nil
	}
	field := gjson.Get(body, FieldShowOutput)
	if field.Type != gjson.True && field.Type != gjson.False {
		return nil
	}
	value := field.Bool()

	b.mu.Lock()
	b.showOutput = value
	b.mu.Unlock()
	if b.local != nil {
		if err := b.local.SetBool(ctx, localstore.KeyShowOutput, value); err != nil {
			b.logger.Warn("persist seeded preference failed", "err", err)
		}
	}
	b.logger.Info("preference seeded from remote", "user", user.ID, "show_output", value)
	return nil
}

// Set updates the local value and its persisted copy before returning. When
// signed in, the remote document gets a merge-write in the background;
// failures there are logged and never roll back the local value.
func (b *Bridge) Set(value bool) error {
	b.mu.Lock()
	b.showOutput = value
	b.mu.Unlock()

	var localErr error
	if b.local != nil {
		if err := b.local.SetBool(context.Background(), localstore.KeyShowOutput, value); err != nil {
			b.logger.Warn("persist preference failed", "err", err)
			localErr = fmt.Errorf("persist %s: %w", localstore.KeyShowOutput, err)
		}
	}

	user, ok := b.identity.Current()
	if !ok || b.remote == nil {
		return localErr
	}
	b.enqueue(remoteWrite{value: value, user: user.ID})
	return localErr
}

// enqueue keeps only the newest pending write; one flusher drains it so
// remote writes land in call order.
func (b *Bridge) enqueue(w remoteWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.pending = &w
	if b.flushing {
		return
	}
	b.flushing = true
	b.wg.Add(1)
	go b.flush()
}

func (b *Bridge) flush() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		w := b.pending
		b.pending = nil
		if w == nil || b.closed {
			b.flushing = false
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		fields := map[string]any{
			FieldShowOutput: w.value,
			"updatedAt":     b.now().UTC().Format(time.RFC3339),
			"updatedBy":     w.user,
		}
		if err := b.remote.Merge(b.ctx, SettingsCollection, EditorDocument, fields); err != nil {
			b.logger.Warn("remote preference write failed", "user", w.user, "err", err)
			continue
		}
		b.logger.Debug("remote preference written", "user", w.user, "show_output", w.value)
	}
}

// Wait blocks until queued remote writes have settled.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// Close cancels in-progress remote writes and drops queued ones.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.pending = nil
	b.mu.Unlock()
	b.cancel()
	b.wg.Wait()
	return nil
}
