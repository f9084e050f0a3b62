// Package transcript holds the ordered, human-readable event log shown as
// program output for one executor session.
package transcript

import (
	"strings"
	"sync"
	"time"
)

type Kind string

const (
	KindNotice Kind = "notice"
	KindResult Kind = "result"
	KindError  Kind = "error"
	KindRaw    Kind = "raw"
)

type Entry struct {
	Seq  uint64
	Kind Kind
	Text string
	At   time.Time
}

// Transcript is append-only; the only way to remove entries is Clear.
type Transcript struct {
	mu       sync.Mutex
	seq      uint64
	entries  []Entry
	watchers map[int]chan struct{}
	nextID   int
	nowFunc  func() time.Time
}

func New() *Transcript {
	return &Transcript{
		watchers: map[int]chan struct{}{},
		nowFunc:  time.Now,
	}
}

func (t *Transcript) Append(kind Kind, text string) Entry {
	t.mu.Lock()
	t.seq++
	e := Entry{Seq: t.seq, Kind: kind, Text: text, At: t.nowFunc().UTC()}
	t.entries = append(t.entries, e)
	t.signalLocked()
	t.mu.Unlock()
	return e
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.signalLocked()
	t.mu.Unlock()
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Text)
	}
	return out
}

// String renders the transcript as the output panel shows it: one line per
// entry, each terminated by a newline.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, e := range t.entries {
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Watch returns a channel that receives a value after every change. Signals
// coalesce, so readers must re-read the transcript instead of counting.
func (t *Transcript) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = ch
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.watchers, id)
		t.mu.Unlock()
	}
}

func (t *Transcript) signalLocked() {
	for _, ch := range t.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
