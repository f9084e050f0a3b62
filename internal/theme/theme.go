// Package theme carries the current color scheme as an injected stream
// instead of ambient global state.
package theme

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type Scheme string

const (
	Dark  Scheme = "dark"
	Light Scheme = "light"
)

const (
	EditorDark  = "vs-dark"
	EditorLight = "vs"
)

type Source interface {
	Current() Scheme
	// Subscribe returns a channel carrying each later scheme change and a
	// cancel func. Slow subscribers only see the newest value.
	Subscribe() (<-chan Scheme, func())
}

// Detect reads the terminal background.
func Detect() Scheme {
	if lipgloss.HasDarkBackground() {
		return Dark
	}
	return Light
}

// EditorTheme maps a scheme to the editor theme name.
func EditorTheme(s Scheme) string {
	if s == Light {
		return EditorLight
	}
	return EditorDark
}

// SchemeFor is the inverse of EditorTheme; unknown names report false.
func SchemeFor(editorTheme string) (Scheme, bool) {
	switch editorTheme {
	case EditorDark:
		return Dark, true
	case EditorLight:
		return Light, true
	}
	return "", false
}

// Resolve prefers a saved editor theme over the detected scheme.
func Resolve(saved string, detected Scheme) Scheme {
	if s, ok := SchemeFor(saved); ok {
		return s
	}
	if detected == Light {
		return Light
	}
	return Dark
}

var _ Source = (*Broadcaster)(nil)

type Broadcaster struct {
	mu      sync.Mutex
	current Scheme
	nextID  int
	subs    map[int]chan Scheme
}

func NewBroadcaster(initial Scheme) *Broadcaster {
	return &Broadcaster{current: initial, subs: map[int]chan Scheme{}}
}

func (b *Broadcaster) Current() Scheme {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Broadcaster) Subscribe() (<-chan Scheme, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Scheme, 1)
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Set publishes s when it differs from the current scheme.
func (b *Broadcaster) Set(s Scheme) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s == b.current {
		return
	}
	b.current = s
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (b *Broadcaster) Toggle() Scheme {
	b.mu.Lock()
	next := Dark
	if b.current == Dark {
		next = Light
	}
	b.mu.Unlock()
	b.Set(next)
	return next
}
