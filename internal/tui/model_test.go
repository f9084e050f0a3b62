package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdouGG/Deep-Code/internal/executor"
	"github.com/AbdouGG/Deep-Code/internal/execws"
	"github.com/AbdouGG/Deep-Code/internal/theme"
)

type fakePref struct {
	mu    sync.Mutex
	value bool
	sets  []bool
}

func (f *fakePref) ShowOutput() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *fakePref) Set(v bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
	f.sets = append(f.sets, v)
	return nil
}

type fixture struct {
	dialer  *execws.FakeDialer
	session *executor.Session
	pref    *fakePref
	themes  *theme.Broadcaster
	saved   []string
	model   Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dialer: execws.NewFakeDialer(),
		pref:   &fakePref{value: true},
		themes: theme.NewBroadcaster(theme.Dark),
	}
	notices := NewNotices(8)
	f.session = executor.NewSession(executor.Options{Dialer: f.dialer, Notifier: notices})
	f.model = New(Options{
		Session: f.session,
		Prefs:   f.pref,
		Theme:   f.themes,
		Notices: notices,
		SaveTheme: func(name string) error {
			f.saved = append(f.saved, name)
			return nil
		},
	})
	t.Cleanup(func() {
		f.model.Close()
		_ = f.session.Close()
	})
	return f
}

func (f *fixture) update(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

func (f *fixture) open(t *testing.T) *execws.FakeSocket {
	t.Helper()
	if err := f.session.Start("MTI3LjAuMC4x"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.session.Conn.State() != executor.StateOpen {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for open")
		}
		time.Sleep(time.Millisecond)
	}
	return f.dialer.Last()
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func TestModel_InitialViewShowsWelcomeAndBadge(t *testing.T) {
	f := newFixture(t)
	f.update(t, tea.WindowSizeMsg{Width: 100, Height: 40})

	view := f.model.View()
	if !strings.Contains(view, "Disconnected") {
		t.Fatalf("idle session shows disconnected badge:\n%s", view)
	}
	if !strings.Contains(view, "Output") {
		t.Fatal("output pane visible by default")
	}
	if f.model.editor.Value() != executor.WelcomeProgram {
		t.Fatalf("editor starts with the welcome program, got %q", f.model.editor.Value())
	}
}

func TestModel_ConnectedBadgeAndTranscript(t *testing.T) {
	f := newFixture(t)
	f.update(t, tea.WindowSizeMsg{Width: 100, Height: 40})
	f.open(t)
	f.update(t, transcriptMsg{})

	view := f.model.View()
	if !strings.Contains(view, "Connected") {
		t.Fatalf("expected connected badge:\n%s", view)
	}
	if !strings.Contains(view, "Connected to execution server") {
		t.Fatalf("transcript not rendered:\n%s", view)
	}
}

func TestModel_RunSubmitsEditorBuffer(t *testing.T) {
	f := newFixture(t)
	sock := f.open(t)

	f.model.editor.SetValue("console.log(42)")
	cmd := f.update(t, key(tea.KeyCtrlR))
	if cmd == nil {
		t.Fatal("run must return a submit command")
	}
	msg := cmd()
	done, ok := msg.(submitDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("unexpected submit result %#v", msg)
	}
	if got := sock.Written(); len(got) != 1 || got[0] != "console.log(42)" {
		t.Fatalf("unexpected frames %q", got)
	}
	if !strings.Contains(f.model.View(), "Executing...") {
		t.Fatal("in-flight request shows the executing indicator")
	}
}

func TestModel_ClearResetsEditor(t *testing.T) {
	f := newFixture(t)
	f.model.editor.SetValue("junk")
	f.update(t, key(tea.KeyCtrlL))
	if f.model.editor.Value() != executor.PlaceholderProgram {
		t.Fatalf("unexpected editor after clear: %q", f.model.editor.Value())
	}
	if f.session.Coord.Code() != executor.PlaceholderProgram {
		t.Fatal("coordinator buffer not reset")
	}
}

func TestModel_ToggleOutputHidesPane(t *testing.T) {
	f := newFixture(t)
	f.update(t, tea.WindowSizeMsg{Width: 100, Height: 40})
	f.update(t, key(tea.KeyCtrlO))

	if f.pref.ShowOutput() {
		t.Fatal("toggle must flip the preference")
	}
	if strings.Contains(f.model.View(), "Output") {
		t.Fatal("output pane hidden when preference is false")
	}
	f.update(t, key(tea.KeyCtrlO))
	if !strings.Contains(f.model.View(), "Output") {
		t.Fatal("output pane back after second toggle")
	}
}

func TestModel_ThemeToggleSavesEditorTheme(t *testing.T) {
	f := newFixture(t)
	f.update(t, key(tea.KeyCtrlT))
	if f.themes.Current() != theme.Light {
		t.Fatalf("expected light scheme, got %s", f.themes.Current())
	}
	f.update(t, schemeMsg(theme.Light))
	if len(f.saved) != 1 || f.saved[0] != "vs" {
		t.Fatalf("unexpected saved themes %v", f.saved)
	}
}

func TestModel_NoticeShownInFooter(t *testing.T) {
	f := newFixture(t)
	f.update(t, noticeMsg(executor.Notice{Level: executor.LevelError, Message: "Not connected to execution server"}))
	if !strings.Contains(f.model.View(), "Not connected to execution server") {
		t.Fatal("notice missing from footer")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	f := newFixture(t)
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		cmd := f.update(t, key(k))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("key %v should quit", k)
		}
	}
}

func TestNotices_DropWhenFull(t *testing.T) {
	n := NewNotices(1)
	n.Notify(executor.Notice{Message: "a"})
	n.Notify(executor.Notice{Message: "b"})
	if got := (<-n.C()).Message; got != "a" {
		t.Fatalf("expected first notice, got %q", got)
	}
	select {
	case x := <-n.C():
		t.Fatalf("overflow notice should be dropped, got %q", x.Message)
	default:
	}
}
