package executor

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/AbdouGG/Deep-Code/internal/addrcodec"
	"github.com/AbdouGG/Deep-Code/internal/execws"
	"github.com/AbdouGG/Deep-Code/internal/transcript"
)

type harness struct {
	dialer  *execws.FakeDialer
	clock   *fakeClock
	notices *noticeRecorder
	tr      *transcript.Transcript
	conn    *Connection
	coord   *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dialer:  execws.NewFakeDialer(),
		clock:   &fakeClock{},
		notices: &noticeRecorder{},
		tr:      transcript.New(),
	}
	h.conn = NewConnection(Options{
		Dialer:     h.dialer,
		Transcript: h.tr,
		Notifier:   h.notices,
		Clock:      h.clock,
	})
	h.coord = NewCoordinator(h.conn)
	t.Cleanup(func() { _ = h.conn.Close() })
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return h.conn.State() == want })
}

func (h *harness) openAndWait(t *testing.T, addr string) *execws.FakeSocket {
	t.Helper()
	if err := h.conn.Open(addr); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	h.waitState(t, StateOpen)
	sock := h.dialer.Last()
	if sock == nil {
		t.Fatal("expected a dialed socket")
	}
	return sock
}

func TestConnection_OpenAppendsConnectNotice(t *testing.T) {
	h := newHarness(t)
	if h.conn.State() != StateIdle {
		t.Fatalf("fresh connection should be idle, got %s", h.conn.State())
	}
	h.openAndWait(t, "127.0.0.1")

	if diff := cmp.Diff([]string{ConnectedNotice}, h.tr.Lines()); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
	if got := h.dialer.URLs(); len(got) != 1 || got[0] != "ws://127.0.0.1:7890/Execute" {
		t.Fatalf("unexpected dial urls: %v", got)
	}
	if !h.notices.Has(LevelSuccess, "Connected to execution server") {
		t.Fatal("expected connected notice")
	}
	if h.conn.Status() != "Connected" {
		t.Fatalf("unexpected status: %s", h.conn.Status())
	}
}

func TestConnection_EmptyAddressIsStillDialed(t *testing.T) {
	h := newHarness(t)
	h.dialer.FailNext(errors.New("dial tcp: missing address"))
	if err := h.conn.Open(""); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	h.waitState(t, StateClosed)

	if got := h.dialer.URLs(); len(got) != 1 || got[0] != "ws://:7890/Execute" {
		t.Fatalf("empty address should still be dialed, got %v", got)
	}
	want := []string{TransportErrorLine, DisconnectedNotice}
	if diff := cmp.Diff(want, h.tr.Lines()); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
	if !h.notices.Has(LevelError, "Connection error") {
		t.Fatal("expected transient connection error notice")
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("expected one reconnect timer, got %d", h.clock.Pending())
	}
}

func TestConnection_ReconnectsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	sock := h.openAndWait(t, "10.0.0.5")

	sock.Hangup()
	h.waitState(t, StateClosed)
	if h.clock.Pending() != 1 {
		t.Fatalf("first close should schedule one reconnect, got %d", h.clock.Pending())
	}
	if !h.conn.HasRetried() {
		t.Fatal("retry budget should be spent once the reconnect is scheduled")
	}
	if h.conn.Status() != "Reconnecting..." {
		t.Fatalf("unexpected status while waiting: %s", h.conn.Status())
	}

	h.clock.Advance(ReconnectDelay - time.Second)
	if h.dialer.Dials() != 1 {
		t.Fatalf("reconnect fired early: dials=%d", h.dialer.Dials())
	}

	h.dialer.FailNext(errors.New("connection refused"))
	h.clock.Advance(time.Second)
	waitFor(t, "second dial", func() bool { return h.dialer.Dials() == 2 })
	waitFor(t, "second disconnect", func() bool {
		return slices.Equal(h.tr.Lines(), []string{
			ConnectedNotice,
			DisconnectedNotice,
			TransportErrorLine,
			DisconnectedNotice,
		})
	})

	if h.clock.Pending() != 0 {
		t.Fatalf("second close must not schedule a timer, got %d", h.clock.Pending())
	}
	h.clock.Advance(time.Minute)
	if h.dialer.Dials() != 2 {
		t.Fatalf("expected no further dials, got %d", h.dialer.Dials())
	}
	if h.conn.State() != StateClosed || h.conn.Status() != "Connection failed" {
		t.Fatalf("expected terminal failure, got state=%s status=%s", h.conn.State(), h.conn.Status())
	}
}

func TestConnection_ReconnectSucceedsThenCloseIsTerminal(t *testing.T) {
	h := newHarness(t)
	first := h.openAndWait(t, "10.0.0.5")
	first.Hangup()
	h.waitState(t, StateClosed)

	h.clock.Advance(ReconnectDelay)
	waitFor(t, "reconnected", func() bool { return h.dialer.Dials() == 2 && h.conn.State() == StateOpen })
	if got := h.dialer.URLs(); got[1] != got[0] {
		t.Fatalf("reconnect should target the same address: %v", got)
	}

	h.dialer.Last().Hangup()
	waitFor(t, "final close", func() bool {
		lines := h.tr.Lines()
		return h.conn.State() == StateClosed && len(lines) == 4
	})
	if h.clock.Pending() != 0 {
		t.Fatalf("retry budget is one per lifetime, got %d timers", h.clock.Pending())
	}
}

func TestConnection_TransportErrorThenCloseSchedulesOneReconnect(t *testing.T) {
	h := newHarness(t)
	sock := h.openAndWait(t, "10.0.0.5")

	sock.Fail(errors.New("connection reset by peer"))
	h.waitState(t, StateClosed)

	want := []string{ConnectedNotice, TransportErrorLine, DisconnectedNotice}
	if diff := cmp.Diff(want, h.tr.Lines()); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("error followed by close must schedule exactly one reconnect, got %d", h.clock.Pending())
	}
}

func TestConnection_CloseCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t)
	sock := h.openAndWait(t, "10.0.0.5")
	sock.Hangup()
	h.waitState(t, StateClosed)
	before := h.tr.Len()

	if err := h.conn.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	h.clock.Advance(2 * ReconnectDelay)

	if h.dialer.Dials() != 1 {
		t.Fatalf("reconnect fired after teardown: dials=%d", h.dialer.Dials())
	}
	if h.tr.Len() != before {
		t.Fatalf("transcript mutated after teardown: %v", h.tr.Lines())
	}
}

func TestConnection_StaleTimerCallbackIsInert(t *testing.T) {
	h := newHarness(t)
	h.clock.ignoreStop = true
	sock := h.openAndWait(t, "10.0.0.5")
	sock.Hangup()
	h.waitState(t, StateClosed)
	before := h.tr.Len()

	_ = h.conn.Close()
	h.clock.Advance(ReconnectDelay)

	if h.dialer.Dials() != 1 || h.tr.Len() != before {
		t.Fatalf("late timer callback must be a no-op: dials=%d lines=%v", h.dialer.Dials(), h.tr.Lines())
	}
}

func TestConnection_OpenSupersedesPreviousSocket(t *testing.T) {
	h := newHarness(t)
	old := h.openAndWait(t, "10.0.0.5")

	if err := h.conn.Open("10.0.0.6"); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	waitFor(t, "second socket open", func() bool {
		return h.dialer.Dials() == 2 && h.conn.State() == StateOpen
	})
	if !old.Closed() {
		t.Fatal("superseded socket should be released")
	}

	old.EmitText("late")
	h.dialer.Last().EmitText("fresh")
	waitFor(t, "fresh output", func() bool { return slices.Contains(h.tr.Lines(), "fresh") })
	if slices.Contains(h.tr.Lines(), "late") {
		t.Fatalf("superseded socket wrote into the transcript: %v", h.tr.Lines())
	}
	if h.conn.Address() != "10.0.0.6" {
		t.Fatalf("unexpected address: %s", h.conn.Address())
	}
}

func TestConnection_AddressChangeCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t)
	sock := h.openAndWait(t, "10.0.0.5")
	sock.Hangup()
	h.waitState(t, StateClosed)

	h.openAndWait(t, "10.0.0.7")
	if h.clock.Pending() != 0 {
		t.Fatalf("address change should cancel the pending reconnect, got %d", h.clock.Pending())
	}
	if h.conn.HasRetried() {
		t.Fatal("an explicit open starts a new retry budget")
	}
	h.clock.Advance(2 * ReconnectDelay)
	if h.dialer.Dials() != 2 {
		t.Fatalf("stale reconnect dialed: %v", h.dialer.URLs())
	}
}

func TestConnection_CloseDuringDialReleasesEverything(t *testing.T) {
	h := newHarness(t)
	h.dialer.Hold()
	if err := h.conn.Open("10.0.0.5"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	waitFor(t, "dial attempt", func() bool { return h.dialer.Dials() == 1 })

	done := make(chan struct{})
	go func() {
		_ = h.conn.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close blocked on an in-flight dial")
	}
	if h.tr.Len() != 0 {
		t.Fatalf("cancelled dial must not touch the transcript: %v", h.tr.Lines())
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("cancelled dial must not schedule a reconnect")
	}
}

func TestConnection_CloseIsIdempotentAndFinal(t *testing.T) {
	h := newHarness(t)
	if err := h.conn.Close(); err != nil {
		t.Fatalf("close without open failed: %v", err)
	}
	if err := h.conn.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if err := h.conn.Open("10.0.0.5"); !errors.Is(err, ErrClosed) {
		t.Fatalf("open after teardown should fail with ErrClosed, got %v", err)
	}
	if h.dialer.Dials() != 0 {
		t.Fatalf("no dial expected after teardown, got %d", h.dialer.Dials())
	}
}

func TestConnection_CloseReleasesLiveSocket(t *testing.T) {
	h := newHarness(t)
	sock := h.openAndWait(t, "10.0.0.5")
	before := h.tr.Len()
	_ = h.conn.Close()
	if !sock.Closed() {
		t.Fatal("teardown must release the live socket")
	}
	if h.tr.Len() != before {
		t.Fatalf("teardown is silent, got %v", h.tr.Lines())
	}
	if h.clock.Pending() != 0 {
		t.Fatal("teardown must not schedule a reconnect")
	}
}

func TestSession_StartDecodesToken(t *testing.T) {
	dialer := execws.NewFakeDialer()
	s := NewSession(Options{Dialer: dialer, Clock: &fakeClock{}, Notifier: &noticeRecorder{}})
	defer func() { _ = s.Close() }()

	if err := s.Start(addrcodec.Encode("192.168.1.20")); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "open", func() bool { return s.Conn.State() == StateOpen })
	if got := dialer.URLs(); got[0] != "ws://192.168.1.20:7890/Execute" {
		t.Fatalf("unexpected url: %v", got)
	}
	if s.Coord.Code() != WelcomeProgram {
		t.Fatal("new sessions start with the welcome program")
	}
	if s.Transcript() != s.Conn.Transcript() {
		t.Fatal("session shares the connection transcript")
	}
}
