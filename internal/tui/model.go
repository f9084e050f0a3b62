// Package tui is the terminal front end of an executor session: a code
// editor, the transcript pane and a connection badge.
package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AbdouGG/Deep-Code/internal/executor"
	"github.com/AbdouGG/Deep-Code/internal/logging"
	"github.com/AbdouGG/Deep-Code/internal/theme"
	"github.com/AbdouGG/Deep-Code/internal/transcript"
)

const statusRefresh = 500 * time.Millisecond

// OutputPreference is the output-panel visibility toggle.
type OutputPreference interface {
	ShowOutput() bool
	Set(value bool) error
}

type Options struct {
	Session *executor.Session
	Prefs   OutputPreference
	Theme   *theme.Broadcaster
	Notices *Notices
	// SaveTheme persists the editor theme name after a scheme change.
	SaveTheme func(editorTheme string) error
	TabWidth  int
	Logger    *slog.Logger
}

type transcriptMsg struct{}

type noticeMsg executor.Notice

type schemeMsg theme.Scheme

type submitDoneMsg struct {
	err error
}

type tickMsg time.Time

// subscriptions outlive Model copies; Close releases them once.
type subscriptions struct {
	transcript <-chan struct{}
	scheme     <-chan theme.Scheme
	cancels    []func()
}

type Model struct {
	session  *executor.Session
	prefs    OutputPreference
	themes   *theme.Broadcaster
	notices  *Notices
	save     func(string) error
	tabWidth int
	logger   *slog.Logger
	subs     *subscriptions

	width  int
	height int

	editor  textarea.Model
	output  viewport.Model
	spinner spinner.Model
	styles  uiStyles

	notice    executor.Notice
	hasNotice bool
}

func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Options{Writer: io.Discard})
	}
	themes := opts.Theme
	if themes == nil {
		themes = theme.NewBroadcaster(theme.Dark)
	}
	notices := opts.Notices
	if notices == nil {
		notices = NewNotices(0)
	}
	tabWidth := opts.TabWidth
	if tabWidth <= 0 {
		tabWidth = 2
	}

	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.Prompt = ""
	editor.CharLimit = 0
	editor.SetValue(opts.Session.Coord.Code())
	editor.Focus()

	output := viewport.New(0, 0)
	output.MouseWheelEnabled = true

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	trCh, trCancel := opts.Session.Transcript().Watch()
	schemeCh, schemeCancel := themes.Subscribe()

	m := Model{
		session:  opts.Session,
		prefs:    opts.Prefs,
		themes:   themes,
		notices:  notices,
		save:     opts.SaveTheme,
		tabWidth: tabWidth,
		logger:   logger.With("module", "tui"),
		subs: &subscriptions{
			transcript: trCh,
			scheme:     schemeCh,
			cancels:    []func(){trCancel, schemeCancel},
		},
		editor:  editor,
		output:  output,
		spinner: sp,
		styles:  newStyles(themes.Current()),
	}
	m.refreshOutput()
	return m
}

// Close releases the transcript and theme subscriptions.
func (m Model) Close() {
	for _, cancel := range m.subs.cancels {
		cancel()
	}
	m.subs.cancels = nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		waitTranscript(m.subs.transcript),
		waitNotice(m.notices.C()),
		waitScheme(m.subs.scheme),
		tickEvery(statusRefresh),
	)
}

func waitTranscript(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return transcriptMsg{}
	}
}

func waitNotice(ch <-chan executor.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func waitScheme(ch <-chan theme.Scheme) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return schemeMsg(s)
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) submitCmd(code string) tea.Cmd {
	coord := m.session.Coord
	return func() tea.Msg {
		return submitDoneMsg{err: coord.Submit(context.Background(), code)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case transcriptMsg:
		m.refreshOutput()
		return m, waitTranscript(m.subs.transcript)

	case noticeMsg:
		m.notice = executor.Notice(msg)
		m.hasNotice = true
		return m, waitNotice(m.notices.C())

	case schemeMsg:
		m.styles = newStyles(theme.Scheme(msg))
		m.refreshOutput()
		if m.save != nil {
			if err := m.save(theme.EditorTheme(theme.Scheme(msg))); err != nil {
				m.logger.Warn("save editor theme failed", "err", err)
			}
		}
		return m, waitScheme(m.subs.scheme)

	case submitDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, executor.ErrBusy) {
			m.logger.Debug("submit rejected", "err", msg.err)
		}
		return m, nil

	case tickMsg:
		return m, tickEvery(statusRefresh)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+r":
		code := m.editor.Value()
		m.session.Coord.SetCode(code)
		return m, m.submitCmd(code)
	case "ctrl+l":
		m.session.Coord.Clear()
		m.editor.SetValue(m.session.Coord.Code())
		m.refreshOutput()
		return m, nil
	case "ctrl+o":
		if m.prefs != nil {
			if err := m.prefs.Set(!m.prefs.ShowOutput()); err != nil {
				m.logger.Warn("toggle output failed", "err", err)
			}
			m.layout()
		}
		return m, nil
	case "ctrl+t":
		m.themes.Toggle()
		return m, nil
	case "tab":
		m.editor.InsertString(strings.Repeat(" ", m.tabWidth))
		m.session.Coord.SetCode(m.editor.Value())
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.session.Coord.SetCode(m.editor.Value())
	return m, cmd
}

func (m Model) showOutput() bool {
	return m.prefs == nil || m.prefs.ShowOutput()
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	inner := m.width - 4
	if inner < 10 {
		inner = 10
	}
	// header, footer, panel titles and borders
	body := m.height - 8
	if body < 4 {
		body = 4
	}
	editorHeight := body
	if m.showOutput() {
		editorHeight = body / 2
		m.output.Width = inner
		m.output.Height = body - editorHeight - 2
	}
	m.editor.SetWidth(inner)
	m.editor.SetHeight(editorHeight)
	m.refreshOutput()
}

func (m *Model) refreshOutput() {
	entries := m.session.Transcript().Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, m.styleFor(e.Kind).Render(e.Text))
	}
	m.output.SetContent(strings.Join(lines, "\n"))
	m.output.GotoBottom()
}

func (m Model) styleFor(kind transcript.Kind) lipgloss.Style {
	switch kind {
	case transcript.KindNotice:
		return m.styles.lineNotice
	case transcript.KindResult:
		return m.styles.lineResult
	case transcript.KindError:
		return m.styles.lineError
	default:
		return m.styles.lineRaw
	}
}

func (m Model) badge() string {
	status := m.session.Conn.Status()
	switch m.session.Conn.State() {
	case executor.StateOpen:
		return m.styles.badgeOK.Render("● " + status)
	case executor.StateConnecting:
		return m.styles.badgeWait.Render("◌ " + status)
	default:
		if status == "Reconnecting..." {
			return m.styles.badgeWait.Render("◌ " + status)
		}
		return m.styles.badgeFail.Render("○ " + status)
	}
}

func (m Model) View() string {
	header := m.styles.title.Render("Code Executor") + "  " + m.badge()
	if m.session.Coord.InFlight() {
		header += "  " + m.spinner.View() + " Executing..."
	}

	sections := []string{
		m.styles.header.Render(header),
		m.styles.panel.Render(m.styles.panelTitle.Render("Editor") + "\n" + m.editor.View()),
	}
	if m.showOutput() {
		sections = append(sections, m.styles.panel.Render(m.styles.panelTitle.Render("Output")+"\n"+m.output.View()))
	}

	footer := m.styles.helpText.Render("ctrl+r run · ctrl+l clear · ctrl+o output · ctrl+t theme · esc quit")
	if m.hasNotice {
		style := m.styles.noticeOK
		if m.notice.Level == executor.LevelError {
			style = m.styles.noticeError
		}
		footer = style.Render(m.notice.Message) + "  " + footer
	}
	sections = append(sections, footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Run drives the UI until the user quits.
func Run(ctx context.Context, m Model, altScreen bool) error {
	defer m.Close()
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
