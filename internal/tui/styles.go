package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/AbdouGG/Deep-Code/internal/theme"
)

type uiStyles struct {
	header      lipgloss.Style
	title       lipgloss.Style
	badgeOK     lipgloss.Style
	badgeWait   lipgloss.Style
	badgeFail   lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	lineNotice  lipgloss.Style
	lineResult  lipgloss.Style
	lineError   lipgloss.Style
	lineRaw     lipgloss.Style
	noticeOK    lipgloss.Style
	noticeError lipgloss.Style
	helpText    lipgloss.Style
}

func newStyles(s theme.Scheme) uiStyles {
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")
	accent := lipgloss.Color("#01cdfe")
	border := lipgloss.Color("#3b3563")
	if s == theme.Light {
		text = lipgloss.Color("#1f2328")
		muted = lipgloss.Color("#57606a")
		accent = lipgloss.Color("#0969da")
		border = lipgloss.Color("#d0d7de")
	}
	green := lipgloss.Color("#05c46b")
	amber := lipgloss.Color("#ffb000")
	red := lipgloss.Color("#ff4d6d")

	return uiStyles{
		header: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		badgeOK:   lipgloss.NewStyle().Foreground(green).Bold(true),
		badgeWait: lipgloss.NewStyle().Foreground(amber).Bold(true),
		badgeFail: lipgloss.NewStyle().Foreground(red).Bold(true),
		panel: lipgloss.NewStyle().
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		panelTitle:  lipgloss.NewStyle().Foreground(muted).Bold(true),
		lineNotice:  lipgloss.NewStyle().Foreground(muted),
		lineResult:  lipgloss.NewStyle().Foreground(green),
		lineError:   lipgloss.NewStyle().Foreground(red),
		lineRaw:     lipgloss.NewStyle().Foreground(text),
		noticeOK:    lipgloss.NewStyle().Foreground(green),
		noticeError: lipgloss.NewStyle().Foreground(red),
		helpText:    lipgloss.NewStyle().Foreground(muted),
	}
}
