package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailtask/internal/theme"
)

// Layout manages the terminal frame: a header line, the content area and
// a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// ModalWidth is the width dialogs render at: most of the screen, capped
// so long lines stay readable.
func (l Layout) ModalWidth() int {
	w := l.Width - 4
	if w > 96 {
		w = 96
	}
	if w < 40 {
		w = 40
	}
	return w
}

// RenderHeader renders the top bar with a title on the left and the page
// state on the right.
func (l Layout) RenderHeader(title, pageStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(pageStatus)

	gap := l.Width - lipgloss.Width(titleRendered) - lipgloss.Width(statusRendered)
	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, l.fill(theme.HeaderStyle, gap), statusRendered)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	gap := l.Width - lipgloss.Width(rendered)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, l.fill(theme.StatusBarStyle, gap))
}

func (l Layout) fill(style lipgloss.Style, gap int) string {
	if gap < 0 {
		gap = 0
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}

// RenderModal centers a dialog in the content area.
func (l Layout) RenderModal(dialog string) string {
	return lipgloss.Place(l.ContentWidth(), l.ContentHeight(), lipgloss.Center, lipgloss.Center, dialog)
}

// RenderWithFrame stacks the header, content area, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
