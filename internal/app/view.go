package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Mail to Task", m.pageStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewComposer:
		return m.layout.RenderModal(m.composer.View())
	case ViewSettings:
		return m.settings.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.renderTriggers()
	}
}

func (m Model) renderTriggers() string {
	var b strings.Builder
	if len(m.rows) == 0 {
		b.WriteString(DimmedStyle.Render("No triggers on this page yet. Open a conversation in your mail."))
	}
	width := m.layout.ContentWidth()
	for i, row := range m.rows {
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			TriggerStyle(string(row.trigger.Kind)).Render(string(row.trigger.Kind)),
			" "+row.title,
			DimmedStyle.Render("  "+row.detail),
		)
		style := ListItemStyle
		if i == m.cursor {
			style = SelectedItemStyle
		}
		b.WriteString(style.MaxWidth(width).Render(line))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(StatusStyle(m.noticeKind).Render(m.notice))
	}
	return b.String()
}

// pageStatus summarizes the page for the header.
func (m Model) pageStatus() string {
	status := fmt.Sprintf("%d triggers", len(m.rows))
	if m.cfg.Source != "" {
		status = m.cfg.Source + " · " + status
	}
	return status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewSettings:
		return "enter next | esc cancel"
	case ViewComposer:
		return "tab next | enter pick | ctrl+s submit | ctrl+t mode | ctrl+e expand | esc close"
	default:
		return "q quit | ? help | enter compose | r rescan | s settings"
	}
}
