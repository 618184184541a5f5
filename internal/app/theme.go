package app

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailtask/internal/theme"
)

// Styles used by the trigger list. New code should import from the theme
// package directly.
var (
	ListItemStyle     = theme.ListItemStyle
	SelectedItemStyle = theme.SelectedItemStyle
	HelpStyle         = theme.HelpStyle
	DimmedStyle       = theme.DimmedStyle
)

// StatusStyle delegates to theme.StatusStyle.
func StatusStyle(kind string) lipgloss.Style {
	return theme.StatusStyle(kind)
}

// TriggerStyle delegates to theme.TriggerStyle.
func TriggerStyle(kind string) lipgloss.Style {
	return theme.TriggerStyle(kind)
}
