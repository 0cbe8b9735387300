// Package ui holds the styling shared by pstop's non-dashboard commands:
// status symbols, colors and a line spinner.
package ui

import "github.com/charmbracelet/lipgloss"

// ANSI colors, so plain terminals render them too.
const (
	ColorSuccess lipgloss.Color = "2"
	ColorError   lipgloss.Color = "1"
	ColorWarning lipgloss.Color = "3"
	ColorInfo    lipgloss.Color = "6"
	ColorMuted   lipgloss.Color = "8"
)

// GradientColors cycle through the spinner frames.
var GradientColors = []lipgloss.Color{"5", "13", "6", "2"}

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warnStyle    = lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// Success renders s in the success color.
func Success(s string) string { return successStyle.Render(s) }

// Error renders s in the error color.
func Error(s string) string { return errorStyle.Render(s) }

// Warn renders s in the warning color.
func Warn(s string) string { return warnStyle.Render(s) }

// Muted renders s in gray.
func Muted(s string) string { return mutedStyle.Render(s) }

// Bold renders s bold.
func Bold(s string) string { return boldStyle.Render(s) }
