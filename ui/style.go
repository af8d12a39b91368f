package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	styleOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleBad      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleEmphasis = lipgloss.NewStyle().Bold(true)
)

// OK renders text in the "fine" color (installed, up to date).
func OK(text string) string { return styleOK.Render(text) }

// Warn renders text in the attention color (upgrade available, stale repo).
func Warn(text string) string { return styleWarn.Render(text) }

// Bad renders text in the error color (conflict, unmet dependency).
func Bad(text string) string { return styleBad.Render(text) }

// Dim renders de-emphasized text (versions, counts).
func Dim(text string) string { return styleDim.Render(text) }

// Emphasis renders bold text (identifiers).
func Emphasis(text string) string { return styleEmphasis.Render(text) }
