package main

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

const (
	colorYellow  = "#E3D367"
	colorGray    = "#82878B"
	colorGrayDim = "#55626D"
	colorFg      = "#E1E2E3"
)

// customHuhTheme returns a huh theme for the init wizard, built on a dark
// base and accented in yellow.
func customHuhTheme() *huh.Theme {
	t := huh.ThemeDracula()

	yellow := lipgloss.Color(colorYellow)
	gray := lipgloss.Color(colorGray)
	fg := lipgloss.Color(colorFg)

	t.Focused.Base = t.Focused.Base.BorderForeground(yellow).Foreground(fg)
	t.Blurred.Base = t.Blurred.Base.BorderForeground(gray).Foreground(fg)

	t.Focused.Title = t.Focused.Title.Foreground(yellow).Bold(true)
	t.Blurred.Title = t.Blurred.Title.Foreground(gray)

	t.Focused.Description = t.Focused.Description.Foreground(gray)
	t.Blurred.Description = t.Blurred.Description.Foreground(lipgloss.Color(colorGrayDim))

	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(yellow)
	t.Focused.TextInput.Placeholder = t.Focused.TextInput.Placeholder.Foreground(lipgloss.Color(colorGrayDim))

	return t
}
