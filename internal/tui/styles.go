package tui

import "github.com/charmbracelet/lipgloss"

// Adaptive palette for dark and light terminals.
// Format: AdaptiveColor{Light, Dark}
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "63", Dark: "63"}   // muted indigo
	colorSubtle = lipgloss.AdaptiveColor{Light: "243", Dark: "241"} // gray
	colorText   = lipgloss.AdaptiveColor{Light: "235", Dark: "252"} // near-white on dark
	colorGreen  = lipgloss.AdaptiveColor{Light: "34", Dark: "78"}   // configured
	colorOrange = lipgloss.AdaptiveColor{Light: "208", Dark: "208"} // skipped
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "203"} // error
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"} // confirm
	colorBorder = lipgloss.AdaptiveColor{Light: "250", Dark: "238"} // panel borders
)

// Titles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText)
)

// List rows
var (
	cursorStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorText)

	normalRowStyle = lipgloss.NewStyle().
			Foreground(colorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)
)

// Status indicators
var (
	statusOKStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	statusSkippedStyle = lipgloss.NewStyle().
				Foreground(colorOrange)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed)
)

// Detail rows
var (
	detailLabelStyle = lipgloss.NewStyle().
				Foreground(colorSubtle).
				Width(22)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(colorText)
)

// Help bar
var (
	helpKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)

	helpSepStyle = lipgloss.NewStyle().
			Foreground(colorSubtle).
			Padding(0, 1)
)

// Misc
var (
	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	confirmStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)
)

// OK renders s in the success color.
func OK(s string) string { return statusOKStyle.Render(s) }

// Skipped renders s in the skipped color.
func Skipped(s string) string { return statusSkippedStyle.Render(s) }

// Failed renders s in the error color.
func Failed(s string) string { return statusErrorStyle.Render(s) }

// Dim renders s in the subtle color.
func Dim(s string) string { return dimStyle.Render(s) }
