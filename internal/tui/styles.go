// Package tui provides the interactive result console for tool runs.
//
// The TUI uses Bubble Tea for the application framework, Bubbles for the
// scrollback viewport and the input line, and Lipgloss for styling.
// It shows the output of the running tool, forwards typed lines to the
// tool's stdin and lets the user stop the tool.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// =============================================================================
// Color Palette
// =============================================================================

// Colors based on a modern dark theme
var (
	// Primary colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	// Status colors
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Neutral colors
	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Line Styles
// =============================================================================

var (
	outputStyle = lipgloss.NewStyle().
			Foreground(colorText)

	errorLineStyle = lipgloss.NewStyle().
			Foreground(colorError)

	messageStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Italic(true)

	inputEchoStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	// Box/panel styles
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	// Header style
	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1)

	// Footer style
	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)
)

// =============================================================================
// Kind and State Styles
// =============================================================================

// StyleFor returns the style used for a line of the given kind.
func StyleFor(kind toolrunner.Kind) lipgloss.Style {
	switch kind {
	case toolrunner.KindError:
		return errorLineStyle
	case toolrunner.KindMessage:
		return messageStyle
	default:
		return outputStyle
	}
}

// RenderLine renders one console line in the style of its kind.
func RenderLine(text string, kind toolrunner.Kind) string {
	return StyleFor(kind).Render(text)
}

// GetStateLabel returns a styled indicator for a process state.
func GetStateLabel(s toolrunner.State) string {
	switch s {
	case toolrunner.StateRunning:
		return statusOK.Render("● running")
	case toolrunner.StateStarting, toolrunner.StateStopping:
		return statusWarning.Render("● " + s.String())
	case toolrunner.StateFailed:
		return statusError.Render("● failed")
	case toolrunner.StateExited:
		return statusInfo.Render("● exited")
	default:
		return mutedStyle.Render("● idle")
	}
}

// GetResultLabel returns a styled summary of a finished run.
func GetResultLabel(r toolrunner.Result) string {
	switch {
	case r.SpawnError != nil:
		return statusError.Render("not started")
	case r.Interrupted:
		return statusWarning.Render(fmt.Sprintf("interrupted (exit %d)", r.ExitCode))
	case !r.Successful:
		return statusError.Render(fmt.Sprintf("errors reported (exit %d)", r.ExitCode))
	default:
		return statusOK.Render(fmt.Sprintf("ok (exit %d)", r.ExitCode))
	}
}
