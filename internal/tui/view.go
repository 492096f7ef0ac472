package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderConsole renders header, scrollback, input line and footer.
func (m Model) renderConsole() string {
	sections := []string{
		m.renderHeader(),
		boxStyle.Width(m.width - 2).Render(m.viewport.View()),
		m.input.View(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	title := m.title
	if title == "" {
		title = "no tool"
	}

	state := toolrunner.StateCreated
	if m.process != nil {
		state = m.process.State()
	} else if m.result != nil {
		state = toolrunner.StateExited
	}

	header := fmt.Sprintf(
		" %s │ %s │ %s │ Elapsed: %s ",
		m.appName,
		title,
		GetStateLabel(state),
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	help := "enter: send input • ctrl+k: stop tool • pgup/pgdn: scroll • esc: quit"

	var parts []string
	if m.result != nil {
		parts = append(parts, GetResultLabel(*m.result))
	}
	if m.status != "" {
		parts = append(parts, mutedStyle.Render(m.status))
	}
	parts = append(parts, footerStyle.Render(help))

	return lipgloss.JoinHorizontal(lipgloss.Left, joinWith(parts, mutedStyle.Render(" │ "))...)
}

func joinWith(parts []string, sep string) []string {
	out := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, p)
	}
	return out
}
