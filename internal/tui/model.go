package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// DefaultScrollback is the number of lines kept in the console.
const DefaultScrollback = 10000

// flushInterval batches output lines before the viewport is rebuilt.
const flushInterval = 50 * time.Millisecond

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the header.
type TickMsg time.Time

// LineMsg carries one line appended by the runner.
type LineMsg struct {
	Text string
	Kind toolrunner.Kind
}

// AttachMsg hands the running process to the console.
type AttachMsg struct {
	Process *toolrunner.Process
}

// DetachMsg signals that the process has finished.
type DetachMsg struct{}

// ForwarderMsg carries the child's stdin.
type ForwarderMsg struct {
	W io.WriteCloser
}

// TitleMsg updates the console and terminal title.
type TitleMsg struct {
	Title string
}

// ResultMsg carries the final result of the run.
type ResultMsg struct {
	Result toolrunner.Result
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

type stopDoneMsg struct{ err error }

type inputSentMsg struct{ err error }

// flushMsg rebuilds the viewport from the scrollback.
type flushMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the console state.
type Model struct {
	// Configuration
	appName     string
	scrollback  int
	stopTimeout time.Duration

	// Current state
	title     string
	lines     []string
	process   *toolrunner.Process
	stdin     *inputWriter
	result    *toolrunner.Result
	startTime time.Time
	status    string

	viewport viewport.Model
	input    textinput.Model

	// flushPending is set while a flushMsg is scheduled
	flushPending bool

	// Display options
	width  int
	height int

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	AppName     string
	Scrollback  int
	StopTimeout time.Duration
}

// New creates a new console model.
func New(cfg Config) Model {
	appName := cfg.AppName
	if appName == "" {
		appName = "apex-toolrun"
	}
	scrollback := cfg.Scrollback
	if scrollback <= 0 {
		scrollback = DefaultScrollback
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = toolrunner.DefaultStopTimeout
	}

	ti := textinput.New()
	ti.Placeholder = "input for the running tool"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Width = 72
	ti.Focus()

	m := Model{
		appName:     appName,
		scrollback:  scrollback,
		stopTimeout: stopTimeout,
		startTime:   time.Now(),
		viewport:    viewport.New(76, 16),
		input:       ti,
		width:       80,
		height:      24,
	}
	m.resize()
	return m
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case TickMsg:
		return m, tickCmd()

	case LineMsg:
		m.appendLine(RenderLine(msg.Text, msg.Kind))
		if m.flushPending {
			return m, nil
		}
		m.flushPending = true
		return m, flushCmd()

	case flushMsg:
		m.flushPending = false
		m.refresh()
		return m, nil

	case AttachMsg:
		m.process = msg.Process
		m.result = nil
		m.startTime = time.Now()
		m.status = ""
		return m, nil

	case DetachMsg:
		m.process = nil
		m.closeInput()
		return m, nil

	case ForwarderMsg:
		m.closeInput()
		m.stdin = newInputWriter(msg.W)
		return m, nil

	case TitleMsg:
		m.title = msg.Title
		return m, tea.SetWindowTitle(fmt.Sprintf("%s: %s", m.appName, msg.Title))

	case ResultMsg:
		r := msg.Result
		m.result = &r
		return m, nil

	case stopDoneMsg:
		if msg.err != nil {
			m.status = "tool killed: " + msg.err.Error()
		} else {
			m.status = "tool stopped"
		}
		return m, nil

	case inputSentMsg:
		if msg.err != nil {
			m.status = "input not delivered: " + msg.err.Error()
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		m.closeInput()
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		m.closeInput()
		return m, tea.Quit

	case "ctrl+k":
		if m.process == nil {
			return m, nil
		}
		m.status = "stopping..."
		return m, stopCmd(m.process, m.stopTimeout)

	case "enter":
		val := m.input.Value()
		m.input.Reset()
		if m.stdin == nil {
			m.status = "no running tool accepts input"
			return m, nil
		}
		m.appendLine(inputEchoStyle.Render("> " + val))
		m.refresh()
		return m, waitInputCmd(m.stdin.Send(val))

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderConsole()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func stopCmd(p *toolrunner.Process, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		return stopDoneMsg{err: p.Stop(timeout)}
	}
}

// waitInputCmd reports the delivery of one queued input line.
func waitInputCmd(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return inputSentMsg{err: <-done}
	}
}

func flushCmd() tea.Cmd {
	return tea.Tick(flushInterval, func(time.Time) tea.Msg {
		return flushMsg{}
	})
}

// =============================================================================
// Scrollback
// =============================================================================

// appendLine adds a line to the scrollback. The viewport picks it up on the
// next refresh.
func (m *Model) appendLine(rendered string) {
	m.lines = append(m.lines, rendered)
	if over := len(m.lines) - m.scrollback; over > 0 {
		m.lines = m.lines[over:]
	}
}

// refresh rebuilds the viewport content, following the tail when the view
// was at the bottom.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) closeInput() {
	if m.stdin != nil {
		m.stdin.Close()
		m.stdin = nil
	}
}

func (m *Model) resize() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	// header, box border, input line, footer
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 4
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
}

// =============================================================================
// Accessors
// =============================================================================

// Title returns the current title.
func (m Model) Title() string { return m.title }

// Lines returns the number of lines in the scrollback.
func (m Model) Lines() int { return len(m.lines) }

// Running reports whether a process is attached.
func (m Model) Running() bool { return m.process != nil }

// Elapsed returns the time since the current tool started.
func (m Model) Elapsed() time.Duration {
	if m.process != nil {
		return m.process.Uptime()
	}
	if m.result != nil {
		return m.result.Duration
	}
	return 0
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
