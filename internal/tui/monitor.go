// Package tui renders the build monitor: a progress bar, the current
// pipeline stage, and a bounded tail of build output. It is one
// consumer of the engine's event stream; the engine itself never knows
// the monitor exists.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bitforge/internal/event"
)

// maxLogLines bounds the retained output tail.
const maxLogLines = 200

// Messages forwarded from the orchestration goroutine.
type (
	// LineMsg is one line of build output.
	LineMsg string
	// StageMsg announces a pipeline stage change.
	StageMsg struct{ Target, Name string }
	// ProgressMsg is the run's completion fraction.
	ProgressMsg float64
	// DoneMsg terminates the monitor with the run's outcome.
	DoneMsg struct{ Err error }
)

// Model is the bubbletea model for the build monitor.
type Model struct {
	bar     progress.Model
	spin    spinner.Model
	percent float64
	target  string
	stage   string
	logs    []string
	err     error
	done    bool
	width   int
	height  int
}

// NewModel returns a monitor ready to receive events.
func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		bar:  progress.New(progress.WithDefaultGradient()),
		spin: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 20
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil
	case LineMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[1:]
		}
		return m, nil
	case StageMsg:
		m.target = msg.Target
		m.stage = msg.Name
		return m, nil
	case ProgressMsg:
		m.percent = float64(msg)
		return m, nil
	case DoneMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	w := m.width
	if w == 0 {
		w = 80
	}
	h := m.height
	if h == 0 {
		h = 24
	}

	title := lipgloss.NewStyle().Bold(true).Underline(true)
	section := lipgloss.NewStyle().Bold(true)
	border := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)

	header := title.Render("bitforge build monitor")

	stage := "starting..."
	if m.stage != "" {
		stage = fmt.Sprintf("%s %s: %s", m.spin.View(), m.target, m.stage)
	}
	bar := fmt.Sprintf("%s %3.0f%%", m.bar.ViewAs(m.percent), m.percent*100)

	logHeight := h - 12
	if logHeight < 5 {
		logHeight = 5
	}
	start := len(m.logs) - logHeight
	if start < 0 {
		start = 0
	}
	var lines []string
	limit := w - 10
	for _, line := range m.logs[start:] {
		// Skip truncation entirely on absurdly narrow terminals.
		if limit > 3 && len(line) > limit {
			line = line[:limit-3] + "..."
		}
		lines = append(lines, "  "+line)
	}

	page := lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		section.Render("Stage:"),
		stage,
		bar,
		"",
		section.Render("Output:"),
		strings.Join(lines, "\n"),
		"",
		"Ctrl+C to close",
	)
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, border.Render(page))
}

// Err returns the run outcome after the monitor exits.
func (m Model) Err() error { return m.err }

// programSink forwards engine events into a running bubbletea program.
type programSink struct {
	p *tea.Program
}

func (s programSink) Emit(e event.Event) {
	switch e := e.(type) {
	case event.Line:
		s.p.Send(LineMsg(e))
	case event.Stage:
		s.p.Send(StageMsg{Target: e.Target, Name: e.Name})
	case event.Progress:
		s.p.Send(ProgressMsg(e))
	}
}

// RunMonitor starts the monitor, invokes run on a background goroutine
// with a sink wired to it, and blocks until the run finishes or the
// user closes the monitor. Returns the run's error.
func RunMonitor(run func(sink event.Sink) error) error {
	p := tea.NewProgram(NewModel(), tea.WithAltScreen())
	go func() {
		err := run(programSink{p: p})
		p.Send(DoneMsg{Err: err})
	}()
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
