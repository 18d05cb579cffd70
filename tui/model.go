// Package tui is the interactive output pane for runsql: it prompts for a
// connection when the document has none, runs the file or statement through
// the client, and streams the output as it arrives.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/runsql/config"
	"github.com/lexcodex/runsql/runner"
	"github.com/lexcodex/runsql/session"
)

// Scope selects what gets executed.
type Scope int

const (
	ScopeFile Scope = iota
	ScopeStatement
	ScopeExplain
)

// Options configures a TUI run.
type Options struct {
	Service  *session.Service
	DocID    string
	FilePath string
	Text     string
	Line     int
	Scope    Scope
	Reselect bool
}

// Run bootstraps the output pane.
func Run(ctx context.Context, opts Options) error {
	if opts.Service == nil {
		return fmt.Errorf("service is required")
	}
	if len(opts.Service.Connections()) == 0 {
		return config.ErrNoConnectionsConfigured
	}
	if opts.Reselect {
		if err := opts.Service.ForgetConnection(opts.DocID); err != nil {
			return err
		}
	}
	program := tea.NewProgram(newModel(ctx, opts), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type phase int

const (
	phasePicking phase = iota
	phaseRunning
	phaseDone
)

// chunkMsg delivers one line of client output.
type chunkMsg runner.Chunk

// doneMsg delivers the terminal status.
type doneMsg runner.Status

// startErrMsg reports a failed start.
type startErrMsg struct{ err error }

// connItem adapts a connection for the bubbles list.
type connItem struct {
	name    string
	dialect string
}

func (i connItem) Title() string       { return i.name }
func (i connItem) Description() string { return i.dialect }
func (i connItem) FilterValue() string { return i.name }

// Model coordinates the picker, the output viewport, and the status bar.
type Model struct {
	ctx  context.Context
	opts Options

	phase  phase
	picker list.Model
	pane   viewport.Model
	spin   spinner.Model

	events chan tea.Msg
	lines  []string
	status runner.Status
	err    error

	width  int
	height int
	ready  bool
}

func newModel(ctx context.Context, opts Options) Model {
	items := make([]list.Item, 0, len(opts.Service.Connections()))
	for _, conn := range opts.Service.Connections() {
		items = append(items, connItem{name: conn.Name, dialect: conn.Dialect})
	}
	picker := list.New(items, list.NewDefaultDelegate(), 0, 0)
	picker.Title = "Choose a connection"
	picker.SetShowStatusBar(false)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := Model{
		ctx:    ctx,
		opts:   opts,
		picker: picker,
		spin:   spin,
		events: make(chan tea.Msg, 64),
	}
	if _, err := opts.Service.ResolveConnection(opts.DocID); err == nil {
		m.phase = phaseRunning
	} else {
		m.phase = phasePicking
	}
	return m
}

// Init fulfills the Bubble Tea Model interface.
func (m Model) Init() tea.Cmd {
	if m.phase == phaseRunning {
		return tea.Batch(m.spin.Tick, m.startRun(), m.waitEvent())
	}
	return nil
}

// Update applies incoming Bubble Tea messages to mutate the Model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.opts.Service.Kill(m.opts.DocID)
			return m, tea.Quit
		case "q":
			if m.phase != phasePicking {
				m.opts.Service.Kill(m.opts.DocID)
				return m, tea.Quit
			}
		case "k":
			if m.phase == phaseRunning {
				m.opts.Service.Kill(m.opts.DocID)
				return m, nil
			}
		case "enter":
			if m.phase == phasePicking {
				return m.handlePick()
			}
		}
	case chunkMsg:
		m.appendLine(renderChunk(runner.Chunk(msg)))
		return m, m.waitEvent()
	case doneMsg:
		m.status = runner.Status(msg)
		m.phase = phaseDone
		m.appendLine(renderMarker(runner.Status(msg)))
		return m, nil
	case startErrMsg:
		m.err = msg.err
		m.phase = phaseDone
		m.appendLine(stderrStyle.Render(msg.err.Error()))
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.phase == phasePicking {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.pane, cmd = m.pane.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	paneHeight := max(1, msg.Height-2)
	if !m.ready {
		m.pane = viewport.New(msg.Width, paneHeight)
		m.ready = true
	} else {
		m.pane.Width = msg.Width
		m.pane.Height = paneHeight
	}
	m.picker.SetSize(msg.Width, paneHeight)
	return m, nil
}

func (m Model) handlePick() (tea.Model, tea.Cmd) {
	item, ok := m.picker.SelectedItem().(connItem)
	if !ok {
		return m, nil
	}
	if err := m.opts.Service.ChooseConnection(m.opts.DocID, item.name); err != nil {
		m.err = err
		m.phase = phaseDone
		return m, nil
	}
	m.phase = phaseRunning
	return m, tea.Batch(m.spin.Tick, m.startRun(), m.waitEvent())
}

// startRun kicks off the execution and reports only the start outcome; the
// chunks flow through the event channel.
func (m Model) startRun() tea.Cmd {
	ctx := m.ctx
	opts := m.opts
	sink := &channelSink{events: m.events}
	return func() tea.Msg {
		var err error
		switch opts.Scope {
		case ScopeStatement:
			_, err = opts.Service.ExecSnippet(ctx, opts.DocID, opts.Text, opts.Line, sink)
		case ScopeExplain:
			_, err = opts.Service.Explain(ctx, opts.DocID, opts.Text, opts.Line, sink)
		default:
			_, err = opts.Service.ExecFile(ctx, opts.DocID, opts.FilePath, sink)
		}
		if err != nil {
			return startErrMsg{err: err}
		}
		return nil
	}
}

// waitEvent bridges the sink channel into the Bubble Tea loop.
func (m Model) waitEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if m.ready {
		m.pane.SetContent(strings.Join(m.lines, "\n"))
		m.pane.GotoBottom()
	}
}

// View renders the picker or the output pane with a status line.
func (m Model) View() string {
	if m.phase == phasePicking {
		return m.picker.View()
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.opts.FilePath))
	b.WriteString("\n")
	if m.ready {
		b.WriteString(m.pane.View())
	} else {
		b.WriteString(strings.Join(m.lines, "\n"))
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) statusLine() string {
	switch m.phase {
	case phaseRunning:
		return statusBarStyle.Render(m.spin.View()+" running") + helpStyle.Render("  k kill · q quit")
	case phaseDone:
		if m.err != nil {
			return markerFailedStyle.Render("error") + helpStyle.Render("  q quit")
		}
		return statusBarStyle.Render(string(m.status.State)) + helpStyle.Render("  q quit")
	default:
		return ""
	}
}

func renderChunk(chunk runner.Chunk) string {
	if chunk.Stream == runner.Stderr {
		return stderrStyle.Render(chunk.Text)
	}
	return stdoutStyle.Render(chunk.Text)
}

func renderMarker(status runner.Status) string {
	switch status.State {
	case runner.Killed:
		return markerKilledStyle.Render(status.Marker())
	case runner.Failed:
		return markerFailedStyle.Render(status.Marker())
	default:
		return markerCompletedStyle.Render(status.Marker())
	}
}

// channelSink forwards runner output into the Bubble Tea event channel.
type channelSink struct {
	events chan tea.Msg
}

func (s *channelSink) Append(chunk runner.Chunk)  { s.events <- chunkMsg(chunk) }
func (s *channelSink) Close(status runner.Status) { s.events <- doneMsg(status) }
