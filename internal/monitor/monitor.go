// Package monitor renders mission events in a terminal UI.
package monitor

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"droneops-mission/internal/command"
	"droneops-mission/internal/events"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type stepMsg struct{ events.StepEvent }
type abortMsg struct{ events.AbortEvent }
type faultMsg struct{ events.FaultEvent }
type dispatchMsg struct{ events.DispatchEvent }

// Commander forwards an operator command typed into the monitor.
type Commander func(vehicleID string, kind command.Kind)

type setCommanderMsg struct{ fn Commander }

const maxLogLines = 1000

var operatorKinds = map[string]command.Kind{
	"launch": command.KindLaunch,
	"land":   command.KindLand,
	"rtl":    command.KindReturnToLaunch,
}

// Monitor is an events.Writer backed by a bubbletea program.
type Monitor struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// New starts the terminal UI with a row per vehicle. Quitting the UI
// interrupts the process.
func New(vehicleIDs []string) *Monitor {
	w := &Monitor{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newModel(vehicleIDs), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// SetCommander registers the callback for the command dialog.
func (w *Monitor) SetCommander(fn Commander) {
	w.program.Send(setCommanderMsg{fn: fn})
}

func (w *Monitor) WriteStep(e events.StepEvent) error {
	w.program.Send(stepMsg{e})
	return nil
}

func (w *Monitor) WriteAbort(e events.AbortEvent) error {
	w.program.Send(abortMsg{e})
	return nil
}

func (w *Monitor) WriteFault(e events.FaultEvent) error {
	w.program.Send(faultMsg{e})
	return nil
}

func (w *Monitor) WriteDispatch(e events.DispatchEvent) error {
	w.program.Send(dispatchMsg{e})
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *Monitor) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type vehicleRow struct {
	id     string
	state  string
	step   int
	action string
	aborts int
	faults int
}

type model struct {
	table      table.Model
	vp         viewport.Model
	input      textinput.Model
	dialog     bool
	vehicles   []*vehicleRow
	logs       []string
	dispatched int
	failed     int
	wrap       bool
	autoscroll bool
	height     int
	commander  Commander
	status     string
}

func newModel(vehicleIDs []string) model {
	cols := []table.Column{
		{Title: "Vehicle", Width: 12},
		{Title: "State", Width: 10},
		{Title: "Step", Width: 6},
		{Title: "Action", Width: 18},
		{Title: "Aborts", Width: 7},
		{Title: "Faults", Width: 7},
	}
	m := model{
		table:      table.New(table.WithColumns(cols), table.WithHeight(len(vehicleIDs)+1)),
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
	for _, id := range vehicleIDs {
		m.vehicle(id)
	}
	m.refreshTable()
	return m
}

func (m *model) vehicle(id string) *vehicleRow {
	for _, v := range m.vehicles {
		if v.id == id {
			return v
		}
	}
	v := &vehicleRow{id: id, state: "idle", step: -1}
	m.vehicles = append(m.vehicles, v)
	m.table.SetHeight(len(m.vehicles) + 1)
	return v
}

func (m *model) refreshTable() {
	rows := make([]table.Row, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		step := "-"
		if v.step >= 0 {
			step = fmt.Sprintf("%d", v.step)
		}
		rows = append(rows, table.Row{v.id, v.state, step, v.action,
			fmt.Sprintf("%d", v.aborts), fmt.Sprintf("%d", v.faults)})
	}
	m.table.SetRows(rows)
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.dialog {
			return m.updateDialog(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "c":
			m.input = textinput.New()
			m.input.Placeholder = "vehicle,land|rtl|launch"
			m.input.Focus()
			m.dialog = true
			m.updateViewportHeight()
			return m, nil
		}
		if !m.autoscroll {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case stepMsg:
		v := m.vehicle(msg.VehicleID)
		v.step, v.action = msg.Step, string(msg.Action)
		v.state = "executing"
		m.refreshTable()
		if msg.Phase == events.PhaseStart {
			m.appendLog(fmt.Sprintf("%s %s step %d %s (plan %s)", stamp(msg.Timestamp), msg.VehicleID, msg.Step, msg.Action, shortID(msg.PlanID)))
		}
	case abortMsg:
		v := m.vehicle(msg.VehicleID)
		v.state, v.step = "aborted", msg.Step
		v.aborts++
		m.refreshTable()
		m.appendLog(fmt.Sprintf("%s %s ABORT %s mode=%s dropped=%d", stamp(msg.Timestamp), msg.VehicleID, msg.Reason, msg.Mode, msg.Dropped))
	case faultMsg:
		v := m.vehicle(msg.VehicleID)
		v.state, v.step = "fault", msg.Step
		v.faults++
		m.refreshTable()
		m.appendLog(fmt.Sprintf("%s %s FAULT %s recovered=%t", stamp(msg.Timestamp), msg.VehicleID, msg.Error, msg.Recovered))
	case dispatchMsg:
		if msg.OK() {
			m.dispatched++
			m.appendLog(fmt.Sprintf("%s %s -> %s investigate reading %d (%.1f) at %.1fN %.1fE",
				stamp(msg.Timestamp), msg.PrimaryID, msg.SecondaryID, msg.SourceID, msg.Value, msg.North, msg.East))
		} else {
			m.failed++
			m.appendLog(fmt.Sprintf("%s %s dispatch for reading %d failed: %s", stamp(msg.Timestamp), msg.SecondaryID, msg.SourceID, msg.Error))
		}
	case setCommanderMsg:
		m.commander = msg.fn
	}
	return m, nil
}

func (m model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		id, kind, err := parseCommand(m.input.Value())
		switch {
		case err != nil:
			m.status = err.Error()
		case m.commander == nil:
			m.status = "commands unavailable"
		default:
			go m.commander(id, kind)
			m.status = fmt.Sprintf("sent %s to %s", kind, id)
		}
		m.dialog = false
		m.updateViewportHeight()
	case tea.KeyEsc:
		m.dialog = false
		m.updateViewportHeight()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func parseCommand(s string) (string, command.Kind, error) {
	id, verb, ok := strings.Cut(s, ",")
	id, verb = strings.TrimSpace(id), strings.ToLower(strings.TrimSpace(verb))
	if !ok || id == "" {
		return "", "", fmt.Errorf("expected vehicle,command")
	}
	kind, ok := operatorKinds[verb]
	if !ok {
		return "", "", fmt.Errorf("unknown command %q", verb)
	}
	return id, kind, nil
}

func (m *model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.refreshViewport()
}

func (m *model) updateViewportHeight() {
	h := m.height - lipgloss.Height(m.table.View()) - lipgloss.Height(m.renderBottom()) - 3
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *model) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			l = wordwrap.String(l, m.vp.Width)
		}
		lines = append(lines, l)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m model) View() string {
	divider := strings.Repeat("─", m.vp.Width)
	return strings.Join([]string{
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}, "\n")
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m model) renderBottom() string {
	counts := lipgloss.JoinHorizontal(lipgloss.Top,
		"Dispatches: ",
		okStyle.Render(fmt.Sprintf("%d sent", m.dispatched)),
		" / ",
		failStyle.Render(fmt.Sprintf("%d failed", m.failed)),
	)
	lines := []string{counts}
	if m.dialog {
		lines = append(lines, "Command: "+m.input.View())
	} else if m.status != "" {
		lines = append(lines, m.status)
	}
	lines = append(lines, helpStyle.Render("q quit  c command  w wrap  s autoscroll"))
	return strings.Join(lines, "\n")
}

func stamp(t time.Time) string { return t.Format("15:04:05") }

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
