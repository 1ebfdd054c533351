// Package dashboard renders the live state of the session device and turns
// key presses into controller keys.
package dashboard

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/saviobatista/testvehicle/internal/control"
	"github.com/saviobatista/testvehicle/internal/session"
	"github.com/saviobatista/testvehicle/internal/telemetry"
	"github.com/saviobatista/testvehicle/internal/types"
)

var _ tea.Model = (*Model)(nil)

// Model is the telemetry dashboard of one session.
type Model struct {
	session *session.Session
	keys    chan<- control.Key
	refresh time.Duration
	now     func() time.Time

	fields  []types.Field
	entries []string
	dropped uint64
	width   int
	done    bool
}

// New creates the dashboard. Keys are forwarded to the controller without
// blocking: a key pressed while a command is in flight is dropped.
func New(s *session.Session, keys chan<- control.Key, refresh time.Duration) *Model {
	m := &Model{
		session: s,
		keys:    keys,
		refresh: refresh,
		now:     time.Now,
	}
	m.load()
	return m
}

// Init starts the refresh timer and watches for the end of the session.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		refreshCmd(m.refresh),
		waitDoneCmd(m.session.Done()),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case RefreshMsg:
		if m.done {
			return m, nil
		}
		snapshot := m.load()
		m.session.Stats.IncrementTelemetryTicks()
		return m, tea.Batch(refreshCmd(m.refresh), publishCmd(m.session, snapshot))

	case SessionDoneMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := KeyFromMsg(msg)
	switch key {
	case control.KeyUnknown:
		return m, nil
	case control.KeyQuit:
		m.session.Cancel()
		m.done = true
		return m, tea.Quit
	}

	select {
	case m.keys <- key:
	default:
		m.dropped++
		log := m.session.Log()
		log.Debug().Str("key", key.String()).Msg("Key dropped while a command is in flight")
	}
	return m, nil
}

// load rebuilds the status and log panels from the session.
func (m *Model) load() *types.Snapshot {
	snapshot := telemetry.Snapshot(m.session, m.now())
	m.fields = snapshot.Fields
	m.entries = m.session.Journal.Snapshot()
	return snapshot
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.done {
		return ""
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top, m.statusTable(), " ", m.logTable())
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.session.Device.Name()),
		panels,
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		frameStyle.Render(body),
		legendTable(),
	)
}

func (m *Model) statusTable() string {
	rows := make([][]string, 0, len(m.fields))
	for _, f := range m.fields {
		rows = append(rows, []string{f.Name, f.Value})
	}
	return newTable("Param", "Value").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(rows) && rows[row][1] == telemetry.Placeholder {
				return placeholderStyle
			}
			return cellStyle
		}).
		Rows(rows...).
		Render()
}

func (m *Model) logTable() string {
	rows := make([][]string, 0, len(m.entries))
	for _, e := range m.entries {
		rows = append(rows, []string{e})
	}
	if len(rows) == 0 {
		rows = append(rows, []string{strings.Repeat(" ", 24)})
	}
	return newTable("Log").Rows(rows...).Render()
}

func legendTable() string {
	return newTable("Key", "Action").Rows(Legend...).Render()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}
