package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/saviobatista/testvehicle/internal/control"
	"github.com/saviobatista/testvehicle/internal/device"
)

var _ tea.Model = (*WaitModel)(nil)

// WaitModel shows a spinner until the device leaves the Uninitialized state.
type WaitModel struct {
	ctx      context.Context
	device   device.Device
	interval time.Duration
	spinner  spinner.Model

	ready     bool
	cancelled bool
}

// NewWaitModel creates the init spinner for d. The device state is checked every interval.
func NewWaitModel(ctx context.Context, d device.Device, interval time.Duration) *WaitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &WaitModel{
		ctx:      ctx,
		device:   d,
		interval: interval,
		spinner:  s,
		ready:    d.State() != device.StateUninitialized,
	}
}

// Init starts the spinner and the state checks.
func (m *WaitModel) Init() tea.Cmd {
	if m.ready {
		return tea.Quit
	}
	return tea.Batch(
		m.spinner.Tick,
		stateCheckCmd(m.interval),
		waitDoneCmd(m.ctx.Done()),
	)
}

// Update handles messages.
func (m *WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateCheckMsg:
		if m.device.State() != device.StateUninitialized {
			m.ready = true
			return m, tea.Quit
		}
		return m, stateCheckCmd(m.interval)

	case SessionDoneMsg:
		m.cancelled = true
		return m, tea.Quit

	case tea.KeyMsg:
		if KeyFromMsg(msg) == control.KeyQuit {
			m.cancelled = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner line.
func (m *WaitModel) View() string {
	if m.ready || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s Waiting for init device %s\n", m.spinner.View(), m.device.Name())
}

// Ready reports whether the device finished initializing.
func (m *WaitModel) Ready() bool { return m.ready }

// Cancelled reports whether the operator or the context ended the wait.
func (m *WaitModel) Cancelled() bool { return m.cancelled }
