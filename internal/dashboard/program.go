package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/saviobatista/testvehicle/internal/device"
)

// ErrWaitCancelled is returned by WaitForInit when the wait was aborted.
var ErrWaitCancelled = errors.New("wait for device init cancelled")

// IO holds the terminal streams used by the programs.
type IO struct {
	In  io.Reader
	Out io.Writer
}

func (t IO) options() []tea.ProgramOption {
	var opts []tea.ProgramOption
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	return opts
}

// WaitForInit runs the init spinner until d is initialized.
func WaitForInit(ctx context.Context, d device.Device, interval time.Duration, term IO) error {
	m := NewWaitModel(ctx, d, interval)
	if _, err := tea.NewProgram(m, term.options()...).Run(); err != nil {
		return fmt.Errorf("init spinner failed: %w", err)
	}
	switch {
	case m.Ready():
		return nil
	case m.Cancelled():
		return ErrWaitCancelled
	default:
		return fmt.Errorf("init spinner stopped before %s was ready", d.Name())
	}
}

// Run shows the dashboard until the session ends. repaint is the screen
// refresh period.
func Run(m *Model, repaint time.Duration, term IO) error {
	fps := 1
	if repaint > 0 && repaint < time.Second {
		fps = int(time.Second / repaint)
	}

	opts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithFPS(fps)}, term.options()...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
