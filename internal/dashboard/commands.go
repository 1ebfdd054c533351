package dashboard

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/saviobatista/testvehicle/internal/session"
	"github.com/saviobatista/testvehicle/internal/types"
)

// refreshCmd fires a RefreshMsg after the given delay.
func refreshCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return RefreshMsg{Time: t}
	})
}

// waitDoneCmd blocks until done is closed.
func waitDoneCmd(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return SessionDoneMsg{}
	}
}

// publishCmd relays a snapshot off the update loop.
func publishCmd(s *session.Session, snapshot *types.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s.PublishSnapshot(snapshot)
		return PublishedMsg{}
	}
}

// stateCheckCmd fires a stateCheckMsg after the given delay.
func stateCheckCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg {
		return stateCheckMsg{}
	})
}
