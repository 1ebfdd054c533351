package dashboard

import "time"

// RefreshMsg triggers a telemetry refresh.
type RefreshMsg struct {
	Time time.Time
}

// SessionDoneMsg is sent once the session has been cancelled.
type SessionDoneMsg struct{}

// PublishedMsg reports the outcome of relaying a snapshot.
type PublishedMsg struct{}

// stateCheckMsg asks the wait model to look at the device state again.
type stateCheckMsg struct{}
