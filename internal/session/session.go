// Package session holds everything shared by the loops that run against the
// selected device.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saviobatista/testvehicle/internal/device"
	"github.com/saviobatista/testvehicle/internal/journal"
	"github.com/saviobatista/testvehicle/internal/stats"
	"github.com/saviobatista/testvehicle/internal/types"
)

// Relay forwards session data to an external sink
type Relay interface {
	PublishSnapshot(*types.Snapshot) error
	PublishCommand(*types.CommandRecord) error
}

// Session binds the selected device to the cancellation signal, the command
// journal and the counters used by the control and render loops.
type Session struct {
	ID      string
	Device  device.Device
	Journal *journal.Journal
	Stats   *stats.Stats

	relay  Relay
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a session for d. The session is cancelled with parent or by Cancel.
// relay may be nil.
func New(parent context.Context, d device.Device, relay Relay, log zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New().String()
	return &Session{
		ID:      id,
		Device:  d,
		Journal: journal.New(),
		Stats:   stats.New(),
		relay:   relay,
		log:     log.With().Str("session", id).Str("device", d.ID()).Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context is cancelled when the session ends
func (s *Session) Context() context.Context { return s.ctx }

// Cancel ends the session
func (s *Session) Cancel() { s.cancel() }

// Done is closed when the session ends
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Capabilities returns the capability registry of the device
func (s *Session) Capabilities() device.Capabilities { return s.Device.Capabilities() }

// Log returns the session logger
func (s *Session) Log() zerolog.Logger { return s.log }

// LastCommand returns the most recent journal entry
func (s *Session) LastCommand() (string, bool) { return s.Journal.Last() }

// RecordCommand counts a dispatched command and relays it
func (s *Session) RecordCommand(command string, issued time.Time, err error) {
	s.Stats.RecordCommand(time.Since(issued), err)

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("command", command).Dur("took", time.Since(issued)).Msg("Command dispatched")

	if s.relay == nil {
		return
	}
	record := &types.CommandRecord{
		SessionID: s.ID,
		Device:    s.Device.Name(),
		Command:   command,
		Issued:    issued.UTC(),
	}
	if err != nil {
		record.Error = err.Error()
	}
	if perr := s.relay.PublishCommand(record); perr != nil {
		s.Stats.IncrementPublishFailures()
		s.log.Warn().Err(perr).Msg("Failed to relay command")
		return
	}
	s.Stats.IncrementCommandsPublished()
}

// PublishSnapshot relays a telemetry snapshot when a relay is configured
func (s *Session) PublishSnapshot(snapshot *types.Snapshot) {
	if s.relay == nil {
		return
	}
	if err := s.relay.PublishSnapshot(snapshot); err != nil {
		s.Stats.IncrementPublishFailures()
		s.log.Debug().Err(err).Msg("Failed to relay snapshot")
		return
	}
	s.Stats.IncrementSnapshotsPublished()
}
