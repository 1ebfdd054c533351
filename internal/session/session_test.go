package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saviobatista/testvehicle/internal/testutils"
	"github.com/saviobatista/testvehicle/internal/types"
)

type fakeRelay struct {
	mu        sync.Mutex
	err       error
	snapshots []*types.Snapshot
	commands  []*types.CommandRecord
}

func (r *fakeRelay) PublishSnapshot(s *types.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *fakeRelay) PublishCommand(c *types.CommandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.commands = append(r.commands, c)
	return nil
}

func TestNew(t *testing.T) {
	d := testutils.NewMockCopter("1:1", nil, nil, &testutils.MockControl{})
	s := New(context.Background(), d, nil, zerolog.Nop())

	_, err := uuid.Parse(s.ID)
	assert.NoError(t, err, "session id should be a UUID")
	assert.Same(t, d, s.Device)
	assert.NotNil(t, s.Journal)
	assert.NotNil(t, s.Stats)
	assert.NotNil(t, s.Capabilities().Control)
	assert.NoError(t, s.Context().Err())

	other := New(context.Background(), d, nil, zerolog.Nop())
	assert.NotEqual(t, s.ID, other.ID)
}

func TestCancel(t *testing.T) {
	d := testutils.NewMockCopter("1:1", nil, nil, nil)
	s := New(context.Background(), d, nil, zerolog.Nop())

	s.Cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session not cancelled")
	}
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
}

func TestParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent, testutils.NewMockCopter("1:1", nil, nil, nil), nil, zerolog.Nop())

	cancel()
	<-s.Done()
}

func TestRecordCommand_Relayed(t *testing.T) {
	relay := &fakeRelay{}
	s := New(context.Background(), testutils.NewMockCopter("1:1", nil, nil, nil), relay, zerolog.Nop())

	issued := time.Now()
	s.RecordCommand("Takeoff", issued, nil)
	s.RecordCommand("DoLand", issued, errors.New("command rejected"))

	require.Len(t, relay.commands, 2)
	assert.Equal(t, "Takeoff", relay.commands[0].Command)
	assert.Equal(t, s.ID, relay.commands[0].SessionID)
	assert.Equal(t, "ArduCopter [1:1]", relay.commands[0].Device)
	assert.Empty(t, relay.commands[0].Error)
	assert.Equal(t, "command rejected", relay.commands[1].Error)

	assert.Equal(t, uint64(2), s.Stats.CommandsIssued)
	assert.Equal(t, uint64(1), s.Stats.CommandsFailed)
	assert.Equal(t, uint64(2), s.Stats.CommandsPublished)
}

func TestRelayFailuresAreCounted(t *testing.T) {
	relay := &fakeRelay{err: errors.New("nats down")}
	s := New(context.Background(), testutils.NewMockCopter("1:1", nil, nil, nil), relay, zerolog.Nop())

	s.RecordCommand("Takeoff", time.Now(), nil)
	s.PublishSnapshot(&types.Snapshot{})

	assert.Equal(t, uint64(2), s.Stats.PublishFailures)
	assert.Equal(t, uint64(1), s.Stats.CommandsIssued)
}

func TestWithoutRelay(t *testing.T) {
	s := New(context.Background(), testutils.NewMockCopter("1:1", nil, nil, nil), nil, zerolog.Nop())

	s.RecordCommand("Takeoff", time.Now(), nil)
	s.PublishSnapshot(&types.Snapshot{})

	assert.Equal(t, uint64(0), s.Stats.SnapshotsPublished)
	assert.Equal(t, uint64(0), s.Stats.PublishFailures)
	assert.Equal(t, uint64(1), s.Stats.CommandsIssued)
}

func TestPublishSnapshot(t *testing.T) {
	relay := &fakeRelay{}
	s := New(context.Background(), testutils.NewMockCopter("1:1", nil, nil, nil), relay, zerolog.Nop())

	s.PublishSnapshot(&types.Snapshot{SessionID: s.ID})
	require.Len(t, relay.snapshots, 1)
	assert.Equal(t, uint64(1), s.Stats.SnapshotsPublished)
}
