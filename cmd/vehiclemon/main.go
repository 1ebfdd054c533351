package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/saviobatista/testvehicle/internal/logger"
	"github.com/saviobatista/testvehicle/internal/nats"
	"github.com/saviobatista/testvehicle/internal/types"
)

const (
	summaryInterval = time.Minute
	sessionMaxAge   = 10 * time.Minute
)

// Subscriber interface for testability
type Subscriber interface {
	SubscribeSnapshots(handler func(*types.Snapshot)) error
	SubscribeCommands(handler func(*types.CommandRecord)) error
	Close()
}

// SessionState is the latest relayed state of one control session
type SessionState struct {
	SessionID   string
	Device      string
	Link        string
	Position    string
	LastCommand string
	Commands    int
	Failures    int
	LastSeen    time.Time
}

// SessionTracker keeps the latest state of every relayed control session
type SessionTracker struct {
	log zerolog.Logger
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*SessionState
}

// NewSessionTracker creates a new session tracker
func NewSessionTracker(log zerolog.Logger) *SessionTracker {
	return &SessionTracker{
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*SessionState),
	}
}

func (t *SessionTracker) session(id, device string) *SessionState {
	s, ok := t.sessions[id]
	if !ok {
		s = &SessionState{SessionID: id, Device: device}
		t.sessions[id] = s
		t.log.Info().Str("session", id).Str("device", device).Msg("New control session")
	}
	s.LastSeen = t.now()
	return s
}

// HandleSnapshot records a relayed telemetry snapshot
func (t *SessionTracker) HandleSnapshot(snapshot *types.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(snapshot.SessionID, snapshot.Device)
	if v, ok := snapshot.Value("Link"); ok {
		if s.Link != "" && s.Link != v {
			t.log.Warn().Str("session", s.SessionID).Str("from", s.Link).Str("to", v).Msg("Link state changed")
		}
		s.Link = v
	}
	if v, ok := snapshot.Value("GlobalPosition"); ok {
		s.Position = v
	}
}

// HandleCommand records a relayed command
func (t *SessionTracker) HandleCommand(record *types.CommandRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(record.SessionID, record.Device)
	s.Commands++
	s.LastCommand = record.Command

	ev := t.log.Info()
	if record.Error != "" {
		s.Failures++
		ev = t.log.Warn().Str("error", record.Error)
	}
	ev.Str("session", s.SessionID).Str("device", s.Device).Str("command", record.Command).Msg("Command issued")
}

// Expire removes sessions not heard from for longer than maxAge
func (t *SessionTracker) Expire(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxAge)
	removed := 0
	for id, s := range t.sessions {
		if s.LastSeen.Before(cutoff) {
			delete(t.sessions, id)
			removed++
			t.log.Info().Str("session", id).Msg("Control session ended")
		}
	}
	return removed
}

// Sessions returns copies of the tracked sessions ordered by ID
func (t *SessionTracker) Sessions() []SessionState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]SessionState, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func (t *SessionTracker) logSummary() {
	for _, s := range t.Sessions() {
		t.log.Info().
			Str("session", s.SessionID).
			Str("device", s.Device).
			Str("link", s.Link).
			Str("position", s.Position).
			Int("commands", s.Commands).
			Int("failures", s.Failures).
			Msg("Session summary")
	}
}

// runMonitor subscribes the tracker and reports until ctx is done
func runMonitor(ctx context.Context, sub Subscriber, tracker *SessionTracker, interval time.Duration) error {
	if err := sub.SubscribeSnapshots(tracker.HandleSnapshot); err != nil {
		return fmt.Errorf("failed to subscribe to snapshots: %w", err)
	}
	if err := sub.SubscribeCommands(tracker.HandleCommand); err != nil {
		return fmt.Errorf("failed to subscribe to commands: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tracker.logSummary()
			return nil
		case <-ticker.C:
			tracker.Expire(sessionMaxAge)
			tracker.logSummary()
		}
	}
}

// parseEnvironment extracts environment variables with defaults
func parseEnvironment() (string, string) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return natsURL, level
}

func main() {
	_ = godotenv.Load()
	natsURL, level := parseEnvironment()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL %q: %v\n", level, err)
		os.Exit(1)
	}
	logger.SetOutput(os.Stdout, lvl)
	log := logger.WithComponent("vehiclemon")

	client, err := nats.New(natsURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create NATS client")
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("nats", natsURL).Msg("Monitoring vehicle relay")
	if err := runMonitor(ctx, client, NewSessionTracker(log), summaryInterval); err != nil {
		log.Error().Err(err).Msg("Monitor failed")
		stop()
		client.Close()
		os.Exit(1)
	}
	log.Info().Msg("Shutting down...")
}
