package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stats tracks what happened during one control session
type Stats struct {
	// Command counts
	CommandsIssued uint64
	CommandsFailed uint64

	// Dashboard refreshes
	TelemetryTicks uint64

	// Relay counts
	SnapshotsPublished uint64
	CommandsPublished  uint64
	PublishFailures    uint64

	// Timing
	StartTime       time.Time
	LastCommandTime time.Time
	CommandTime     time.Duration

	mu sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{
		StartTime: time.Now(),
	}
}

// RecordCommand counts one dispatched command and how long it took
func (s *Stats) RecordCommand(duration time.Duration, err error) {
	atomic.AddUint64(&s.CommandsIssued, 1)
	if err != nil {
		atomic.AddUint64(&s.CommandsFailed, 1)
	}

	s.mu.Lock()
	s.LastCommandTime = time.Now()
	s.CommandTime += duration
	s.mu.Unlock()
}

// IncrementTelemetryTicks increments the telemetry refresh counter
func (s *Stats) IncrementTelemetryTicks() {
	atomic.AddUint64(&s.TelemetryTicks, 1)
}

// IncrementSnapshotsPublished increments the relayed snapshots counter
func (s *Stats) IncrementSnapshotsPublished() {
	atomic.AddUint64(&s.SnapshotsPublished, 1)
}

// IncrementCommandsPublished increments the relayed commands counter
func (s *Stats) IncrementCommandsPublished() {
	atomic.AddUint64(&s.CommandsPublished, 1)
}

// IncrementPublishFailures increments the relay failure counter
func (s *Stats) IncrementPublishFailures() {
	atomic.AddUint64(&s.PublishFailures, 1)
}

// GetStats returns a copy of the current statistics
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"commands_issued":     atomic.LoadUint64(&s.CommandsIssued),
		"commands_failed":     atomic.LoadUint64(&s.CommandsFailed),
		"telemetry_ticks":     atomic.LoadUint64(&s.TelemetryTicks),
		"snapshots_published": atomic.LoadUint64(&s.SnapshotsPublished),
		"commands_published":  atomic.LoadUint64(&s.CommandsPublished),
		"publish_failures":    atomic.LoadUint64(&s.PublishFailures),
		"last_command_time":   s.LastCommandTime,
		"command_time":        s.CommandTime,
		"uptime":              time.Since(s.StartTime),
	}
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Commands Issued: %d\n"+
			"Commands Failed: %d\n"+
			"Telemetry Ticks: %d\n"+
			"Snapshots Published: %d\n"+
			"Commands Published: %d\n"+
			"Publish Failures: %d\n"+
			"Command Time: %s\n"+
			"Uptime: %s",
		stats["commands_issued"],
		stats["commands_failed"],
		stats["telemetry_ticks"],
		stats["snapshots_published"],
		stats["commands_published"],
		stats["publish_failures"],
		stats["command_time"],
		stats["uptime"],
	)
}

// Log writes the current statistics as one structured entry
func (s *Stats) Log(log zerolog.Logger, msg string) {
	log.Info().Fields(s.GetStats()).Msg(msg)
}

// StartReporting logs the statistics every interval until ctx is done
func (s *Stats) StartReporting(ctx context.Context, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log(log, "Final session statistics")
			return
		case <-ticker.C:
			s.Log(log, "Session statistics")
		}
	}
}
