// Package logger provides JSON structured logging using zerolog.
// Logs go to a file under the configured directory since the terminal
// belongs to the dashboard.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileName is the log file created inside Config.Dir
const FileName = "testvehicle.log"

var globalLogger zerolog.Logger

// Config controls where and how much is logged
type Config struct {
	Level string
	Dir   string
}

func init() {
	globalLogger = zerolog.Nop()
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Init opens the log file and installs the global logger. The returned
// closer must be closed on shutdown.
func Init(config Config) (io.Closer, error) {
	level := zerolog.InfoLevel
	if config.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
	}

	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(config.Dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	SetOutput(f, level)
	return f, nil
}

// SetOutput replaces the global logger with one writing to w
func SetOutput(w io.Writer, level zerolog.Level) {
	globalLogger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = globalLogger
}

// GetLogger returns the global logger
func GetLogger() zerolog.Logger {
	return globalLogger
}

// WithComponent returns the global logger tagged with a component field
func WithComponent(component string) zerolog.Logger {
	return GetLogger().With().Str("component", component).Logger()
}
