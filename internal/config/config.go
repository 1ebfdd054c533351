package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultConnection is used when neither -c nor VEHICLE_CONNECTION is set
const DefaultConnection = "tcp://127.0.0.1:5760"

// Config holds the application configuration
type Config struct {
	Connection       string
	DiscoveryRefresh time.Duration
	TelemetryRefresh time.Duration
	Repaint          time.Duration
	CommandTimeout   time.Duration
	DeviceTimeout    time.Duration
	MoveDistance     float64
	TakeOffClimb     float64
	LogDir           string
	LogLevel         string
	NATSURL          string
}

// Load loads the configuration from command line arguments, environment variables and .env file
func Load(args []string) (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	connection := os.Getenv("VEHICLE_CONNECTION")
	if connection == "" {
		connection = DefaultConnection
	}

	fs := newFlagSet(&connection, io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := &Config{
		Connection: connection,
		LogDir:     getEnv("LOG_DIR", "./logs"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		NATSURL:    os.Getenv("NATS_URL"),
	}

	var err error
	if cfg.DiscoveryRefresh, err = getMillis("DISCOVERY_REFRESH_MS", 3000); err != nil {
		return nil, err
	}
	if cfg.TelemetryRefresh, err = getMillis("TELEMETRY_REFRESH_MS", 1000); err != nil {
		return nil, err
	}
	if cfg.Repaint, err = getMillis("REPAINT_MS", 35); err != nil {
		return nil, err
	}
	if cfg.CommandTimeout, err = getMillis("COMMAND_TIMEOUT_MS", 5000); err != nil {
		return nil, err
	}
	if cfg.DeviceTimeout, err = getMillis("DEVICE_TIMEOUT_MS", 10000); err != nil {
		return nil, err
	}
	if cfg.MoveDistance, err = getFloat("MOVE_DISTANCE_M", 10); err != nil {
		return nil, err
	}
	if cfg.TakeOffClimb, err = getFloat("TAKEOFF_CLIMB_M", 50); err != nil {
		return nil, err
	}

	return cfg, nil
}

// PrintUsage writes the command line help to w. Load returns flag.ErrHelp
// when -h or -help is given.
func PrintUsage(w io.Writer) {
	connection := DefaultConnection
	fs := newFlagSet(&connection, w)
	fmt.Fprintf(w, "Usage: testvehicle [-c connection]\n")
	fs.PrintDefaults()
	fmt.Fprintln(w, "Other settings are read from the environment or a .env file.")
}

func newFlagSet(connection *string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("testvehicle", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(connection, "c", *connection, "connection string (tcp://host:port, udp://host:port, serial:/dev/ttyUSB0?br=57600)")
	return fs
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getMillis(key string, def int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, v)
	}
	return f, nil
}
