package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/saviobatista/testvehicle/internal/config"
	"github.com/saviobatista/testvehicle/internal/control"
	"github.com/saviobatista/testvehicle/internal/dashboard"
	"github.com/saviobatista/testvehicle/internal/device"
	"github.com/saviobatista/testvehicle/internal/discovery"
	"github.com/saviobatista/testvehicle/internal/logger"
	"github.com/saviobatista/testvehicle/internal/mavlink"
	"github.com/saviobatista/testvehicle/internal/nats"
	"github.com/saviobatista/testvehicle/internal/session"
)

const (
	statsInterval     = 30 * time.Second
	initCheckInterval = 100 * time.Millisecond

	msgInterrupted  = "Program interrupted. Exiting gracefully..."
	msgPressEnter   = "Press Enter to exit"
	msgCopterOnly   = "This command is available only to copter devices"
	msgRepeatOrExit = "Type R and press Enter to repeat, or press Enter to exit"
)

// relayClient is a session relay that owns a connection
type relayClient interface {
	session.Relay
	Close()
}

// app holds the collaborators of run so tests can replace them
type app struct {
	in  io.Reader
	out io.Writer

	newExplorer  func(connection string, cfg mavlink.Config, log zerolog.Logger) (device.Explorer, error)
	newRelay     func(url string) (relayClient, error)
	waitForInit  func(ctx context.Context, d device.Device) error
	runDashboard func(s *session.Session, keys chan<- control.Key, cfg *config.Config) error
}

func defaultApp() *app {
	term := dashboard.IO{In: os.Stdin, Out: os.Stdout}
	return &app{
		in:  os.Stdin,
		out: os.Stdout,
		newExplorer: func(connection string, cfg mavlink.Config, log zerolog.Logger) (device.Explorer, error) {
			e, err := mavlink.NewExplorer(connection, cfg, log)
			if err != nil {
				return nil, err
			}
			return e, nil
		},
		newRelay: func(url string) (relayClient, error) {
			c, err := nats.New(url)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		waitForInit: func(ctx context.Context, d device.Device) error {
			return dashboard.WaitForInit(ctx, d, initCheckInterval, term)
		},
		runDashboard: func(s *session.Session, keys chan<- control.Key, cfg *config.Config) error {
			return dashboard.Run(dashboard.New(s, keys, cfg.TelemetryRefresh), cfg.Repaint, term)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], defaultApp())
	stop()
	os.Exit(code)
}

// run contains the main application logic and returns the process exit code
func run(ctx context.Context, args []string, a *app) int {
	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		config.PrintUsage(a.out)
		return 0
	}
	if err != nil {
		fmt.Fprintf(a.out, "Configuration error: %v\n", err)
		return 1
	}

	logFile, err := logger.Init(logger.Config{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintf(a.out, "Unable to initialize logging: %v\n", err)
		return 1
	}
	defer logFile.Close()

	log := logger.WithComponent("testvehicle")
	log.Info().Str("connection", cfg.Connection).Msg("Starting")

	mcfg := mavlink.DefaultConfig()
	mcfg.DeviceTimeout = cfg.DeviceTimeout
	mcfg.CommandTimeout = cfg.CommandTimeout

	explorer, err := a.newExplorer(cfg.Connection, mcfg, logger.WithComponent("mavlink"))
	if err != nil {
		log.Error().Err(err).Msg("Unable to create router")
		fmt.Fprintf(a.out, "Unable to create router: %v\n", err)
		fmt.Fprintln(a.out, msgPressEnter)
		pause(ctx, a.in)
		return 1
	}
	defer explorer.Close()

	d, err := selectCopter(ctx, a, explorer, cfg, log)
	if err != nil {
		fmt.Fprintln(a.out, msgInterrupted)
		return 0
	}
	if d == nil {
		return 0
	}

	var relay session.Relay
	if cfg.NATSURL != "" {
		client, err := a.newRelay(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("Telemetry relay disabled")
		} else {
			defer client.Close()
			relay = client
		}
	}

	s := session.New(ctx, d, relay, log)
	defer s.Cancel()

	ctrl, err := control.New(s, control.Config{
		MoveDistance:   cfg.MoveDistance,
		TakeOffClimb:   cfg.TakeOffClimb,
		CommandTimeout: cfg.CommandTimeout,
	})
	if err != nil {
		log.Error().Err(err).Msg("No control capability")
		fmt.Fprintf(a.out, "Unable to get control of %s\n", d.Name())
		return 1
	}

	if err := a.waitForInit(s.Context(), d); err != nil {
		if errors.Is(err, dashboard.ErrWaitCancelled) {
			fmt.Fprintln(a.out, msgInterrupted)
			return 0
		}
		fmt.Fprintln(a.out, err)
		return 1
	}

	return runSession(a, s, ctrl, cfg)
}

// selectCopter runs discovery until a copter is selected. It returns a nil
// device when the operator chose to exit and discovery.ErrNoDevice on quit.
func selectCopter(ctx context.Context, a *app, explorer device.Explorer, cfg *config.Config, log zerolog.Logger) (device.Device, error) {
	awaiter := discovery.New(explorer, a.in, a.out, cfg.DiscoveryRefresh, logger.WithComponent("discovery"))
	for {
		d, err := awaiter.Await(ctx)
		if err != nil {
			return nil, err
		}
		if d.Kind() == device.KindCopter {
			return d, nil
		}

		log.Warn().Str("device", d.ID()).Str("kind", d.Kind().String()).Msg("Selected device is not a copter")
		fmt.Fprintln(a.out, msgCopterOnly)
		answer, err := awaiter.Prompt(ctx, msgRepeatOrExit+"\n")
		if err != nil || !strings.EqualFold(answer, "r") {
			return nil, nil
		}
	}
}

// runSession runs the control loop and the dashboard until the session ends
func runSession(a *app, s *session.Session, ctrl *control.Controller, cfg *config.Config) int {
	log := s.Log()
	keys := make(chan control.Key)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Stats.StartReporting(s.Context(), statsInterval, log)
	}()

	controlErr := make(chan error, 1)
	go func() {
		err := ctrl.Run(keys)
		s.Cancel()
		controlErr <- err
	}()

	dashErr := a.runDashboard(s, keys, cfg)
	s.Cancel()
	err := <-controlErr
	wg.Wait()

	if dashErr != nil {
		log.Error().Err(dashErr).Msg("Dashboard failed")
		fmt.Fprintln(a.out, dashErr)
		return 1
	}
	if err != nil {
		log.Error().Err(err).Msg("Control loop failed")
		fmt.Fprintf(a.out, "Command failed: %v\n", err)
		return 1
	}

	log.Info().Msg("Session finished")
	fmt.Fprintf(a.out, "Session statistics:\n%s\n", s.Stats.String())
	return 0
}

// pause waits for one line of input or cancellation
func pause(ctx context.Context, in io.Reader) {
	done := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(in).ReadString('\n')
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}
