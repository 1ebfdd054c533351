// Package control maps operator keys to vehicle commands and dispatches them
// one at a time through the device's control capability.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/saviobatista/testvehicle/internal/device"
	"github.com/saviobatista/testvehicle/internal/geo"
	"github.com/saviobatista/testvehicle/internal/session"
)

// Key is an operator input understood by the controller
type Key int

const (
	KeyUnknown Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyTakeOff
	KeyLand
	KeyQuit
)

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	case KeyTakeOff:
		return "takeoff"
	case KeyLand:
		return "land"
	case KeyQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Bearing returns the move direction in degrees for arrow keys
func (k Key) Bearing() (float64, bool) {
	switch k {
	case KeyUp:
		return 0, true
	case KeyDown:
		return 180, true
	case KeyLeft:
		return 270, true
	case KeyRight:
		return 90, true
	default:
		return 0, false
	}
}

const (
	CommandTakeOff = "Takeoff"
	CommandLand    = "DoLand"
)

// MoveCommand is the journal description of a relative move
func MoveCommand(distance, bearing float64) string {
	return fmt.Sprintf("GOTO: delta=%g Azimuth=%g", distance, bearing)
}

// Config holds the command parameters
type Config struct {
	MoveDistance   float64
	TakeOffClimb   float64
	CommandTimeout time.Duration
}

// Controller dispatches commands for one session
type Controller struct {
	session *session.Session
	control device.ControlClient
	cfg     Config
}

// New returns a controller for the session device. It fails with
// device.ErrNoCapability when the device cannot be controlled.
func New(s *session.Session, cfg Config) (*Controller, error) {
	caps := s.Capabilities()
	if err := caps.Require(device.CapabilityControl); err != nil {
		return nil, fmt.Errorf("unable to get control of %s: %w", s.Device.Name(), err)
	}
	return &Controller{
		session: s,
		control: caps.Control,
		cfg:     cfg,
	}, nil
}

// Run handles keys until quit, cancellation or a failed command. Keys are
// handled strictly in order, each one after the previous command completed.
func (c *Controller) Run(keys <-chan Key) error {
	ctx := c.session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			if err := c.Handle(ctx, key); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Handle executes the command bound to key. Unknown keys are ignored.
func (c *Controller) Handle(ctx context.Context, key Key) error {
	if bearing, ok := key.Bearing(); ok {
		target := c.position().RadialPoint(c.cfg.MoveDistance, bearing)
		return c.dispatch(ctx, MoveCommand(c.cfg.MoveDistance, bearing), func(ctx context.Context) error {
			return c.control.GoTo(ctx, target)
		})
	}

	switch key {
	case KeyTakeOff:
		altitude := TakeOffAltitude(c.position().Altitude, c.cfg.TakeOffClimb)
		return c.dispatch(ctx, CommandTakeOff,
			c.control.SetGuidedMode,
			func(ctx context.Context) error { return c.control.TakeOff(ctx, altitude) },
		)
	case KeyLand:
		return c.dispatch(ctx, CommandLand, c.control.Land)
	case KeyQuit:
		log := c.session.Log()
		log.Info().Msg("Quit requested")
		c.session.Cancel()
	}
	return nil
}

// TakeOffAltitude is the take-off target for a vehicle at the given altitude
func TakeOffAltitude(current, climb float64) float64 {
	return current + climb
}

// position returns the best known position of the device
func (c *Controller) position() geo.Point {
	pos := c.session.Capabilities().Position
	if pos == nil {
		return geo.Zero
	}
	if p := pos.GNSS(); p != nil {
		return *p
	}
	if g := pos.GlobalPosition(); g != nil {
		return g.Point()
	}
	return geo.Zero
}

// dispatch journals the command and runs its steps in order, each one bounded
// by the command timeout
func (c *Controller) dispatch(ctx context.Context, command string, steps ...func(context.Context) error) error {
	c.session.Journal.Add(command)
	issued := time.Now()

	var err error
	for _, step := range steps {
		if err = c.step(ctx, step); err != nil {
			err = fmt.Errorf("%s: %w", command, err)
			break
		}
	}
	c.session.RecordCommand(command, issued, err)
	return err
}

func (c *Controller) step(ctx context.Context, fn func(context.Context) error) error {
	if c.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CommandTimeout)
		defer cancel()
	}
	return fn(ctx)
}
