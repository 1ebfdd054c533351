// Package device defines what the console needs from a device provider: an
// explorer that lists discovered vehicles, device handles with observable state,
// and the typed capability sub-clients used for telemetry and control.
package device

import (
	"context"
	"errors"

	"github.com/saviobatista/testvehicle/internal/geo"
	"github.com/saviobatista/testvehicle/internal/types"
)

// ErrNoCapability is returned when a device lacks a required capability
var ErrNoCapability = errors.New("capability not available")

// State is the lifecycle state of a device handle
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateLost
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateLost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// LinkState describes the health of the link to a device
type LinkState int

const (
	LinkDisconnected LinkState = iota
	LinkDowngraded
	LinkConnected
)

func (l LinkState) String() string {
	switch l {
	case LinkConnected:
		return "Connected"
	case LinkDowngraded:
		return "Downgraded"
	default:
		return "Disconnected"
	}
}

// Kind is the vehicle class of a device
type Kind int

const (
	KindUnknown Kind = iota
	KindCopter
	KindPlane
	KindRover
	KindBoat
	KindSubmarine
	KindGroundStation
)

func (k Kind) String() string {
	switch k {
	case KindCopter:
		return "Copter"
	case KindPlane:
		return "Plane"
	case KindRover:
		return "Rover"
	case KindBoat:
		return "Boat"
	case KindSubmarine:
		return "Submarine"
	case KindGroundStation:
		return "GroundStation"
	default:
		return "Unknown"
	}
}

// Explorer lists the devices currently known to a provider
type Explorer interface {
	// Devices returns the known devices keyed by identity
	Devices() map[string]Device
	Close() error
}

// Device is a live handle on a discovered vehicle
type Device interface {
	ID() string
	Name() string
	Kind() Kind
	State() State
	Link() LinkState
	Capabilities() Capabilities
}

// HeartbeatClient exposes the heartbeat stream of a device
type HeartbeatClient interface {
	// Heartbeat returns the latest heartbeat, or nil when none has been received
	Heartbeat() *types.Heartbeat
	// PacketRate returns the number of frames per second received from the device
	PacketRate() float64
}

// PositionClient exposes position telemetry of a device. Each accessor returns
// nil when the value has not been reported yet.
type PositionClient interface {
	Home() *geo.Point
	GlobalPosition() *types.GlobalPosition
	GNSS() *geo.Point
}

// ControlClient issues high-level commands. Every call blocks until the device
// acknowledges the command or ctx is done.
type ControlClient interface {
	GoTo(ctx context.Context, target geo.Point) error
	TakeOff(ctx context.Context, altitude float64) error
	Land(ctx context.Context) error
	SetGuidedMode(ctx context.Context) error
}
