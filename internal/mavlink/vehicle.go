package mavlink

import (
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/saviobatista/testvehicle/internal/device"
	"github.com/saviobatista/testvehicle/internal/geo"
	"github.com/saviobatista/testvehicle/internal/types"
)

// Identity is the MAVLink address of a device
type Identity struct {
	SystemID    uint8
	ComponentID uint8
}

func (i Identity) String() string {
	return fmt.Sprintf("%d:%d", i.SystemID, i.ComponentID)
}

// Vehicle is a device handle backed by frames received through the explorer.
// It serves as its own heartbeat and position client.
type Vehicle struct {
	id      Identity
	kind    device.Kind
	name    string
	created time.Time
	timeout time.Duration
	now     func() time.Time
	caps    device.Capabilities
	control *controlClient

	mu        sync.RWMutex
	state     device.State
	lastSeen  time.Time
	heartbeat *types.Heartbeat
	home      *geo.Point
	global    *types.GlobalPosition
	gnss      *geo.Point
	frames    uint64
	rate      float64
	rateSince time.Time
}

func newVehicle(id Identity, hb *common.MessageHeartbeat, cfg Config, now func() time.Time, send sender) *Vehicle {
	t := now()
	v := &Vehicle{
		id:        id,
		kind:      kindOf(hb.Type),
		created:   t,
		timeout:   cfg.DeviceTimeout,
		now:       now,
		state:     device.StateUninitialized,
		lastSeen:  t,
		rateSince: t,
	}
	v.name = fmt.Sprintf("%s [%s]", vehicleName(v.kind, hb.Autopilot), id)

	v.caps.Heartbeat = v
	if v.kind != device.KindGroundStation {
		v.caps.Position = v
	}
	if v.kind == device.KindCopter {
		v.control = newControlClient(v, send, cfg.CommandTimeout)
		v.caps.Control = v.control
	}
	return v
}

// ID returns the identity key of the vehicle
func (v *Vehicle) ID() string { return v.id.String() }

// Name returns a display name such as "ArduCopter [1:1]"
func (v *Vehicle) Name() string { return v.name }

// Kind returns the vehicle class derived from the first heartbeat
func (v *Vehicle) Kind() device.Kind { return v.kind }

// Capabilities returns the typed sub-clients of the vehicle
func (v *Vehicle) Capabilities() device.Capabilities { return v.caps }

// State returns the lifecycle state
func (v *Vehicle) State() device.State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Link derives the link state from the age of the last received frame
func (v *Vehicle) Link() device.LinkState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.state == device.StateLost {
		return device.LinkDisconnected
	}
	age := v.now().Sub(v.lastSeen)
	switch {
	case age <= v.timeout/4:
		return device.LinkConnected
	case age <= v.timeout:
		return device.LinkDowngraded
	default:
		return device.LinkDisconnected
	}
}

// Heartbeat returns a copy of the latest heartbeat
func (v *Vehicle) Heartbeat() *types.Heartbeat {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.heartbeat == nil {
		return nil
	}
	hb := *v.heartbeat
	return &hb
}

// PacketRate returns frames per second measured over the last sweep interval
func (v *Vehicle) PacketRate() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rate
}

// Home returns the home position
func (v *Vehicle) Home() *geo.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.home == nil {
		return nil
	}
	p := *v.home
	return &p
}

// GlobalPosition returns the fused global position
func (v *Vehicle) GlobalPosition() *types.GlobalPosition {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.global == nil {
		return nil
	}
	g := *v.global
	return &g
}

// GNSS returns the raw GNSS position when the receiver has at least a 2D fix
func (v *Vehicle) GNSS() *geo.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.gnss == nil {
		return nil
	}
	p := *v.gnss
	return &p
}

func (v *Vehicle) customMode() (uint32, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.heartbeat == nil {
		return 0, false
	}
	return v.heartbeat.CustomMode, true
}

// handleMessage folds one received message into the vehicle state
func (v *Vehicle) handleMessage(msg message.Message) {
	v.mu.Lock()
	v.lastSeen = v.now()
	v.frames++

	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		v.heartbeat = &types.Heartbeat{
			Type:           fmt.Sprint(m.Type),
			Autopilot:      fmt.Sprint(m.Autopilot),
			BaseMode:       fmt.Sprint(m.BaseMode),
			CustomMode:     m.CustomMode,
			SystemStatus:   fmt.Sprint(m.SystemStatus),
			MavlinkVersion: m.MavlinkVersion,
		}

	case *common.MessageGlobalPositionInt:
		v.global = &types.GlobalPosition{
			Latitude:    float64(m.Lat) / 1e7,
			Longitude:   float64(m.Lon) / 1e7,
			Altitude:    float64(m.Alt) / 1000,
			RelativeAlt: float64(m.RelativeAlt) / 1000,
		}
		v.markReady()

	case *common.MessageGpsRawInt:
		if m.FixType >= common.GPS_FIX_TYPE_2D_FIX {
			p := geo.New(float64(m.Lat)/1e7, float64(m.Lon)/1e7, float64(m.Alt)/1000)
			v.gnss = &p
			v.markReady()
		}

	case *common.MessageHomePosition:
		p := geo.New(float64(m.Latitude)/1e7, float64(m.Longitude)/1e7, float64(m.Altitude)/1000)
		v.home = &p
	}
	v.mu.Unlock()

	if ack, ok := msg.(*common.MessageCommandAck); ok && v.control != nil {
		v.control.handleAck(ack)
	}
}

// markReady must be called with v.mu held
func (v *Vehicle) markReady() {
	if v.state == device.StateUninitialized {
		v.state = device.StateReady
	}
}

// sweep updates the packet rate and lifecycle. It reports whether the vehicle
// is lost and should be removed from the explorer.
func (v *Vehicle) sweep(initTimeout time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	t := v.now()
	if elapsed := t.Sub(v.rateSince).Seconds(); elapsed > 0 {
		v.rate = float64(v.frames) / elapsed
	}
	v.frames = 0
	v.rateSince = t

	if t.Sub(v.lastSeen) > v.timeout {
		v.state = device.StateLost
		v.rate = 0
		return true
	}
	if v.state == device.StateUninitialized && t.Sub(v.created) >= initTimeout {
		v.state = device.StateReady
	}
	return false
}

func kindOf(t common.MAV_TYPE) device.Kind {
	switch t {
	case common.MAV_TYPE_QUADROTOR,
		common.MAV_TYPE_HEXAROTOR,
		common.MAV_TYPE_OCTOROTOR,
		common.MAV_TYPE_TRICOPTER,
		common.MAV_TYPE_COAXIAL,
		common.MAV_TYPE_HELICOPTER:
		return device.KindCopter
	case common.MAV_TYPE_FIXED_WING:
		return device.KindPlane
	case common.MAV_TYPE_GROUND_ROVER:
		return device.KindRover
	case common.MAV_TYPE_SURFACE_BOAT:
		return device.KindBoat
	case common.MAV_TYPE_SUBMARINE:
		return device.KindSubmarine
	case common.MAV_TYPE_GCS:
		return device.KindGroundStation
	default:
		return device.KindUnknown
	}
}

func vehicleName(kind device.Kind, autopilot common.MAV_AUTOPILOT) string {
	if autopilot != common.MAV_AUTOPILOT_ARDUPILOTMEGA {
		return kind.String()
	}
	switch kind {
	case device.KindCopter:
		return "ArduCopter"
	case device.KindPlane:
		return "ArduPlane"
	case device.KindRover, device.KindBoat:
		return "ArduRover"
	case device.KindSubmarine:
		return "ArduSub"
	default:
		return "ArduPilot"
	}
}
