package mavlink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saviobatista/testvehicle/internal/device"
	"github.com/saviobatista/testvehicle/internal/geo"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	explorer *Explorer
	clock    *fakeClock
	sent     chan message.Message
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock: newFakeClock(),
		sent:  make(chan message.Message, 16),
	}
	cfg := DefaultConfig()
	cfg.CommandTimeout = 200 * time.Millisecond
	h.explorer = newExplorer(cfg, func(m message.Message) { h.sent <- m }, zerolog.Nop())
	h.explorer.now = h.clock.now
	return h
}

var copter = Identity{SystemID: 1, ComponentID: 1}

func copterHeartbeat(customMode uint32) *common.MessageHeartbeat {
	return &common.MessageHeartbeat{
		Type:           common.MAV_TYPE_QUADROTOR,
		Autopilot:      common.MAV_AUTOPILOT_ARDUPILOTMEGA,
		BaseMode:       common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED,
		CustomMode:     customMode,
		SystemStatus:   common.MAV_STATE_STANDBY,
		MavlinkVersion: 3,
	}
}

func (h *harness) vehicle(t *testing.T, id Identity) *Vehicle {
	t.Helper()
	d, ok := h.explorer.Devices()[id.String()]
	require.True(t, ok, "device %s not discovered", id)
	v, ok := d.(*Vehicle)
	require.True(t, ok)
	return v
}

// ackNext answers the next COMMAND_LONG with the given results in order
func (h *harness) ackNext(t *testing.T, id Identity, results ...common.MAV_RESULT) <-chan *common.MessageCommandLong {
	t.Helper()
	got := make(chan *common.MessageCommandLong, 1)
	go func() {
		for m := range h.sent {
			cmd, ok := m.(*common.MessageCommandLong)
			if !ok {
				continue
			}
			got <- cmd
			for _, r := range results {
				h.explorer.handleFrame(id, &common.MessageCommandAck{Command: cmd.Command, Result: r})
			}
			return
		}
	}()
	return got
}

func TestExplorer_IgnoresFramesBeforeHeartbeat(t *testing.T) {
	h := newHarness(t)

	h.explorer.handleFrame(copter, &common.MessageGlobalPositionInt{Lat: 1, Lon: 2})
	assert.Empty(t, h.explorer.Devices())
}

func TestExplorer_IgnoresOwnSystem(t *testing.T) {
	h := newHarness(t)

	h.explorer.handleFrame(Identity{SystemID: 255, ComponentID: 190}, copterHeartbeat(0))
	assert.Empty(t, h.explorer.Devices())
}

func TestExplorer_DiscoversCopter(t *testing.T) {
	h := newHarness(t)

	h.explorer.handleFrame(copter, copterHeartbeat(0))

	devices := h.explorer.Devices()
	require.Len(t, devices, 1)
	v := h.vehicle(t, copter)

	assert.Equal(t, "1:1", v.ID())
	assert.Equal(t, "ArduCopter [1:1]", v.Name())
	assert.Equal(t, device.KindCopter, v.Kind())
	assert.Equal(t, device.StateUninitialized, v.State())
	assert.Equal(t, device.LinkConnected, v.Link())

	caps := v.Capabilities()
	assert.True(t, caps.Has(device.CapabilityHeartbeat))
	assert.True(t, caps.Has(device.CapabilityPosition))
	assert.True(t, caps.Has(device.CapabilityControl))

	hb := v.Heartbeat()
	require.NotNil(t, hb)
	assert.Equal(t, uint8(3), hb.MavlinkVersion)
	assert.NotEmpty(t, hb.Type)
	assert.NotEmpty(t, hb.SystemStatus)
}

func TestExplorer_NonCopterHasNoControl(t *testing.T) {
	h := newHarness(t)

	plane := Identity{SystemID: 2, ComponentID: 1}
	h.explorer.handleFrame(plane, &common.MessageHeartbeat{
		Type:      common.MAV_TYPE_FIXED_WING,
		Autopilot: common.MAV_AUTOPILOT_ARDUPILOTMEGA,
	})
	gcs := Identity{SystemID: 3, ComponentID: 190}
	h.explorer.handleFrame(gcs, &common.MessageHeartbeat{
		Type:      common.MAV_TYPE_GCS,
		Autopilot: common.MAV_AUTOPILOT_INVALID,
	})

	p := h.vehicle(t, plane)
	assert.Equal(t, device.KindPlane, p.Kind())
	assert.Equal(t, "ArduPlane [2:1]", p.Name())
	assert.False(t, p.Capabilities().Has(device.CapabilityControl))
	assert.True(t, p.Capabilities().Has(device.CapabilityPosition))

	g := h.vehicle(t, gcs)
	assert.Equal(t, device.KindGroundStation, g.Kind())
	assert.Equal(t, "GroundStation [3:190]", g.Name())
	assert.False(t, g.Capabilities().Has(device.CapabilityPosition))
	assert.False(t, g.Capabilities().Has(device.CapabilityControl))
}

func TestVehicle_Positions(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	v := h.vehicle(t, copter)

	assert.Nil(t, v.Home())
	assert.Nil(t, v.GlobalPosition())
	assert.Nil(t, v.GNSS())

	h.explorer.handleFrame(copter, &common.MessageGpsRawInt{
		FixType: common.GPS_FIX_TYPE_NO_FIX,
		Lat:     473977418,
		Lon:     85455939,
	})
	assert.Nil(t, v.GNSS(), "position without fix must be ignored")
	assert.Equal(t, device.StateUninitialized, v.State())

	h.explorer.handleFrame(copter, &common.MessageGlobalPositionInt{
		Lat:         473977418,
		Lon:         85455939,
		Alt:         488120,
		RelativeAlt: 1500,
	})
	g := v.GlobalPosition()
	require.NotNil(t, g)
	assert.InDelta(t, 47.3977418, g.Latitude, 1e-9)
	assert.InDelta(t, 8.5455939, g.Longitude, 1e-9)
	assert.InDelta(t, 488.12, g.Altitude, 1e-9)
	assert.InDelta(t, 1.5, g.RelativeAlt, 1e-9)
	assert.Equal(t, device.StateReady, v.State())

	h.explorer.handleFrame(copter, &common.MessageGpsRawInt{
		FixType: common.GPS_FIX_TYPE_3D_FIX,
		Lat:     473977000,
		Lon:     85456000,
		Alt:     487000,
	})
	gnss := v.GNSS()
	require.NotNil(t, gnss)
	assert.InDelta(t, 47.3977, gnss.Latitude, 1e-9)
	assert.InDelta(t, 487.0, gnss.Altitude, 1e-9)

	h.explorer.handleFrame(copter, &common.MessageHomePosition{
		Latitude:  473970000,
		Longitude: 85450000,
		Altitude:  480000,
	})
	home := v.Home()
	require.NotNil(t, home)
	assert.InDelta(t, 47.397, home.Latitude, 1e-9)
	assert.InDelta(t, 8.545, home.Longitude, 1e-9)
	assert.InDelta(t, 480.0, home.Altitude, 1e-9)
}

func TestVehicle_AccessorsReturnCopies(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	h.explorer.handleFrame(copter, &common.MessageHomePosition{Latitude: 10, Longitude: 20})
	v := h.vehicle(t, copter)

	home := v.Home()
	home.Latitude = 99
	assert.NotEqual(t, 99.0, v.Home().Latitude)
}

func TestExplorer_SweepLifecycle(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	v := h.vehicle(t, copter)

	for i := 0; i < 9; i++ {
		h.explorer.handleFrame(copter, copterHeartbeat(0))
	}
	h.clock.advance(time.Second)
	h.explorer.sweep()
	assert.InDelta(t, 10.0, v.PacketRate(), 1e-9)
	assert.Equal(t, device.StateUninitialized, v.State())

	h.clock.advance(2 * time.Second)
	h.explorer.sweep()
	assert.Equal(t, device.StateReady, v.State(), "init timeout should make the device ready")
	assert.Equal(t, 0.0, v.PacketRate())
	assert.Equal(t, device.LinkDowngraded, v.Link())

	h.clock.advance(8 * time.Second)
	h.explorer.sweep()
	assert.Empty(t, h.explorer.Devices())
	assert.Equal(t, device.StateLost, v.State())
	assert.Equal(t, device.LinkDisconnected, v.Link())
}

func TestExplorer_CloseWithoutNode(t *testing.T) {
	h := newHarness(t)
	h.explorer.start()
	require.NoError(t, h.explorer.Close())
	require.NoError(t, h.explorer.Close())
}

func TestControl_TakeOffAccepted(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	ctrl := h.vehicle(t, copter).Capabilities().Control

	got := h.ackNext(t, copter, common.MAV_RESULT_ACCEPTED)
	require.NoError(t, ctrl.TakeOff(context.Background(), 537.5))

	cmd := <-got
	assert.Equal(t, common.MAV_CMD_NAV_TAKEOFF, cmd.Command)
	assert.Equal(t, float32(537.5), cmd.Param7)
	assert.Equal(t, uint8(1), cmd.TargetSystem)
	assert.Equal(t, uint8(1), cmd.TargetComponent)
}

func TestControl_InProgressThenAccepted(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	ctrl := h.vehicle(t, copter).Capabilities().Control

	got := h.ackNext(t, copter, common.MAV_RESULT_IN_PROGRESS, common.MAV_RESULT_ACCEPTED)
	require.NoError(t, ctrl.Land(context.Background()))
	assert.Equal(t, common.MAV_CMD_NAV_LAND, (<-got).Command)
}

func TestControl_Rejected(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	ctrl := h.vehicle(t, copter).Capabilities().Control

	h.ackNext(t, copter, common.MAV_RESULT_DENIED)
	err := ctrl.Land(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandRejected))
}

func TestControl_Timeout(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	ctrl := h.vehicle(t, copter).Capabilities().Control

	start := time.Now()
	err := ctrl.SetGuidedMode(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)

	cmd := (<-h.sent).(*common.MessageCommandLong)
	assert.Equal(t, common.MAV_CMD_DO_SET_MODE, cmd.Command)
	assert.Equal(t, float32(copterModeGuided), cmd.Param2)
}

func TestControl_AckForOtherCommandIgnored(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	ctrl := h.vehicle(t, copter).Capabilities().Control

	go func() {
		<-h.sent
		h.explorer.handleFrame(copter, &common.MessageCommandAck{
			Command: common.MAV_CMD_NAV_TAKEOFF,
			Result:  common.MAV_RESULT_ACCEPTED,
		})
	}()
	err := ctrl.Land(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestControl_GoToSwitchesModeWhenNotGuided(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(0))
	ctrl := h.vehicle(t, copter).Capabilities().Control

	got := h.ackNext(t, copter, common.MAV_RESULT_ACCEPTED)
	target := geo.New(47.3977418, 8.5455939, 500)
	require.NoError(t, ctrl.GoTo(context.Background(), target))
	assert.Equal(t, common.MAV_CMD_DO_SET_MODE, (<-got).Command)

	sp, ok := (<-h.sent).(*common.MessageSetPositionTargetGlobalInt)
	require.True(t, ok)
	assert.Equal(t, int32(473977418), sp.LatInt)
	assert.Equal(t, int32(85455939), sp.LonInt)
	assert.Equal(t, float32(500), sp.Alt)
	assert.Equal(t, common.MAV_FRAME_GLOBAL, sp.CoordinateFrame)
}

func TestControl_GoToInGuidedSkipsModeChange(t *testing.T) {
	h := newHarness(t)
	h.explorer.handleFrame(copter, copterHeartbeat(copterModeGuided))
	ctrl := h.vehicle(t, copter).Capabilities().Control

	require.NoError(t, ctrl.GoTo(context.Background(), geo.New(1, 2, 3)))

	_, ok := (<-h.sent).(*common.MessageSetPositionTargetGlobalInt)
	assert.True(t, ok, "expected only a position target")
	assert.Empty(t, h.sent)
}
