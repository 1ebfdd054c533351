package mavlink

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/saviobatista/testvehicle/internal/geo"
)

// ErrCommandRejected is returned when a vehicle acknowledges a command with a non-accepted result
var ErrCommandRejected = errors.New("command rejected")

// copterModeGuided is the ArduCopter custom mode number of GUIDED
const copterModeGuided = 4

const positionTargetIgnoreAllButPosition = common.POSITION_TARGET_TYPEMASK_VX_IGNORE |
	common.POSITION_TARGET_TYPEMASK_VY_IGNORE |
	common.POSITION_TARGET_TYPEMASK_VZ_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
	common.POSITION_TARGET_TYPEMASK_YAW_IGNORE |
	common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE

// controlClient sends COMMAND_LONG requests to one vehicle and waits for the
// matching COMMAND_ACK. Commands are serialized.
type controlClient struct {
	v       *Vehicle
	send    sender
	timeout time.Duration

	cmdMu sync.Mutex

	mu      sync.Mutex
	pending map[common.MAV_CMD]chan *common.MessageCommandAck
}

func newControlClient(v *Vehicle, send sender, timeout time.Duration) *controlClient {
	return &controlClient{
		v:       v,
		send:    send,
		timeout: timeout,
		pending: make(map[common.MAV_CMD]chan *common.MessageCommandAck),
	}
}

// SetGuidedMode switches the vehicle to GUIDED
func (c *controlClient) SetGuidedMode(ctx context.Context) error {
	return c.commandLong(ctx, common.MAV_CMD_DO_SET_MODE, [7]float32{
		float32(common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED),
		copterModeGuided,
	})
}

// TakeOff climbs to the given altitude in metres
func (c *controlClient) TakeOff(ctx context.Context, altitude float64) error {
	return c.commandLong(ctx, common.MAV_CMD_NAV_TAKEOFF, [7]float32{
		0, 0, 0, float32(math.NaN()), 0, 0, float32(altitude),
	})
}

// Land lands at the current location
func (c *controlClient) Land(ctx context.Context) error {
	return c.commandLong(ctx, common.MAV_CMD_NAV_LAND, [7]float32{
		0, 0, 0, float32(math.NaN()), 0, 0, 0,
	})
}

// GoTo switches to GUIDED when needed and sends a global position target.
// Position targets are not acknowledged by the vehicle, so the call returns
// once the mode change (if any) is acknowledged and the target is sent.
func (c *controlClient) GoTo(ctx context.Context, target geo.Point) error {
	if mode, ok := c.v.customMode(); !ok || mode != copterModeGuided {
		if err := c.SetGuidedMode(ctx); err != nil {
			return err
		}
	}

	c.send(&common.MessageSetPositionTargetGlobalInt{
		TimeBootMs:      uint32(time.Since(c.v.created).Milliseconds()),
		TargetSystem:    c.v.id.SystemID,
		TargetComponent: c.v.id.ComponentID,
		CoordinateFrame: common.MAV_FRAME_GLOBAL,
		TypeMask:        positionTargetIgnoreAllButPosition,
		LatInt:          int32(math.Round(target.Latitude * 1e7)),
		LonInt:          int32(math.Round(target.Longitude * 1e7)),
		Alt:             float32(target.Altitude),
	})
	return nil
}

func (c *controlClient) commandLong(ctx context.Context, cmd common.MAV_CMD, params [7]float32) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	acks := make(chan *common.MessageCommandAck, 4)
	c.mu.Lock()
	c.pending[cmd] = acks
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, cmd)
		c.mu.Unlock()
	}()

	c.send(&common.MessageCommandLong{
		TargetSystem:    c.v.id.SystemID,
		TargetComponent: c.v.id.ComponentID,
		Command:         cmd,
		Param1:          params[0],
		Param2:          params[1],
		Param3:          params[2],
		Param4:          params[3],
		Param5:          params[4],
		Param6:          params[5],
		Param7:          params[6],
	})

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%v: no acknowledgement: %w", cmd, ctx.Err())
		case ack := <-acks:
			switch ack.Result {
			case common.MAV_RESULT_ACCEPTED:
				return nil
			case common.MAV_RESULT_IN_PROGRESS:
				continue
			default:
				return fmt.Errorf("%v: %w: %v", cmd, ErrCommandRejected, ack.Result)
			}
		}
	}
}

func (c *controlClient) handleAck(ack *common.MessageCommandAck) {
	c.mu.Lock()
	acks, ok := c.pending[ack.Command]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case acks <- ack:
	default:
	}
}
