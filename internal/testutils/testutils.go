package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saviobatista/testvehicle/internal/device"
	"github.com/saviobatista/testvehicle/internal/geo"
	"github.com/saviobatista/testvehicle/internal/types"
)

// MockDevice is a device handle with settable state
type MockDevice struct {
	IDValue   string
	NameValue string
	KindValue device.Kind
	Caps      device.Capabilities

	mu    sync.RWMutex
	state device.State
	link  device.LinkState
}

// NewMockCopter creates a ready copter exposing all three capabilities
func NewMockCopter(id string, hb *MockHeartbeat, pos *MockPosition, ctrl *MockControl) *MockDevice {
	d := &MockDevice{
		IDValue:   id,
		NameValue: fmt.Sprintf("ArduCopter [%s]", id),
		KindValue: device.KindCopter,
		state:     device.StateReady,
		link:      device.LinkConnected,
	}
	if hb != nil {
		d.Caps.Heartbeat = hb
	}
	if pos != nil {
		d.Caps.Position = pos
	}
	if ctrl != nil {
		d.Caps.Control = ctrl
	}
	return d
}

func (d *MockDevice) ID() string                        { return d.IDValue }
func (d *MockDevice) Name() string                      { return d.NameValue }
func (d *MockDevice) Kind() device.Kind                 { return d.KindValue }
func (d *MockDevice) Capabilities() device.Capabilities { return d.Caps }

func (d *MockDevice) State() device.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *MockDevice) SetState(s device.State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *MockDevice) Link() device.LinkState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.link
}

func (d *MockDevice) SetLink(l device.LinkState) {
	d.mu.Lock()
	d.link = l
	d.mu.Unlock()
}

// MockExplorer returns one device set per call to Devices. The last set is
// repeated once the sequence is exhausted.
type MockExplorer struct {
	mu     sync.Mutex
	polls  [][]device.Device
	calls  int
	closed bool
}

func NewMockExplorer(polls ...[]device.Device) *MockExplorer {
	return &MockExplorer{polls: polls}
}

func (e *MockExplorer) Devices() map[string]device.Device {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]device.Device)
	if len(e.polls) == 0 {
		e.calls++
		return out
	}
	i := e.calls
	if i >= len(e.polls) {
		i = len(e.polls) - 1
	}
	e.calls++
	for _, d := range e.polls[i] {
		out[d.ID()] = d
	}
	return out
}

func (e *MockExplorer) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Calls returns how many times Devices was called
func (e *MockExplorer) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *MockExplorer) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// MockHeartbeat is a fixed heartbeat client
type MockHeartbeat struct {
	Value *types.Heartbeat
	Rate  float64
}

func (h *MockHeartbeat) Heartbeat() *types.Heartbeat { return h.Value }
func (h *MockHeartbeat) PacketRate() float64         { return h.Rate }

// MockPosition is a fixed position client
type MockPosition struct {
	HomePoint *geo.Point
	Global    *types.GlobalPosition
	Raw       *geo.Point
}

func (p *MockPosition) Home() *geo.Point                      { return p.HomePoint }
func (p *MockPosition) GlobalPosition() *types.GlobalPosition { return p.Global }
func (p *MockPosition) GNSS() *geo.Point                      { return p.Raw }

// ControlCall is one recorded call on MockControl
type ControlCall struct {
	Method   string
	Target   geo.Point
	Altitude float64
}

// MockControl records every command. Err, when set, is returned by all calls.
// Block, when set, makes calls wait until it is closed or ctx is done.
type MockControl struct {
	Err   error
	Block chan struct{}

	mu    sync.Mutex
	calls []ControlCall
}

func (c *MockControl) record(ctx context.Context, call ControlCall) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	block := c.Block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.Err
}

func (c *MockControl) GoTo(ctx context.Context, target geo.Point) error {
	return c.record(ctx, ControlCall{Method: "GoTo", Target: target})
}

func (c *MockControl) TakeOff(ctx context.Context, altitude float64) error {
	return c.record(ctx, ControlCall{Method: "TakeOff", Altitude: altitude})
}

func (c *MockControl) Land(ctx context.Context) error {
	return c.record(ctx, ControlCall{Method: "Land"})
}

func (c *MockControl) SetGuidedMode(ctx context.Context) error {
	return c.record(ctx, ControlCall{Method: "SetGuidedMode"})
}

// Calls returns a copy of the recorded calls
func (c *MockControl) Calls() []ControlCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ControlCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// Methods returns the names of the recorded calls in order
func (c *MockControl) Methods() []string {
	calls := c.Calls()
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.Method
	}
	return out
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
		}
	}
}
