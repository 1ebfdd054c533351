// Package mavlink implements the device provider on top of gomavlib: it owns the
// MAVLink node, discovers vehicles from their heartbeats and exposes each one as
// a device handle with heartbeat, position and control capabilities.
package mavlink

import (
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/rs/zerolog"

	"github.com/saviobatista/testvehicle/internal/device"
)

// sender writes one message to the link
type sender func(message.Message)

// Config holds explorer settings
type Config struct {
	SystemID       uint8
	ComponentID    uint8
	DeviceTimeout  time.Duration
	InitTimeout    time.Duration
	CheckInterval  time.Duration
	CommandTimeout time.Duration
}

// DefaultConfig returns the settings used by the console
func DefaultConfig() Config {
	return Config{
		SystemID:       255,
		ComponentID:    190,
		DeviceTimeout:  10 * time.Second,
		InitTimeout:    3 * time.Second,
		CheckInterval:  time.Second,
		CommandTimeout: 5 * time.Second,
	}
}

// Explorer tracks the vehicles seen on one MAVLink link
type Explorer struct {
	cfg  Config
	send sender
	now  func() time.Time
	log  zerolog.Logger

	mu      sync.RWMutex
	devices map[Identity]*Vehicle

	closeNode func()
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ device.Explorer = (*Explorer)(nil)

// NewExplorer opens the link described by connection and starts discovering vehicles
func NewExplorer(connection string, cfg Config, log zerolog.Logger) (*Explorer, error) {
	endpoint, err := ParseConnection(connection)
	if err != nil {
		return nil, err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:           []gomavlib.EndpointConf{endpoint},
		Dialect:             common.Dialect,
		OutVersion:          gomavlib.V2,
		OutSystemID:         cfg.SystemID,
		OutComponentID:      cfg.ComponentID,
		StreamRequestEnable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MAVLink node: %w", err)
	}

	e := newExplorer(cfg, func(m message.Message) {
		node.WriteMessageAll(m)
	}, log)
	e.closeNode = func() { node.Close() }

	e.wg.Add(1)
	go e.run(node.Events())
	e.start()

	log.Info().Str("connection", connection).Msg("MAVLink explorer started")
	return e, nil
}

func newExplorer(cfg Config, send sender, log zerolog.Logger) *Explorer {
	return &Explorer{
		cfg:      cfg,
		send:     send,
		now:      time.Now,
		log:      log,
		devices:  make(map[Identity]*Vehicle),
		stopChan: make(chan struct{}),
	}
}

// start launches the periodic sweep
func (e *Explorer) start() {
	e.wg.Add(1)
	go e.sweepLoop()
}

// Devices returns the currently known vehicles keyed by identity
func (e *Explorer) Devices() map[string]device.Device {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]device.Device, len(e.devices))
	for id, v := range e.devices {
		out[id.String()] = v
	}
	return out
}

// Close stops the sweep and closes the underlying node
func (e *Explorer) Close() error {
	e.closeOnce.Do(func() {
		close(e.stopChan)
		if e.closeNode != nil {
			e.closeNode()
		}
		e.wg.Wait()
	})
	return nil
}

func (e *Explorer) run(events <-chan gomavlib.Event) {
	defer e.wg.Done()

	for evt := range events {
		switch ev := evt.(type) {
		case *gomavlib.EventFrame:
			e.handleFrame(Identity{SystemID: ev.SystemID(), ComponentID: ev.ComponentID()}, ev.Message())
		case *gomavlib.EventChannelOpen:
			e.log.Info().Str("channel", fmt.Sprint(ev.Channel)).Msg("Channel opened")
		case *gomavlib.EventChannelClose:
			e.log.Warn().Str("channel", fmt.Sprint(ev.Channel)).Msg("Channel closed")
		case *gomavlib.EventParseError:
			e.log.Debug().Err(ev.Error).Msg("Failed to parse frame")
		}
	}
}

// handleFrame routes a message to its vehicle, creating the vehicle on its first heartbeat
func (e *Explorer) handleFrame(id Identity, msg message.Message) {
	if id.SystemID == e.cfg.SystemID {
		return
	}

	e.mu.RLock()
	v, ok := e.devices[id]
	e.mu.RUnlock()

	if !ok {
		hb, isHeartbeat := msg.(*common.MessageHeartbeat)
		if !isHeartbeat {
			return
		}
		v = newVehicle(id, hb, e.cfg, e.now, e.send)

		e.mu.Lock()
		if existing, found := e.devices[id]; found {
			v = existing
		} else {
			e.devices[id] = v
			e.log.Info().
				Str("device", id.String()).
				Str("name", v.Name()).
				Str("kind", v.Kind().String()).
				Msg("Device discovered")
		}
		e.mu.Unlock()
	}

	v.handleMessage(msg)
}

func (e *Explorer) sweepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

// sweep refreshes packet rates and removes vehicles that timed out
func (e *Explorer) sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, v := range e.devices {
		if v.sweep(e.cfg.InitTimeout) {
			delete(e.devices, id)
			e.log.Warn().Str("device", id.String()).Msg("Device lost")
		}
	}
}
