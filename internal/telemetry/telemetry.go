// Package telemetry turns the observable state of a device into display rows.
package telemetry

import (
	"fmt"
	"time"

	"github.com/saviobatista/testvehicle/internal/device"
	"github.com/saviobatista/testvehicle/internal/session"
	"github.com/saviobatista/testvehicle/internal/types"
)

// Placeholder is shown for any value the device has not reported
const Placeholder = "Not Accessible"

// Field names in display order
const (
	FieldLink           = "Link"
	FieldPacketRate     = "PacketRateHz"
	FieldType           = "Type"
	FieldSystemStatus   = "SystemStatus"
	FieldAutopilot      = "Autopilot"
	FieldBaseMode       = "BaseMode"
	FieldCustomMode     = "CustomMode"
	FieldMavlinkVersion = "MavlinkVersion"
	FieldHome           = "Home"
	FieldGlobalPosition = "GlobalPosition"
	FieldLastCommand    = "LastCommand"
)

// Fields reads the current state of d. An empty lastCommand renders as the placeholder.
func Fields(d device.Device, lastCommand string) []types.Field {
	caps := d.Capabilities()

	rate := Placeholder
	var hb *types.Heartbeat
	if caps.Heartbeat != nil {
		rate = fmt.Sprintf("%.1f", caps.Heartbeat.PacketRate())
		hb = caps.Heartbeat.Heartbeat()
	}

	fields := []types.Field{
		{Name: FieldLink, Value: d.Link().String()},
		{Name: FieldPacketRate, Value: rate},
	}
	fields = append(fields, heartbeatFields(hb)...)

	home, global := Placeholder, Placeholder
	if caps.Position != nil {
		if p := caps.Position.Home(); p != nil {
			home = p.String()
		}
		if g := caps.Position.GlobalPosition(); g != nil {
			global = fmt.Sprintf("%s Rel: %.2f", g.Point(), g.RelativeAlt)
		}
	}
	if lastCommand == "" {
		lastCommand = Placeholder
	}

	return append(fields,
		types.Field{Name: FieldHome, Value: home},
		types.Field{Name: FieldGlobalPosition, Value: global},
		types.Field{Name: FieldLastCommand, Value: lastCommand},
	)
}

func heartbeatFields(hb *types.Heartbeat) []types.Field {
	if hb == nil {
		return []types.Field{
			{Name: FieldType, Value: Placeholder},
			{Name: FieldSystemStatus, Value: Placeholder},
			{Name: FieldAutopilot, Value: Placeholder},
			{Name: FieldBaseMode, Value: Placeholder},
			{Name: FieldCustomMode, Value: Placeholder},
			{Name: FieldMavlinkVersion, Value: Placeholder},
		}
	}
	return []types.Field{
		{Name: FieldType, Value: orPlaceholder(hb.Type)},
		{Name: FieldSystemStatus, Value: orPlaceholder(hb.SystemStatus)},
		{Name: FieldAutopilot, Value: orPlaceholder(hb.Autopilot)},
		{Name: FieldBaseMode, Value: orPlaceholder(hb.BaseMode)},
		{Name: FieldCustomMode, Value: fmt.Sprint(hb.CustomMode)},
		{Name: FieldMavlinkVersion, Value: fmt.Sprint(hb.MavlinkVersion)},
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

// Snapshot captures the session device state at now
func Snapshot(s *session.Session, now time.Time) *types.Snapshot {
	last, _ := s.LastCommand()
	return &types.Snapshot{
		SessionID: s.ID,
		Device:    s.Device.Name(),
		Fields:    Fields(s.Device, last),
		Timestamp: now.UTC(),
	}
}
