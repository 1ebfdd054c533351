package types

import (
	"time"

	"github.com/saviobatista/testvehicle/internal/geo"
)

// Heartbeat is the decoded payload of the most recent HEARTBEAT from a vehicle
type Heartbeat struct {
	Type           string `json:"type"`
	Autopilot      string `json:"autopilot"`
	BaseMode       string `json:"base_mode"`
	CustomMode     uint32 `json:"custom_mode"`
	SystemStatus   string `json:"system_status"`
	MavlinkVersion uint8  `json:"mavlink_version"`
}

// GlobalPosition is the fused global position estimate of a vehicle
type GlobalPosition struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"`
	RelativeAlt float64 `json:"relative_alt"`
}

// Point returns the position as a geo point using the absolute altitude
func (g GlobalPosition) Point() geo.Point {
	return geo.New(g.Latitude, g.Longitude, g.Altitude)
}

// Field is one named row of a telemetry snapshot
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Snapshot is a point-in-time rendering of a device's state
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	Fields    []Field   `json:"fields"`
	Timestamp time.Time `json:"timestamp"`
}

// Value returns the value of the named field and whether it is present
func (s *Snapshot) Value(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// CommandRecord describes one operator command as issued to a device
type CommandRecord struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	Command   string    `json:"command"`
	Issued    time.Time `json:"issued"`
	Error     string    `json:"error,omitempty"`
}
