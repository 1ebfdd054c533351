package device

import "fmt"

// CapabilityKind names one capability sub-client
type CapabilityKind int

const (
	CapabilityHeartbeat CapabilityKind = iota
	CapabilityPosition
	CapabilityControl
)

func (k CapabilityKind) String() string {
	switch k {
	case CapabilityHeartbeat:
		return "heartbeat"
	case CapabilityPosition:
		return "position"
	case CapabilityControl:
		return "control"
	default:
		return fmt.Sprintf("capability(%d)", int(k))
	}
}

// Capabilities is the typed registry of a device's sub-clients. A nil field
// means the device does not offer that capability.
type Capabilities struct {
	Heartbeat HeartbeatClient
	Position  PositionClient
	Control   ControlClient
}

// Has reports whether the capability of the given kind is present
func (c Capabilities) Has(kind CapabilityKind) bool {
	switch kind {
	case CapabilityHeartbeat:
		return c.Heartbeat != nil
	case CapabilityPosition:
		return c.Position != nil
	case CapabilityControl:
		return c.Control != nil
	default:
		return false
	}
}

// Require returns an error wrapping ErrNoCapability for the first missing kind
func (c Capabilities) Require(kinds ...CapabilityKind) error {
	for _, k := range kinds {
		if !c.Has(k) {
			return fmt.Errorf("%s: %w", k, ErrNoCapability)
		}
	}
	return nil
}
