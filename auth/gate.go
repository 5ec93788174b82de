package auth

import "slices"

// GateResult is the outcome of the message type gate.
type GateResult int

const (
	// GateUnrestricted means the zone accepts every message type.
	GateUnrestricted GateResult = iota
	// GateAllowed means the message type is in the allow-list.
	GateAllowed
	// GateRejected means the allow-list is non-empty and excludes the type.
	GateRejected
)

// CheckMessageType compares messageType against allowed.
func CheckMessageType(messageType string, allowed []string) GateResult {
	if len(allowed) == 0 {
		return GateUnrestricted
	}
	if slices.Contains(allowed, messageType) {
		return GateAllowed
	}
	return GateRejected
}
