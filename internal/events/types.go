// Package events provides the append-only audit trail of the treasury:
// typed event records, their persistence, per-call receipts and the in-process bus.
package events

// EventType represents different event types
type EventType string

const (
	// Strategy registry
	StrategyAdded   EventType = "STRATEGY_ADDED"
	StrategyRemoved EventType = "STRATEGY_REMOVED"

	// Asset rights
	RightAdded    EventType = "RIGHT_ADDED"
	RightRemoved  EventType = "RIGHT_REMOVED"
	CapUpdated    EventType = "CAP_UPDATED"
	CallerToggled EventType = "CALLER_TOGGLED"

	// Fund movements
	Pushed EventType = "PUSHED"
	Pulled EventType = "PULLED"

	// Strategy allowances
	AllowanceChanged EventType = "ALLOWANCE_CHANGED"

	// Access registry
	RoleGranted EventType = "ROLE_GRANTED"
	RoleRevoked EventType = "ROLE_REVOKED"
)

// AllTypes lists every event type in declaration order
var AllTypes = []EventType{
	StrategyAdded,
	StrategyRemoved,
	RightAdded,
	RightRemoved,
	CapUpdated,
	CallerToggled,
	Pushed,
	Pulled,
	AllowanceChanged,
	RoleGranted,
	RoleRevoked,
}
