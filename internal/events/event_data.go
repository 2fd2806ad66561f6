package events

import (
	"encoding/json"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// StrategyAddedData contains data for StrategyAdded events
type StrategyAddedData struct {
	Strategy domain.Address `json:"strategy"`
}

// EventType returns the event type for StrategyAddedData
func (d *StrategyAddedData) EventType() EventType {
	return StrategyAdded
}

// StrategyRemovedData contains data for StrategyRemoved events
type StrategyRemovedData struct {
	Strategy domain.Address `json:"strategy"`
}

// EventType returns the event type for StrategyRemovedData
func (d *StrategyRemovedData) EventType() EventType {
	return StrategyRemoved
}

// RightAddedData contains data for RightAdded events
type RightAddedData struct {
	Strategy domain.Address `json:"strategy"`
	Asset    domain.Address `json:"asset"`
}

// EventType returns the event type for RightAddedData
func (d *RightAddedData) EventType() EventType {
	return RightAdded
}

// RightRemovedData contains data for RightRemoved events
type RightRemovedData struct {
	Strategy domain.Address `json:"strategy"`
	Asset    domain.Address `json:"asset"`
}

// EventType returns the event type for RightRemovedData
func (d *RightRemovedData) EventType() EventType {
	return RightRemoved
}

// CapUpdatedData contains data for CapUpdated events
type CapUpdatedData struct {
	Strategy domain.Address `json:"strategy"`
	Asset    domain.Address `json:"asset"`
	Cap      sdkmath.Int    `json:"cap"`
}

// EventType returns the event type for CapUpdatedData
func (d *CapUpdatedData) EventType() EventType {
	return CapUpdated
}

// CallerToggledData contains data for CallerToggled events
type CallerToggledData struct {
	Strategy    domain.Address `json:"strategy"`
	Caller      domain.Address `json:"caller"`
	Whitelisted bool           `json:"whitelisted"`
}

// EventType returns the event type for CallerToggledData
func (d *CallerToggledData) EventType() EventType {
	return CallerToggled
}

// PushedData contains data for Pushed events
type PushedData struct {
	Strategy domain.Address `json:"strategy"`
	Asset    domain.Address `json:"asset"`
	Amount   sdkmath.Int    `json:"amount"`
	Flag     bool           `json:"flag"`
	Debt     sdkmath.Int    `json:"debt"`
}

// EventType returns the event type for PushedData
func (d *PushedData) EventType() EventType {
	return Pushed
}

// PulledData contains data for Pulled events
type PulledData struct {
	Strategy      domain.Address `json:"strategy"`
	Asset         domain.Address `json:"asset"`
	Amount        sdkmath.Int    `json:"amount"`
	Sent          sdkmath.Int    `json:"sent"`
	Recipient     domain.Address `json:"recipient"`
	Flag          bool           `json:"flag"`
	Debt          sdkmath.Int    `json:"debt"`
	ProtocolGains sdkmath.Int    `json:"protocol_gains"`
	ProtocolDebts sdkmath.Int    `json:"protocol_debts"`
}

// EventType returns the event type for PulledData
func (d *PulledData) EventType() EventType {
	return Pulled
}

// AllowanceChangedData contains data for AllowanceChanged events
type AllowanceChangedData struct {
	Strategy domain.Address `json:"strategy"`
	Asset    domain.Address `json:"asset"`
	Spender  domain.Address `json:"spender"`
	Amount   sdkmath.Int    `json:"amount"`
}

// EventType returns the event type for AllowanceChangedData
func (d *AllowanceChangedData) EventType() EventType {
	return AllowanceChanged
}

// RoleGrantedData contains data for RoleGranted events
type RoleGrantedData struct {
	Address domain.Address `json:"address"`
	Role    domain.Role    `json:"role"`
	By      domain.Address `json:"by,omitempty"`
}

// EventType returns the event type for RoleGrantedData
func (d *RoleGrantedData) EventType() EventType {
	return RoleGranted
}

// RoleRevokedData contains data for RoleRevoked events
type RoleRevokedData struct {
	Address domain.Address `json:"address"`
	Role    domain.Role    `json:"role"`
	By      domain.Address `json:"by"`
}

// EventType returns the event type for RoleRevokedData
func (d *RoleRevokedData) EventType() EventType {
	return RoleRevoked
}

// newData returns an empty typed payload for t, or nil for unknown types
func newData(t EventType) EventData {
	switch t {
	case StrategyAdded:
		return &StrategyAddedData{}
	case StrategyRemoved:
		return &StrategyRemovedData{}
	case RightAdded:
		return &RightAddedData{}
	case RightRemoved:
		return &RightRemovedData{}
	case CapUpdated:
		return &CapUpdatedData{}
	case CallerToggled:
		return &CallerToggledData{}
	case Pushed:
		return &PushedData{}
	case Pulled:
		return &PulledData{}
	case AllowanceChanged:
		return &AllowanceChangedData{}
	case RoleGranted:
		return &RoleGrantedData{}
	case RoleRevoked:
		return &RoleRevokedData{}
	}
	return nil
}

// decodeData unmarshals a stored JSON payload into its typed form
func decodeData(t EventType, payload []byte) (EventData, error) {
	data := newData(t)
	if data == nil {
		return nil, nil
	}
	if err := json.Unmarshal(payload, data); err != nil {
		return nil, err
	}
	return data, nil
}
