package domain

import "errors"

// Sentinel errors for the allocation ledger, the strategies and the token book.
// Callers wrap them with context and match them with errors.Is.
var (
	// Authorization
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotApproved  = errors.New("not approved")
	ErrNotLedger    = errors.New("caller is not the allocation ledger")
	ErrLastGovernor = errors.New("cannot revoke the last governor")

	// Registry lookups
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrUnknownRight        = errors.New("unknown asset right")
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrModuleNotDeployed   = errors.New("no strategy module deployed at address")
	ErrAlreadyRegistered   = errors.New("strategy already registered")
	ErrRightsOutstanding   = errors.New("strategy still holds asset rights or debt")
	ErrStrategyNotApproved = errors.New("strategy is not whitelisted")

	// Validation
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidCap     = errors.New("invalid cap")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidBatch   = errors.New("invalid batch")
	ErrInvalidRequest = errors.New("invalid request")

	// Limits and funds
	ErrCapExceeded                 = errors.New("cap exceeded")
	ErrInsufficientPoolBalance     = errors.New("insufficient pool balance")
	ErrInsufficientStrategyBalance = errors.New("insufficient strategy balance")
	ErrInsufficientBalance         = errors.New("insufficient balance")
	ErrInsufficientAllowance       = errors.New("insufficient allowance")

	// External calls into strategies and venues
	ErrExternalCallFailed = errors.New("external call failed")
)
