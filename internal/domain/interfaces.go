package domain

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// AllowanceChange sets the allowance a strategy grants to a spender for one asset.
type AllowanceChange struct {
	Asset   Address     `json:"asset"`
	Spender Address     `json:"spender"`
	Amount  sdkmath.Int `json:"amount"`
}

// Strategy is the capability set the allocation ledger relies on. The ledger
// holds strategy modules only through this interface, never by concrete type.
//
// Deposit, Withdraw and the right hooks only accept the ledger as caller.
// Balances are reported, never written back: all accounting records belong
// to the ledger.
type Strategy interface {
	// Address returns the strategy's handle
	Address() Address

	// Deposit invests amount of asset that the ledger has just transferred to the strategy.
	// flag selects a deposit variant and is opaque to the ledger.
	Deposit(ctx context.Context, caller, asset Address, amount sdkmath.Int, flag bool, aux []byte) error

	// Withdraw divests amount of asset and sends the proceeds to recipient.
	// Returns the amount actually sent.
	Withdraw(ctx context.Context, caller, asset Address, amount sdkmath.Int, flag bool, recipient Address, aux []byte) (sdkmath.Int, error)

	// InvestedBalance reports the current redeemable amount of asset held by the strategy.
	InvestedBalance(ctx context.Context, asset Address) (sdkmath.Int, error)

	// ChangeAllowance sets the strategy's outbound allowances.
	// Allowed for governors and callers whitelisted for this strategy.
	ChangeAllowance(ctx context.Context, caller Address, changes []AllowanceChange) error

	// OnRightGranted is called by the ledger when a right over asset is granted.
	OnRightGranted(ctx context.Context, caller, asset Address) error

	// OnRightRevoked is called by the ledger when a right over asset is revoked.
	OnRightRevoked(ctx context.Context, caller, asset Address) error
}

// StrategyResolver finds the module deployed at an address.
type StrategyResolver interface {
	Resolve(addr Address) (Strategy, bool)
}

// Approver answers the authorization questions a strategy asks the ledger.
type Approver interface {
	IsGovernor(ctx context.Context, addr Address) (bool, error)
	IsCallerWhitelisted(ctx context.Context, strategy, caller Address) (bool, error)
}
