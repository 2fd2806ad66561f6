// Package venue provides the lending venue the treasury's lending strategy
// invests into: its client interface and a simulated, interest-accruing market.
package venue

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
)

// Instruments identifies the receipt instruments a venue issues for one asset
type Instruments struct {
	SupplyToken domain.Address `json:"supply_token"`
	BorrowToken domain.Address `json:"borrow_token"`
}

// Market is the public state of one listed asset
type Market struct {
	Asset       domain.Address `json:"asset"`
	Instruments Instruments    `json:"instruments"`
	AprBps      int64          `json:"apr_bps"`
	SupplyIndex sdkmath.Int    `json:"supply_index"`
	TotalSupply sdkmath.Int    `json:"total_supply"`
}

// Client is the lending venue as seen by a strategy
type Client interface {
	// Address returns the venue's handle. It is the spender a depositor approves.
	Address() domain.Address

	// Instruments returns the receipt instruments of a listed asset
	Instruments(ctx context.Context, asset domain.Address) (Instruments, error)

	// Supply pulls amount of asset from caller through the caller's allowance
	// to the venue. asCollateral marks the position as collateral.
	Supply(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, asCollateral bool) error

	// Redeem burns caller's position for amount of underlying sent to recipient.
	// Returns the amount sent.
	Redeem(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, recipient domain.Address) (sdkmath.Int, error)

	// BalanceOfUnderlying returns holder's redeemable amount of asset, interest included
	BalanceOfUnderlying(ctx context.Context, asset, holder domain.Address) (sdkmath.Int, error)

	// ExitMarket stops using caller's position in asset as collateral
	ExitMarket(ctx context.Context, caller, asset domain.Address) error
}
