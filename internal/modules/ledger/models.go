// Package ledger provides the allocation ledger: the registry of strategies and
// their asset rights, capped push/pull of pool funds and the reconciliation of
// strategy-reported balances into protocol gains and debts.
package ledger

import (
	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
)

// StrategyInfo is one registered strategy
type StrategyInfo struct {
	Address     domain.Address   `json:"address"`
	Whitelisted bool             `json:"whitelisted"`
	Assets      []domain.Address `json:"assets"`
}

// Position is the right and accounting record of one (strategy, asset) pair.
// A pair that was never granted reads as the zero position.
type Position struct {
	Strategy      domain.Address `json:"strategy"`
	Asset         domain.Address `json:"asset"`
	Cap           sdkmath.Int    `json:"cap"`
	Debt          sdkmath.Int    `json:"debt"`
	LastBalance   sdkmath.Int    `json:"last_balance"`
	ProtocolGains sdkmath.Int    `json:"protocol_gains"`
	ProtocolDebts sdkmath.Int    `json:"protocol_debts"`
	Listed        bool           `json:"listed"`

	listedSeq int64
	exists    bool
}

// newPosition returns the zero position of a pair
func newPosition(strategy, asset domain.Address) *Position {
	return &Position{
		Strategy:      strategy,
		Asset:         asset,
		Cap:           sdkmath.ZeroInt(),
		Debt:          sdkmath.ZeroInt(),
		LastBalance:   sdkmath.ZeroInt(),
		ProtocolGains: sdkmath.ZeroInt(),
		ProtocolDebts: sdkmath.ZeroInt(),
	}
}

// IsAssetWhitelisted reports whether the right is currently granted
func (p *Position) IsAssetWhitelisted() bool {
	return p.Cap.IsPositive()
}

// Headroom is how much more may be pushed before the cap is reached
func (p *Position) Headroom() sdkmath.Int {
	if p.Debt.GTE(p.Cap) {
		return sdkmath.ZeroInt()
	}
	return p.Cap.Sub(p.Debt)
}

// Transfer is one entry of a push batch
type Transfer struct {
	Asset  domain.Address `json:"asset"`
	Flag   bool           `json:"flag"`
	Amount sdkmath.Int    `json:"amount"`
	Aux    []byte         `json:"aux,omitempty"`
}

// Withdrawal is one entry of a pull batch
type Withdrawal struct {
	Asset     domain.Address `json:"asset"`
	Flag      bool           `json:"flag"`
	Amount    sdkmath.Int    `json:"amount"`
	Recipient domain.Address `json:"recipient"`
	Aux       []byte         `json:"aux,omitempty"`
}
