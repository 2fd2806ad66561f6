// Package reporting derives exposure figures from the allocation ledger:
// a live utilisation report per right and persisted NAV snapshots whose
// history yields a growth estimate per pair.
package reporting

import (
	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
)

// PositionExposure is the live state of one (strategy, asset) pair
type PositionExposure struct {
	Strategy      domain.Address `json:"strategy"`
	Asset         domain.Address `json:"asset"`
	Listed        bool           `json:"listed"`
	Cap           sdkmath.Int    `json:"cap"`
	Debt          sdkmath.Int    `json:"debt"`
	Headroom      sdkmath.Int    `json:"headroom"`
	NAV           sdkmath.Int    `json:"nav"`
	LastBalance   sdkmath.Int    `json:"last_balance"`
	Unrealized    sdkmath.Int    `json:"unrealized"`
	ProtocolGains sdkmath.Int    `json:"protocol_gains"`
	ProtocolDebts sdkmath.Int    `json:"protocol_debts"`
	Utilisation   float64        `json:"utilisation"`
}

// AssetExposure aggregates every strategy's exposure to one asset
type AssetExposure struct {
	Asset           domain.Address `json:"asset"`
	PoolBalance     sdkmath.Int    `json:"pool_balance"`
	TotalCap        sdkmath.Int    `json:"total_cap"`
	TotalDebt       sdkmath.Int    `json:"total_debt"`
	TotalNAV        sdkmath.Int    `json:"total_nav"`
	DeployedShare   float64        `json:"deployed_share"`
	MeanUtilisation float64        `json:"mean_utilisation"`
	MaxUtilisation  float64        `json:"max_utilisation"`
	StdUtilisation  float64        `json:"std_utilisation"`
	Strategies      int            `json:"strategies"`
}

// ExposureReport is the live exposure of the whole treasury
type ExposureReport struct {
	GeneratedAt int64              `json:"generated_at"`
	Positions   []PositionExposure `json:"positions"`
	Assets      []AssetExposure    `json:"assets"`
}

// Snapshot is one recorded NAV observation of a pair
type Snapshot struct {
	ID            int64          `json:"id"`
	Strategy      domain.Address `json:"strategy"`
	Asset         domain.Address `json:"asset"`
	Cap           sdkmath.Int    `json:"cap"`
	Debt          sdkmath.Int    `json:"debt"`
	NAV           sdkmath.Int    `json:"nav"`
	LastBalance   sdkmath.Int    `json:"last_balance"`
	ProtocolGains sdkmath.Int    `json:"protocol_gains"`
	ProtocolDebts sdkmath.Int    `json:"protocol_debts"`
	TakenAt       int64          `json:"taken_at"`
}

// Trend summarises the snapshot history of a pair
type Trend struct {
	Strategy domain.Address `json:"strategy"`
	Asset    domain.Address `json:"asset"`
	Samples  int            `json:"samples"`
	// GrowthBps is the annualised NAV growth fitted over the samples
	GrowthBps float64    `json:"growth_bps"`
	MeanNAV   float64    `json:"mean_nav"`
	Snapshots []Snapshot `json:"snapshots"`
}
