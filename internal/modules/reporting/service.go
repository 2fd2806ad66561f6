package reporting

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/modules/ledger"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const secondsPerYear = 365 * 24 * 60 * 60

// Ledger is the read side of the allocation ledger used for reporting
type Ledger interface {
	Strategies(ctx context.Context) ([]ledger.StrategyInfo, error)
	Positions(ctx context.Context, strategy domain.Address) ([]*ledger.Position, error)
	PoolBalance(ctx context.Context, asset domain.Address) (sdkmath.Int, error)
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used to stamp reports and snapshots
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service builds exposure reports and records NAV snapshots
type Service struct {
	ledger   Ledger
	resolver domain.StrategyResolver
	repo     *Repository
	rt       *database.Runtime
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a new reporting service
func NewService(l Ledger, resolver domain.StrategyResolver, repo *Repository, rt *database.Runtime, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:   l,
		resolver: resolver,
		repo:     repo,
		rt:       rt,
		now:      time.Now,
		log:      log.With().Str("service", "reporting").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exposure reports every open pair with its live NAV, plus per-asset aggregates.
// A pair is open while its right is granted or it still carries debt or a balance.
func (s *Service) Exposure(ctx context.Context) (*ExposureReport, error) {
	positions, err := s.exposures(ctx)
	if err != nil {
		return nil, err
	}

	order := make([]domain.Address, 0)
	byAsset := make(map[domain.Address][]PositionExposure)
	for _, p := range positions {
		if _, seen := byAsset[p.Asset]; !seen {
			order = append(order, p.Asset)
		}
		byAsset[p.Asset] = append(byAsset[p.Asset], p)
	}

	assets := make([]AssetExposure, 0, len(order))
	for _, asset := range order {
		agg, err := s.aggregate(ctx, asset, byAsset[asset])
		if err != nil {
			return nil, err
		}
		assets = append(assets, agg)
	}

	return &ExposureReport{
		GeneratedAt: s.now().Unix(),
		Positions:   positions,
		Assets:      assets,
	}, nil
}

// TakeSnapshot records the current figures of every open pair
func (s *Service) TakeSnapshot(ctx context.Context) ([]Snapshot, error) {
	var taken []Snapshot
	err := s.rt.Atomic(ctx, func(ctx context.Context) error {
		positions, err := s.exposures(ctx)
		if err != nil {
			return err
		}

		now := s.now().Unix()
		taken = make([]Snapshot, 0, len(positions))
		for _, p := range positions {
			snap := Snapshot{
				Strategy:      p.Strategy,
				Asset:         p.Asset,
				Cap:           p.Cap,
				Debt:          p.Debt,
				NAV:           p.NAV,
				LastBalance:   p.LastBalance,
				ProtocolGains: p.ProtocolGains,
				ProtocolDebts: p.ProtocolDebts,
				TakenAt:       now,
			}
			if err := s.repo.Insert(ctx, &snap); err != nil {
				return err
			}
			taken = append(taken, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take NAV snapshot: %w", err)
	}

	s.log.Info().Int("pairs", len(taken)).Msg("NAV snapshot recorded")
	return taken, nil
}

// Trend returns up to limit recent snapshots of a pair and the growth fitted over them
func (s *Service) Trend(ctx context.Context, strategy, asset domain.Address, limit int) (*Trend, error) {
	snaps, err := s.repo.List(ctx, strategy, asset, limit)
	if err != nil {
		return nil, err
	}

	trend := &Trend{
		Strategy:  strategy,
		Asset:     asset,
		Samples:   len(snaps),
		Snapshots: snaps,
	}
	if len(snaps) == 0 {
		return trend, nil
	}

	xs := make([]float64, len(snaps))
	ys := make([]float64, len(snaps))
	for i, snap := range snaps {
		xs[i] = float64(snap.TakenAt)
		ys[i] = toFloat(snap.NAV)
	}
	trend.MeanNAV = stat.Mean(ys, nil)

	// A fit needs at least two distinct instants and a non-zero level
	if len(snaps) < 2 || floats.Max(xs) == floats.Min(xs) || trend.MeanNAV == 0 {
		return trend, nil
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	trend.GrowthBps = slope * secondsPerYear / trend.MeanNAV * 10000
	return trend, nil
}

// Prune removes snapshots older than retention
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).Unix()
	var removed int64
	err := s.rt.Atomic(ctx, func(ctx context.Context) error {
		n, err := s.repo.DeleteBefore(ctx, cutoff)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("Pruned NAV snapshots")
	}
	return removed, nil
}

func (s *Service) exposures(ctx context.Context) ([]PositionExposure, error) {
	strategies, err := s.ledger.Strategies(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]PositionExposure, 0)
	for _, info := range strategies {
		positions, err := s.ledger.Positions(ctx, info.Address)
		if err != nil {
			return nil, err
		}
		impl, ok := s.resolver.Resolve(info.Address)
		if !ok {
			return nil, fmt.Errorf("strategy %s: %w", info.Address, domain.ErrModuleNotDeployed)
		}

		for _, p := range positions {
			if !p.Listed && p.Debt.IsZero() && p.LastBalance.IsZero() {
				continue
			}
			nav, err := impl.InvestedBalance(ctx, p.Asset)
			if err != nil {
				return nil, fmt.Errorf("failed to read NAV of %s/%s: %w", info.Address, p.Asset, err)
			}
			result = append(result, PositionExposure{
				Strategy:      p.Strategy,
				Asset:         p.Asset,
				Listed:        p.Listed,
				Cap:           p.Cap,
				Debt:          p.Debt,
				Headroom:      p.Headroom(),
				NAV:           nav,
				LastBalance:   p.LastBalance,
				Unrealized:    nav.Sub(p.LastBalance),
				ProtocolGains: p.ProtocolGains,
				ProtocolDebts: p.ProtocolDebts,
				Utilisation:   utilisation(p.Debt, p.Cap),
			})
		}
	}
	return result, nil
}

func (s *Service) aggregate(ctx context.Context, asset domain.Address, positions []PositionExposure) (AssetExposure, error) {
	pool, err := s.ledger.PoolBalance(ctx, asset)
	if err != nil {
		return AssetExposure{}, err
	}

	agg := AssetExposure{
		Asset:       asset,
		PoolBalance: pool,
		TotalCap:    sdkmath.ZeroInt(),
		TotalDebt:   sdkmath.ZeroInt(),
		TotalNAV:    sdkmath.ZeroInt(),
		Strategies:  len(positions),
	}
	usage := make([]float64, len(positions))
	for i, p := range positions {
		agg.TotalCap = agg.TotalCap.Add(p.Cap)
		agg.TotalDebt = agg.TotalDebt.Add(p.Debt)
		agg.TotalNAV = agg.TotalNAV.Add(p.NAV)
		usage[i] = p.Utilisation
	}

	agg.DeployedShare = ratio(agg.TotalDebt, agg.TotalDebt.Add(pool))
	agg.MeanUtilisation = stat.Mean(usage, nil)
	agg.MaxUtilisation = floats.Max(usage)
	if len(usage) > 1 {
		agg.StdUtilisation = stat.StdDev(usage, nil)
	}
	return agg, nil
}

// utilisation is debt over cap; a revoked right still carrying debt counts as fully used
func utilisation(debt, capAmount sdkmath.Int) float64 {
	if capAmount.IsZero() {
		if debt.IsPositive() {
			return 1
		}
		return 0
	}
	return ratio(debt, capAmount)
}

func ratio(num, den sdkmath.Int) float64 {
	if den.IsZero() {
		return 0
	}
	f, err := sdkmath.LegacyNewDecFromInt(num).Quo(sdkmath.LegacyNewDecFromInt(den)).Float64()
	if err != nil {
		return 0
	}
	return f
}

func toFloat(v sdkmath.Int) float64 {
	f, err := sdkmath.LegacyNewDecFromInt(v).Float64()
	if err != nil {
		return 0
	}
	return f
}
