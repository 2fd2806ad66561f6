package venue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/modules/token"
	"github.com/rs/zerolog"
)

// SecondsPerYear is the accrual year used by the simulated market
const SecondsPerYear = 365 * 24 * 60 * 60

// Ray is the fixed-point scale of the supply index
var Ray = sdkmath.NewIntWithDecimal(1, 27)

// Option configures a Simulated venue
type Option func(*Simulated)

// WithClock replaces the wall clock used for interest accrual
func WithClock(now func() time.Time) Option {
	return func(s *Simulated) {
		s.now = now
	}
}

// Simulated is an in-process lending market. Suppliers receive shares of a
// per-asset pool whose supply index grows linearly at the market's APR;
// accrued interest is minted into the venue's reserve so it can always be redeemed.
// Database: treasury.db (venue_markets, venue_supply tables)
type Simulated struct {
	addr domain.Address
	rt   *database.Runtime
	db   *database.DB
	book *token.Book
	now  func() time.Time
	log  zerolog.Logger
}

// NewSimulated creates a simulated venue deployed at addr
func NewSimulated(addr domain.Address, rt *database.Runtime, book *token.Book, log zerolog.Logger, opts ...Option) *Simulated {
	s := &Simulated{
		addr: addr,
		rt:   rt,
		db:   rt.DB(),
		book: book,
		now:  time.Now,
		log:  log.With().Str("client", "venue").Str("venue", addr.String()).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address returns the venue's handle
func (s *Simulated) Address() domain.Address {
	return s.addr
}

// ListMarket opens a market for asset with the given supply APR in basis points.
// Listing an already listed asset only updates its APR.
func (s *Simulated) ListMarket(ctx context.Context, asset domain.Address, aprBps int64) (Instruments, error) {
	if aprBps < 0 {
		return Instruments{}, fmt.Errorf("negative APR for %s: %w", asset, domain.ErrInvalidAmount)
	}

	inst := Instruments{
		SupplyToken: domain.Address(fmt.Sprintf("%s/supply/%s", s.addr, asset)),
		BorrowToken: domain.Address(fmt.Sprintf("%s/borrow/%s", s.addr, asset)),
	}

	err := s.rt.Atomic(ctx, func(ctx context.Context) error {
		if _, err := s.book.Asset(ctx, asset); err != nil {
			return err
		}
		if _, err := s.accrue(ctx, asset); err != nil && !errors.Is(err, domain.ErrUnknownAsset) {
			return err
		}

		_, err := s.db.Q(ctx).ExecContext(ctx, `
			INSERT INTO venue_markets (asset, supply_token, borrow_token, supply_index, apr_bps, last_accrual)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(asset) DO UPDATE SET apr_bps = excluded.apr_bps
		`, string(asset), string(inst.SupplyToken), string(inst.BorrowToken), Ray.String(), aprBps, s.now().Unix())
		if err != nil {
			return fmt.Errorf("failed to list market %s: %w", asset, err)
		}
		return nil
	})
	if err != nil {
		return Instruments{}, err
	}

	s.log.Info().Str("asset", asset.String()).Int64("apr_bps", aprBps).Msg("Market listed")
	return inst, nil
}

// Markets returns the state of every listed market
func (s *Simulated) Markets(ctx context.Context) ([]Market, error) {
	rows, err := s.db.Q(ctx).QueryContext(ctx, "SELECT asset FROM venue_markets ORDER BY asset")
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	var assets []domain.Address
	for rows.Next() {
		var asset string
		if err := rows.Scan(&asset); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		assets = append(assets, domain.Address(asset))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating markets: %w", err)
	}

	result := make([]Market, 0, len(assets))
	for _, asset := range assets {
		m, err := s.loadMarket(ctx, asset)
		if err != nil {
			return nil, err
		}
		total, err := s.totalShares(ctx, asset)
		if err != nil {
			return nil, err
		}
		index := m.indexAt(s.now())
		result = append(result, Market{
			Asset:       asset,
			Instruments: m.instruments,
			AprBps:      m.aprBps,
			SupplyIndex: index,
			TotalSupply: underlying(total, index),
		})
	}
	return result, nil
}

// Instruments returns the receipt instruments of a listed asset
func (s *Simulated) Instruments(ctx context.Context, asset domain.Address) (Instruments, error) {
	m, err := s.loadMarket(ctx, asset)
	if err != nil {
		return Instruments{}, err
	}
	return m.instruments, nil
}

// Supply pulls amount from caller using the caller's allowance to the venue
func (s *Simulated) Supply(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, asCollateral bool) error {
	if !amount.IsPositive() {
		return fmt.Errorf("supply %s: %w", asset, domain.ErrInvalidAmount)
	}

	return s.rt.Atomic(ctx, func(ctx context.Context) error {
		index, err := s.accrue(ctx, asset)
		if err != nil {
			return err
		}

		minted := amount.Mul(Ray).Quo(index)
		if minted.IsZero() {
			return fmt.Errorf("supply of %s %s rounds to zero shares: %w", amount, asset, domain.ErrInvalidAmount)
		}

		if err := s.book.TransferFrom(ctx, asset, s.addr, caller, s.addr, amount); err != nil {
			return fmt.Errorf("failed to pull supply from %s: %w", caller, err)
		}

		shares, collateral, err := s.position(ctx, asset, caller)
		if err != nil {
			return err
		}
		if err := s.writePosition(ctx, asset, caller, shares.Add(minted), collateral || asCollateral); err != nil {
			return err
		}

		s.log.Debug().
			Str("asset", asset.String()).
			Str("supplier", caller.String()).
			Str("amount", amount.String()).
			Str("shares", minted.String()).
			Msg("Supplied")
		return nil
	})
}

// Redeem burns caller's shares worth amount of underlying and sends it to recipient
func (s *Simulated) Redeem(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, recipient domain.Address) (sdkmath.Int, error) {
	if !amount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("redeem %s: %w", asset, domain.ErrInvalidAmount)
	}

	err := s.rt.Atomic(ctx, func(ctx context.Context) error {
		index, err := s.accrue(ctx, asset)
		if err != nil {
			return err
		}

		shares, collateral, err := s.position(ctx, asset, caller)
		if err != nil {
			return err
		}
		available := underlying(shares, index)
		if available.LT(amount) {
			return fmt.Errorf("%s can redeem %s of %s, requested %s: %w",
				caller, available, asset, amount, domain.ErrInsufficientBalance)
		}

		burned := ceilDiv(amount.Mul(Ray), index)
		if burned.GT(shares) {
			burned = shares
		}
		if err := s.writePosition(ctx, asset, caller, shares.Sub(burned), collateral); err != nil {
			return err
		}

		if err := s.book.Transfer(ctx, asset, s.addr, recipient, amount); err != nil {
			return fmt.Errorf("failed to pay out redemption: %w", err)
		}

		s.log.Debug().
			Str("asset", asset.String()).
			Str("supplier", caller.String()).
			Str("recipient", recipient.String()).
			Str("amount", amount.String()).
			Msg("Redeemed")
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount, nil
}

// BalanceOfUnderlying returns holder's redeemable amount, interest accrued up to now
func (s *Simulated) BalanceOfUnderlying(ctx context.Context, asset, holder domain.Address) (sdkmath.Int, error) {
	m, err := s.loadMarket(ctx, asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	shares, _, err := s.position(ctx, asset, holder)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return underlying(shares, m.indexAt(s.now())), nil
}

// ExitMarket clears the collateral flag of caller's position
func (s *Simulated) ExitMarket(ctx context.Context, caller, asset domain.Address) error {
	return s.rt.Atomic(ctx, func(ctx context.Context) error {
		if _, err := s.loadMarket(ctx, asset); err != nil {
			return err
		}
		_, err := s.db.Q(ctx).ExecContext(ctx,
			"UPDATE venue_supply SET collateral = 0 WHERE asset = ? AND holder = ?",
			string(asset), string(caller))
		if err != nil {
			return fmt.Errorf("failed to exit market %s: %w", asset, err)
		}
		return nil
	})
}

// IsCollateral reports whether holder's position in asset is marked as collateral
func (s *Simulated) IsCollateral(ctx context.Context, asset, holder domain.Address) (bool, error) {
	_, collateral, err := s.position(ctx, asset, holder)
	return collateral, err
}

type market struct {
	instruments Instruments
	index       sdkmath.Int
	aprBps      int64
	lastAccrual int64
}

// indexAt projects the supply index to t without persisting it
func (m market) indexAt(t time.Time) sdkmath.Int {
	elapsed := t.Unix() - m.lastAccrual
	if elapsed <= 0 || m.aprBps == 0 {
		return m.index
	}
	growth := m.index.MulRaw(m.aprBps).MulRaw(elapsed).QuoRaw(10000 * SecondsPerYear)
	return m.index.Add(growth)
}

// accrue moves the supply index to now and mints the accrued interest into the reserve
func (s *Simulated) accrue(ctx context.Context, asset domain.Address) (sdkmath.Int, error) {
	m, err := s.loadMarket(ctx, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}

	now := s.now()
	if now.Unix() <= m.lastAccrual {
		return m.index, nil
	}

	index := m.indexAt(now)
	total, err := s.totalShares(ctx, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	interest := underlying(total, index).Sub(underlying(total, m.index))
	if interest.IsPositive() {
		if err := s.book.Mint(ctx, asset, s.addr, interest); err != nil {
			return sdkmath.Int{}, fmt.Errorf("failed to mint accrued interest: %w", err)
		}
	}

	_, err = s.db.Q(ctx).ExecContext(ctx,
		"UPDATE venue_markets SET supply_index = ?, last_accrual = ? WHERE asset = ?",
		index.String(), now.Unix(), string(asset))
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to accrue market %s: %w", asset, err)
	}
	return index, nil
}

func (s *Simulated) loadMarket(ctx context.Context, asset domain.Address) (market, error) {
	var (
		m                    market
		supplyTok, borrowTok string
		rawIndex             string
	)
	err := s.db.Q(ctx).QueryRowContext(ctx, `
		SELECT supply_token, borrow_token, supply_index, apr_bps, last_accrual
		FROM venue_markets WHERE asset = ?
	`, string(asset)).Scan(&supplyTok, &borrowTok, &rawIndex, &m.aprBps, &m.lastAccrual)
	if errors.Is(err, sql.ErrNoRows) {
		return market{}, fmt.Errorf("no venue market for %s: %w", asset, domain.ErrUnknownAsset)
	}
	if err != nil {
		return market{}, fmt.Errorf("failed to load market %s: %w", asset, err)
	}

	m.instruments = Instruments{SupplyToken: domain.Address(supplyTok), BorrowToken: domain.Address(borrowTok)}
	m.index, err = domain.ParseAmount(rawIndex)
	if err != nil {
		return market{}, err
	}
	return m, nil
}

func (s *Simulated) position(ctx context.Context, asset, holder domain.Address) (sdkmath.Int, bool, error) {
	var raw string
	var collateral int
	err := s.db.Q(ctx).QueryRowContext(ctx,
		"SELECT shares, collateral FROM venue_supply WHERE asset = ? AND holder = ?",
		string(asset), string(holder),
	).Scan(&raw, &collateral)
	if errors.Is(err, sql.ErrNoRows) {
		return sdkmath.ZeroInt(), false, nil
	}
	if err != nil {
		return sdkmath.ZeroInt(), false, fmt.Errorf("failed to load supply position: %w", err)
	}
	shares, err := domain.ParseAmount(raw)
	return shares, collateral == 1, err
}

func (s *Simulated) writePosition(ctx context.Context, asset, holder domain.Address, shares sdkmath.Int, collateral bool) error {
	flag := 0
	if collateral {
		flag = 1
	}
	_, err := s.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO venue_supply (asset, holder, shares, collateral) VALUES (?, ?, ?, ?)
		ON CONFLICT(asset, holder) DO UPDATE SET shares = excluded.shares, collateral = excluded.collateral
	`, string(asset), string(holder), shares.String(), flag)
	if err != nil {
		return fmt.Errorf("failed to write supply position: %w", err)
	}
	return nil
}

func (s *Simulated) totalShares(ctx context.Context, asset domain.Address) (sdkmath.Int, error) {
	rows, err := s.db.Q(ctx).QueryContext(ctx, "SELECT shares FROM venue_supply WHERE asset = ?", string(asset))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to query supply: %w", err)
	}
	defer rows.Close()

	total := sdkmath.ZeroInt()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to scan supply: %w", err)
		}
		shares, err := domain.ParseAmount(raw)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		total = total.Add(shares)
	}
	return total, rows.Err()
}

func underlying(shares, index sdkmath.Int) sdkmath.Int {
	return shares.Mul(index).Quo(Ray)
}

func ceilDiv(a, b sdkmath.Int) sdkmath.Int {
	return a.Add(b).SubRaw(1).Quo(b)
}
