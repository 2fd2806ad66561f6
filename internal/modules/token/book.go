// Package token provides the fungible asset primitive: per-asset balances,
// explicit allowances and transfers between treasury participants.
package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/rs/zerolog"
)

// Book is the balance and allowance ledger of every registered asset.
// Database: treasury.db (assets, token_balances, token_allowances tables)
type Book struct {
	rt  *database.Runtime
	db  *database.DB
	log zerolog.Logger
}

// NewBook creates a new token book
func NewBook(rt *database.Runtime, log zerolog.Logger) *Book {
	return &Book{
		rt:  rt,
		db:  rt.DB(),
		log: log.With().Str("service", "token").Logger(),
	}
}

// RegisterAsset adds an asset or updates its metadata
func (b *Book) RegisterAsset(ctx context.Context, asset domain.Asset) error {
	if asset.Address.IsZero() {
		return fmt.Errorf("cannot register asset: %w", domain.ErrInvalidAddress)
	}

	_, err := b.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO assets (address, symbol, decimals) VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET symbol = excluded.symbol, decimals = excluded.decimals
	`, string(asset.Address), asset.Symbol, asset.Decimals)
	if err != nil {
		return fmt.Errorf("failed to register asset %s: %w", asset.Address, err)
	}
	return nil
}

// Asset returns the metadata of a registered asset
func (b *Book) Asset(ctx context.Context, addr domain.Address) (domain.Asset, error) {
	asset := domain.Asset{Address: addr}
	err := b.db.Q(ctx).QueryRowContext(ctx,
		"SELECT symbol, decimals FROM assets WHERE address = ?", string(addr),
	).Scan(&asset.Symbol, &asset.Decimals)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Asset{}, fmt.Errorf("asset %s: %w", addr, domain.ErrUnknownAsset)
	}
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to load asset %s: %w", addr, err)
	}
	return asset, nil
}

// Assets returns every registered asset ordered by symbol
func (b *Book) Assets(ctx context.Context) ([]domain.Asset, error) {
	rows, err := b.db.Q(ctx).QueryContext(ctx, "SELECT address, symbol, decimals FROM assets ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Asset, 0)
	for rows.Next() {
		var a domain.Asset
		var addr string
		if err := rows.Scan(&addr, &a.Symbol, &a.Decimals); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Address = domain.Address(addr)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return result, nil
}

// BalanceOf returns holder's balance of asset
func (b *Book) BalanceOf(ctx context.Context, asset, holder domain.Address) (sdkmath.Int, error) {
	return b.readAmount(ctx,
		"SELECT amount FROM token_balances WHERE asset = ? AND holder = ?",
		string(asset), string(holder))
}

// Allowance returns how much spender may move out of owner's balance of asset
func (b *Book) Allowance(ctx context.Context, asset, owner, spender domain.Address) (sdkmath.Int, error) {
	return b.readAmount(ctx,
		"SELECT amount FROM token_allowances WHERE asset = ? AND owner = ? AND spender = ?",
		string(asset), string(owner), string(spender))
}

// Approve sets the exact allowance owner grants spender over asset
func (b *Book) Approve(ctx context.Context, asset, owner, spender domain.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("approve %s: %w", asset, domain.ErrInvalidAmount)
	}

	return b.rt.Atomic(ctx, func(ctx context.Context) error {
		if _, err := b.Asset(ctx, asset); err != nil {
			return err
		}
		return b.writeAllowance(ctx, asset, owner, spender, amount)
	})
}

// Transfer moves amount of asset from one holder to another
func (b *Book) Transfer(ctx context.Context, asset, from, to domain.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("transfer %s: %w", asset, domain.ErrInvalidAmount)
	}

	return b.rt.Atomic(ctx, func(ctx context.Context) error {
		if _, err := b.Asset(ctx, asset); err != nil {
			return err
		}
		return b.move(ctx, asset, from, to, amount)
	})
}

// TransferFrom moves amount of asset out of from's balance on behalf of spender,
// consuming spender's allowance. The maximum allowance is never decremented.
func (b *Book) TransferFrom(ctx context.Context, asset, spender, from, to domain.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("transferFrom %s: %w", asset, domain.ErrInvalidAmount)
	}

	return b.rt.Atomic(ctx, func(ctx context.Context) error {
		if _, err := b.Asset(ctx, asset); err != nil {
			return err
		}

		allowance, err := b.Allowance(ctx, asset, from, spender)
		if err != nil {
			return err
		}
		if allowance.LT(amount) {
			return fmt.Errorf("%s may move %s of %s from %s, requested %s: %w",
				spender, allowance, asset, from, amount, domain.ErrInsufficientAllowance)
		}
		if !allowance.Equal(domain.MaxAllowance) {
			if err := b.writeAllowance(ctx, asset, from, spender, allowance.Sub(amount)); err != nil {
				return err
			}
		}

		return b.move(ctx, asset, from, to, amount)
	})
}

// Mint creates amount of asset in to's balance
func (b *Book) Mint(ctx context.Context, asset, to domain.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("mint %s: %w", asset, domain.ErrInvalidAmount)
	}

	return b.rt.Atomic(ctx, func(ctx context.Context) error {
		if _, err := b.Asset(ctx, asset); err != nil {
			return err
		}
		balance, err := b.BalanceOf(ctx, asset, to)
		if err != nil {
			return err
		}
		return b.writeBalance(ctx, asset, to, balance.Add(amount))
	})
}

func (b *Book) move(ctx context.Context, asset, from, to domain.Address, amount sdkmath.Int) error {
	if amount.IsZero() || from == to {
		return nil
	}

	fromBalance, err := b.BalanceOf(ctx, asset, from)
	if err != nil {
		return err
	}
	if fromBalance.LT(amount) {
		return fmt.Errorf("%s holds %s of %s, needs %s: %w",
			from, fromBalance, asset, amount, domain.ErrInsufficientBalance)
	}
	toBalance, err := b.BalanceOf(ctx, asset, to)
	if err != nil {
		return err
	}

	if err := b.writeBalance(ctx, asset, from, fromBalance.Sub(amount)); err != nil {
		return err
	}
	if err := b.writeBalance(ctx, asset, to, toBalance.Add(amount)); err != nil {
		return err
	}

	b.log.Debug().
		Str("asset", asset.String()).
		Str("from", from.String()).
		Str("to", to.String()).
		Str("amount", amount.String()).
		Msg("Transfer")
	return nil
}

func (b *Book) writeBalance(ctx context.Context, asset, holder domain.Address, amount sdkmath.Int) error {
	_, err := b.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO token_balances (asset, holder, amount) VALUES (?, ?, ?)
		ON CONFLICT(asset, holder) DO UPDATE SET amount = excluded.amount
	`, string(asset), string(holder), amount.String())
	if err != nil {
		return fmt.Errorf("failed to write balance of %s: %w", holder, err)
	}
	return nil
}

func (b *Book) writeAllowance(ctx context.Context, asset, owner, spender domain.Address, amount sdkmath.Int) error {
	_, err := b.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO token_allowances (asset, owner, spender, amount) VALUES (?, ?, ?, ?)
		ON CONFLICT(asset, owner, spender) DO UPDATE SET amount = excluded.amount
	`, string(asset), string(owner), string(spender), amount.String())
	if err != nil {
		return fmt.Errorf("failed to write allowance %s -> %s: %w", owner, spender, err)
	}
	return nil
}

func (b *Book) readAmount(ctx context.Context, query string, args ...interface{}) (sdkmath.Int, error) {
	var raw string
	err := b.db.Q(ctx).QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return sdkmath.ZeroInt(), nil
	}
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read amount: %w", err)
	}
	return domain.ParseAmount(raw)
}
