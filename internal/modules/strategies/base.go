// Package strategies provides the behavior shared by every strategy module
// and the registry the allocation ledger resolves strategies through.
package strategies

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/token"
	"github.com/rs/zerolog"
)

// Base implements the ledger gate, allowance management and right hooks of a
// strategy. Concrete strategies embed it and add Deposit, Withdraw and
// InvestedBalance.
type Base struct {
	addr     domain.Address
	ledger   domain.Address
	approver domain.Approver
	book     *token.Book
	events   *events.Manager
	rt       *database.Runtime
	log      zerolog.Logger
}

// BaseConfig carries the collaborators of a strategy
type BaseConfig struct {
	Address  domain.Address
	Ledger   domain.Address
	Approver domain.Approver
	Book     *token.Book
	Events   *events.Manager
	Runtime  *database.Runtime
}

// NewBase creates the shared strategy core
func NewBase(cfg BaseConfig, log zerolog.Logger) *Base {
	return &Base{
		addr:     cfg.Address,
		ledger:   cfg.Ledger,
		approver: cfg.Approver,
		book:     cfg.Book,
		events:   cfg.Events,
		rt:       cfg.Runtime,
		log:      log.With().Str("strategy", cfg.Address.String()).Logger(),
	}
}

// Address returns the strategy's handle
func (b *Base) Address() domain.Address {
	return b.addr
}

// Book returns the token book the strategy holds its funds in
func (b *Base) Book() *token.Book {
	return b.book
}

// Runtime returns the atomic runtime the strategy executes in
func (b *Base) Runtime() *database.Runtime {
	return b.rt
}

// Logger returns the strategy's logger
func (b *Base) Logger() *zerolog.Logger {
	return &b.log
}

// OnlyLedger fails with ErrNotLedger unless caller is the allocation ledger
func (b *Base) OnlyLedger(caller domain.Address) error {
	if caller != b.ledger {
		return fmt.Errorf("%s called strategy %s: %w", caller, b.addr, domain.ErrNotLedger)
	}
	return nil
}

// ChangeAllowance sets the exact allowance the strategy grants each spender.
// Governors and callers whitelisted for this strategy may call it.
func (b *Base) ChangeAllowance(ctx context.Context, caller domain.Address, changes []domain.AllowanceChange) error {
	return b.rt.Atomic(ctx, func(ctx context.Context) error {
		if err := b.requireApproved(ctx, caller); err != nil {
			return err
		}

		for _, change := range changes {
			if change.Amount.IsNil() || change.Amount.IsNegative() {
				return fmt.Errorf("allowance for %s: %w", change.Spender, domain.ErrInvalidAmount)
			}
			if change.Spender.IsZero() {
				return fmt.Errorf("allowance spender: %w", domain.ErrInvalidAddress)
			}
			if err := b.book.Approve(ctx, change.Asset, b.addr, change.Spender, change.Amount); err != nil {
				return fmt.Errorf("failed to change allowance: %w", err)
			}
			if err := b.events.Emit(ctx, "strategy", &events.AllowanceChangedData{
				Strategy: b.addr,
				Asset:    change.Asset,
				Spender:  change.Spender,
				Amount:   change.Amount,
			}); err != nil {
				return err
			}

			b.log.Info().
				Str("asset", change.Asset.String()).
				Str("spender", change.Spender.String()).
				Str("amount", change.Amount.String()).
				Msg("Allowance changed")
		}
		return nil
	})
}

// OnRightGranted lets the ledger move the strategy's holdings of asset
func (b *Base) OnRightGranted(ctx context.Context, caller, asset domain.Address) error {
	if err := b.OnlyLedger(caller); err != nil {
		return err
	}
	return b.book.Approve(ctx, asset, b.addr, b.ledger, domain.MaxAllowance)
}

// OnRightRevoked withdraws the ledger's allowance over asset
func (b *Base) OnRightRevoked(ctx context.Context, caller, asset domain.Address) error {
	if err := b.OnlyLedger(caller); err != nil {
		return err
	}
	return b.book.Approve(ctx, asset, b.addr, b.ledger, sdkmath.ZeroInt())
}

func (b *Base) requireApproved(ctx context.Context, caller domain.Address) error {
	if b.approver == nil {
		return fmt.Errorf("strategy %s has no approver: %w", b.addr, domain.ErrNotApproved)
	}

	governor, err := b.approver.IsGovernor(ctx, caller)
	if err != nil {
		return err
	}
	if governor {
		return nil
	}

	whitelisted, err := b.approver.IsCallerWhitelisted(ctx, b.addr, caller)
	if err != nil {
		return err
	}
	if !whitelisted {
		return fmt.Errorf("%s on strategy %s: %w", caller, b.addr, domain.ErrNotApproved)
	}
	return nil
}
