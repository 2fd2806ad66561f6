package lending

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/clients/venue"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/modules/strategies"
)

// Strategy supplies assets to a lending venue.
//
// Deposit approves the venue for exactly the deposited amount and supplies it;
// flag enters the position as collateral. Withdraw redeems into the strategy and
// forwards the proceeds; flag exits the collateral market once the position is empty.
type Strategy struct {
	*strategies.Base
	venue       venue.Client
	instruments *InstrumentRepository
}

// New creates a lending strategy over base investing into v
func New(base *strategies.Base, v venue.Client, instruments *InstrumentRepository) *Strategy {
	return &Strategy{
		Base:        base,
		venue:       v,
		instruments: instruments,
	}
}

var _ domain.Strategy = (*Strategy)(nil)

// Instruments returns the venue receipt instruments recorded for asset
func (s *Strategy) Instruments(ctx context.Context, asset domain.Address) (venue.Instruments, bool, error) {
	return s.instruments.Get(ctx, s.Address(), asset)
}

// OnRightGranted records the venue's instruments for asset
func (s *Strategy) OnRightGranted(ctx context.Context, caller, asset domain.Address) error {
	return s.Runtime().Atomic(ctx, func(ctx context.Context) error {
		if err := s.Base.OnRightGranted(ctx, caller, asset); err != nil {
			return err
		}

		inst, err := s.venue.Instruments(ctx, asset)
		if err != nil {
			return externalError("resolve instruments", err)
		}
		return s.instruments.Set(ctx, s.Address(), asset, inst)
	})
}

// OnRightRevoked clears the recorded instruments for asset
func (s *Strategy) OnRightRevoked(ctx context.Context, caller, asset domain.Address) error {
	return s.Runtime().Atomic(ctx, func(ctx context.Context) error {
		if err := s.Base.OnRightRevoked(ctx, caller, asset); err != nil {
			return err
		}
		return s.instruments.Clear(ctx, s.Address(), asset)
	})
}

// Deposit supplies amount of asset, just received from the ledger, to the venue
func (s *Strategy) Deposit(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, flag bool, aux []byte) error {
	if err := s.OnlyLedger(caller); err != nil {
		return err
	}

	return s.Runtime().Atomic(ctx, func(ctx context.Context) error {
		if err := s.Book().Approve(ctx, asset, s.Address(), s.venue.Address(), amount); err != nil {
			return fmt.Errorf("failed to approve venue: %w", err)
		}
		if err := s.venue.Supply(ctx, s.Address(), asset, amount, flag); err != nil {
			return externalError("supply", err)
		}

		s.Logger().Info().
			Str("asset", asset.String()).
			Str("amount", amount.String()).
			Bool("collateral", flag).
			Msg("Deposited into venue")
		return nil
	})
}

// Withdraw redeems amount of asset from the venue and sends it to recipient
func (s *Strategy) Withdraw(ctx context.Context, caller, asset domain.Address, amount sdkmath.Int, flag bool, recipient domain.Address, aux []byte) (sdkmath.Int, error) {
	if err := s.OnlyLedger(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}

	sent := sdkmath.ZeroInt()
	err := s.Runtime().Atomic(ctx, func(ctx context.Context) error {
		invested, err := s.InvestedBalance(ctx, asset)
		if err != nil {
			return err
		}
		if invested.LT(amount) {
			return fmt.Errorf("strategy %s holds %s of %s, requested %s: %w",
				s.Address(), invested, asset, amount, domain.ErrInsufficientStrategyBalance)
		}

		redeemed, err := s.venue.Redeem(ctx, s.Address(), asset, amount, s.Address())
		if err != nil {
			return externalError("redeem", err)
		}
		if err := s.Book().Transfer(ctx, asset, s.Address(), recipient, redeemed); err != nil {
			return fmt.Errorf("failed to forward withdrawal: %w", err)
		}

		if flag {
			remaining, err := s.InvestedBalance(ctx, asset)
			if err != nil {
				return err
			}
			if remaining.IsZero() {
				if err := s.venue.ExitMarket(ctx, s.Address(), asset); err != nil {
					return externalError("exit market", err)
				}
			}
		}

		sent = redeemed
		s.Logger().Info().
			Str("asset", asset.String()).
			Str("amount", redeemed.String()).
			Str("recipient", recipient.String()).
			Msg("Withdrew from venue")
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return sent, nil
}

// InvestedBalance returns the strategy's redeemable position in the venue
func (s *Strategy) InvestedBalance(ctx context.Context, asset domain.Address) (sdkmath.Int, error) {
	bal, err := s.venue.BalanceOfUnderlying(ctx, asset, s.Address())
	if err != nil {
		return sdkmath.ZeroInt(), externalError("balance", err)
	}
	return bal, nil
}

// externalError tags a venue failure as an external call failure while keeping its cause matchable
func externalError(op string, err error) error {
	if errors.Is(err, domain.ErrExternalCallFailed) {
		return err
	}
	return fmt.Errorf("venue %s: %w", op, errors.Join(domain.ErrExternalCallFailed, err))
}
