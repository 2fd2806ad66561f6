package ledger

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/utils"
)

// Push moves pool funds into strategy and has it invest them. The batch is
// all-or-nothing: any failing entry undoes every transfer and debt update.
//
// Per entry the ledger checks the right, the cap and the pool balance, books
// the debt, and only then transfers and calls the strategy. The balance the
// strategy reports afterwards becomes the entry's new baseline.
func (s *Service) Push(ctx context.Context, caller, strategy domain.Address, batch []Transfer) (*events.Receipt, error) {
	defer utils.OperationTimer("ledger_push", s.log)()

	if len(batch) == 0 {
		return nil, fmt.Errorf("empty push: %w", domain.ErrInvalidBatch)
	}
	for i, t := range batch {
		if t.Amount.IsNil() || !t.Amount.IsPositive() {
			return nil, fmt.Errorf("push entry %d: %w", i, domain.ErrInvalidAmount)
		}
	}

	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		if err := s.requireGovernor(ctx, caller); err != nil {
			return err
		}
		impl, err := s.requirePushable(ctx, strategy)
		if err != nil {
			return err
		}

		for i, t := range batch {
			if err := s.pushOne(ctx, impl, t); err != nil {
				return fmt.Errorf("push entry %d (%s): %w", i, t.Asset, err)
			}
		}
		return nil
	})
}

func (s *Service) pushOne(ctx context.Context, impl domain.Strategy, t Transfer) error {
	strategy := impl.Address()

	// Checks
	p, err := s.repo.GetPosition(ctx, strategy, t.Asset)
	if err != nil {
		return err
	}
	if !p.Listed {
		return fmt.Errorf("strategy %s asset %s: %w", strategy, t.Asset, domain.ErrUnknownRight)
	}
	newDebt := p.Debt.Add(t.Amount)
	if newDebt.GT(p.Cap) {
		return fmt.Errorf("debt %s + %s exceeds cap %s: %w", p.Debt, t.Amount, p.Cap, domain.ErrCapExceeded)
	}
	poolBalance, err := s.book.BalanceOf(ctx, t.Asset, s.cfg.Pool)
	if err != nil {
		return err
	}
	if poolBalance.LT(t.Amount) {
		return fmt.Errorf("pool holds %s, needs %s: %w", poolBalance, t.Amount, domain.ErrInsufficientPoolBalance)
	}

	// Effects
	p.Debt = newDebt
	if err := s.repo.SavePosition(ctx, p); err != nil {
		return err
	}

	// Interactions
	if err := s.book.Transfer(ctx, t.Asset, s.cfg.Pool, strategy, t.Amount); err != nil {
		return fmt.Errorf("failed to fund strategy: %w", err)
	}
	if err := impl.Deposit(ctx, s.cfg.Address, t.Asset, t.Amount, t.Flag, t.Aux); err != nil {
		return strategyError(strategy, "deposit", err)
	}
	reported, err := impl.InvestedBalance(ctx, t.Asset)
	if err != nil {
		return strategyError(strategy, "balance report", err)
	}

	// Baseline from the fresh report, on a record re-read after the external calls
	p, err = s.repo.GetPosition(ctx, strategy, t.Asset)
	if err != nil {
		return err
	}
	p.LastBalance = reported
	if err := s.repo.SavePosition(ctx, p); err != nil {
		return err
	}

	s.log.Info().
		Str("strategy", strategy.String()).
		Str("asset", t.Asset.String()).
		Str("amount", t.Amount.String()).
		Str("debt", p.Debt.String()).
		Str("last_balance", p.LastBalance.String()).
		Msg("Pushed")

	return s.events.Emit(ctx, module, &events.PushedData{
		Strategy: strategy,
		Asset:    t.Asset,
		Amount:   t.Amount,
		Flag:     t.Flag,
		Debt:     p.Debt,
	})
}

// Pull has strategy divest and send funds to each entry's recipient, then
// reconciles what the strategy still reports against its baseline. Pulls are
// allowed on revoked rights so that remaining debt can be wound down.
func (s *Service) Pull(ctx context.Context, caller, strategy domain.Address, batch []Withdrawal) (*events.Receipt, error) {
	defer utils.OperationTimer("ledger_pull", s.log)()

	if len(batch) == 0 {
		return nil, fmt.Errorf("empty pull: %w", domain.ErrInvalidBatch)
	}
	for i, w := range batch {
		if w.Amount.IsNil() || !w.Amount.IsPositive() {
			return nil, fmt.Errorf("pull entry %d: %w", i, domain.ErrInvalidAmount)
		}
		if w.Recipient.IsZero() {
			return nil, fmt.Errorf("pull entry %d recipient: %w", i, domain.ErrInvalidAddress)
		}
	}

	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		if err := s.requireGovernor(ctx, caller); err != nil {
			return err
		}
		if err := s.requireRegistered(ctx, strategy); err != nil {
			return err
		}
		impl, err := s.strategy(strategy)
		if err != nil {
			return err
		}

		for i, w := range batch {
			if err := s.pullOne(ctx, impl, w); err != nil {
				return fmt.Errorf("pull entry %d (%s): %w", i, w.Asset, err)
			}
		}
		return nil
	})
}

func (s *Service) pullOne(ctx context.Context, impl domain.Strategy, w Withdrawal) error {
	strategy := impl.Address()

	// Checks
	p, err := s.repo.GetPosition(ctx, strategy, w.Asset)
	if err != nil {
		return err
	}
	if !p.exists {
		return fmt.Errorf("strategy %s asset %s: %w", strategy, w.Asset, domain.ErrUnknownRight)
	}
	baseline := p.LastBalance

	// Effects: amounts beyond the outstanding debt realize gains, never negative debt
	p.Debt = p.Debt.Sub(sdkmath.MinInt(w.Amount, p.Debt))
	if err := s.repo.SavePosition(ctx, p); err != nil {
		return err
	}

	// Interactions
	sent, err := impl.Withdraw(ctx, s.cfg.Address, w.Asset, w.Amount, w.Flag, w.Recipient, w.Aux)
	if err != nil {
		return strategyError(strategy, "withdraw", err)
	}
	remaining, err := impl.InvestedBalance(ctx, w.Asset)
	if err != nil {
		return strategyError(strategy, "balance report", err)
	}

	// Reconciliation
	p, err = s.repo.GetPosition(ctx, strategy, w.Asset)
	if err != nil {
		return err
	}
	delta := reconcileDelta(remaining, baseline, w.Amount)
	p.ProtocolGains, p.ProtocolDebts = applyDelta(p.ProtocolGains, p.ProtocolDebts, delta)
	p.LastBalance = remaining
	if err := s.repo.SavePosition(ctx, p); err != nil {
		return err
	}

	s.log.Info().
		Str("strategy", strategy.String()).
		Str("asset", w.Asset.String()).
		Str("amount", w.Amount.String()).
		Str("sent", sent.String()).
		Str("recipient", w.Recipient.String()).
		Str("delta", delta.String()).
		Str("debt", p.Debt.String()).
		Msg("Pulled")

	return s.events.Emit(ctx, module, &events.PulledData{
		Strategy:      strategy,
		Asset:         w.Asset,
		Amount:        w.Amount,
		Sent:          sent,
		Recipient:     w.Recipient,
		Flag:          w.Flag,
		Debt:          p.Debt,
		ProtocolGains: p.ProtocolGains,
		ProtocolDebts: p.ProtocolDebts,
	})
}

func (s *Service) requirePushable(ctx context.Context, strategy domain.Address) (domain.Strategy, error) {
	registered, whitelisted, err := s.repo.GetStrategy(ctx, strategy)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, fmt.Errorf("strategy %s: %w", strategy, domain.ErrUnknownStrategy)
	}
	if !whitelisted {
		return nil, fmt.Errorf("strategy %s: %w", strategy, domain.ErrStrategyNotApproved)
	}
	return s.strategy(strategy)
}
