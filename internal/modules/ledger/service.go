package ledger

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/token"
	"github.com/rs/zerolog"
)

const module = "ledger"

// Governance answers whether an address holds the Governor role
type Governance interface {
	IsGovernor(ctx context.Context, addr domain.Address) (bool, error)
}

// Config identifies the ledger and the pool it allocates from
type Config struct {
	// Address is the ledger's own handle, the only caller strategies accept
	Address domain.Address
	// Pool holds the idle reserves pushed to strategies and receives nothing back implicitly
	Pool domain.Address
}

// Service is the allocation ledger
type Service struct {
	cfg        Config
	repo       *Repository
	rt         *database.Runtime
	governance Governance
	resolver   domain.StrategyResolver
	book       *token.Book
	events     *events.Manager
	log        zerolog.Logger
}

// NewService creates the allocation ledger
func NewService(
	cfg Config,
	repo *Repository,
	rt *database.Runtime,
	governance Governance,
	resolver domain.StrategyResolver,
	book *token.Book,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		repo:       repo,
		rt:         rt,
		governance: governance,
		resolver:   resolver,
		book:       book,
		events:     eventManager,
		log:        log.With().Str("service", "ledger").Logger(),
	}
}

var _ domain.Approver = (*Service)(nil)

// Address returns the ledger's own handle
func (s *Service) Address() domain.Address {
	return s.cfg.Address
}

// Pool returns the reserve pool address
func (s *Service) Pool() domain.Address {
	return s.cfg.Pool
}

// AddStrategy registers and whitelists the strategy module deployed at strategy
func (s *Service) AddStrategy(ctx context.Context, caller, strategy domain.Address) (*events.Receipt, error) {
	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		if err := s.requireGovernor(ctx, caller); err != nil {
			return err
		}
		if _, ok := s.resolver.Resolve(strategy); !ok {
			return fmt.Errorf("strategy %s: %w", strategy, domain.ErrModuleNotDeployed)
		}

		registered, _, err := s.repo.GetStrategy(ctx, strategy)
		if err != nil {
			return err
		}
		if registered {
			return fmt.Errorf("strategy %s: %w", strategy, domain.ErrAlreadyRegistered)
		}

		if err := s.repo.InsertStrategy(ctx, strategy); err != nil {
			return err
		}

		s.log.Info().Str("strategy", strategy.String()).Msg("Strategy added")
		return s.events.Emit(ctx, module, &events.StrategyAddedData{Strategy: strategy})
	})
}

// RemoveStrategy unregisters a strategy that holds no rights and owes no debt
func (s *Service) RemoveStrategy(ctx context.Context, caller, strategy domain.Address) (*events.Receipt, error) {
	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		if err := s.requireGovernor(ctx, caller); err != nil {
			return err
		}
		if err := s.requireRegistered(ctx, strategy); err != nil {
			return err
		}

		positions, err := s.repo.ListPositions(ctx, strategy)
		if err != nil {
			return err
		}
		for _, p := range positions {
			if p.Listed || p.Debt.IsPositive() {
				return fmt.Errorf("strategy %s asset %s: %w", strategy, p.Asset, domain.ErrRightsOutstanding)
			}
		}

		if err := s.repo.DeleteStrategy(ctx, strategy); err != nil {
			return err
		}

		s.log.Info().Str("strategy", strategy.String()).Msg("Strategy removed")
		return s.events.Emit(ctx, module, &events.StrategyRemovedData{Strategy: strategy})
	})
}

// AddAssetRight grants strategy a right over asset with the given cap, or updates the cap of an existing right
func (s *Service) AddAssetRight(ctx context.Context, caller, strategy, asset domain.Address, capAmount sdkmath.Int) (*events.Receipt, error) {
	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		if err := s.requireGovernor(ctx, caller); err != nil {
			return err
		}
		if err := s.requireRegistered(ctx, strategy); err != nil {
			return err
		}
		if capAmount.IsNil() || !capAmount.IsPositive() {
			return fmt.Errorf("cap for %s/%s: %w", strategy, asset, domain.ErrInvalidCap)
		}
		if _, err := s.book.Asset(ctx, asset); err != nil {
			return err
		}
		impl, err := s.strategy(strategy)
		if err != nil {
			return err
		}

		p, err := s.repo.GetPosition(ctx, strategy, asset)
		if err != nil {
			return err
		}
		newlyListed := !p.Listed
		p.Cap = capAmount
		p.Listed = true
		if err := s.repo.SavePosition(ctx, p); err != nil {
			return err
		}

		if newlyListed {
			if err := impl.OnRightGranted(ctx, s.cfg.Address, asset); err != nil {
				return strategyError(strategy, "right grant", err)
			}
			if err := s.events.Emit(ctx, module, &events.RightAddedData{Strategy: strategy, Asset: asset}); err != nil {
				return err
			}
		}

		s.log.Info().
			Str("strategy", strategy.String()).
			Str("asset", asset.String()).
			Str("cap", capAmount.String()).
			Bool("new", newlyListed).
			Msg("Asset right set")
		return s.events.Emit(ctx, module, &events.CapUpdatedData{Strategy: strategy, Asset: asset, Cap: capAmount})
	})
}

// RemoveAssetRight revokes strategy's right over asset. Outstanding debt stays
// on the books as a receivable that later pulls can wind down.
func (s *Service) RemoveAssetRight(ctx context.Context, caller, strategy, asset domain.Address) (*events.Receipt, error) {
	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		if err := s.requireGovernor(ctx, caller); err != nil {
			return err
		}

		p, err := s.repo.GetPosition(ctx, strategy, asset)
		if err != nil {
			return err
		}
		if !p.Listed {
			return fmt.Errorf("strategy %s asset %s: %w", strategy, asset, domain.ErrUnknownRight)
		}
		impl, err := s.strategy(strategy)
		if err != nil {
			return err
		}

		p.Cap = sdkmath.ZeroInt()
		p.Listed = false
		if err := s.repo.SavePosition(ctx, p); err != nil {
			return err
		}

		if err := impl.OnRightRevoked(ctx, s.cfg.Address, asset); err != nil {
			return strategyError(strategy, "right revoke", err)
		}

		s.log.Info().
			Str("strategy", strategy.String()).
			Str("asset", asset.String()).
			Str("outstanding_debt", p.Debt.String()).
			Msg("Asset right removed")

		if err := s.events.Emit(ctx, module, &events.RightRemovedData{Strategy: strategy, Asset: asset}); err != nil {
			return err
		}
		return s.events.Emit(ctx, module, &events.CapUpdatedData{Strategy: strategy, Asset: asset, Cap: sdkmath.ZeroInt()})
	})
}

// ToggleCaller flips whether who may change strategy's allowances
func (s *Service) ToggleCaller(ctx context.Context, caller, strategy, who domain.Address) (*events.Receipt, error) {
	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		if err := s.requireGovernor(ctx, caller); err != nil {
			return err
		}
		if err := s.requireRegistered(ctx, strategy); err != nil {
			return err
		}
		if who.IsZero() {
			return fmt.Errorf("caller to toggle: %w", domain.ErrInvalidAddress)
		}

		current, err := s.repo.IsCallerWhitelisted(ctx, strategy, who)
		if err != nil {
			return err
		}
		if err := s.repo.SetCallerWhitelisted(ctx, strategy, who, !current); err != nil {
			return err
		}

		s.log.Info().
			Str("strategy", strategy.String()).
			Str("caller", who.String()).
			Bool("whitelisted", !current).
			Msg("Caller toggled")
		return s.events.Emit(ctx, module, &events.CallerToggledData{Strategy: strategy, Caller: who, Whitelisted: !current})
	})
}

// ChangeAllowance forwards an allowance change to the strategy on behalf of caller
func (s *Service) ChangeAllowance(ctx context.Context, caller, strategy domain.Address, changes []domain.AllowanceChange) (*events.Receipt, error) {
	impl, err := s.strategy(strategy)
	if err != nil {
		return nil, err
	}
	return events.Execute(ctx, s.rt, func(ctx context.Context) error {
		return impl.ChangeAllowance(ctx, caller, changes)
	})
}

// IsGovernor reports whether addr holds the Governor role
func (s *Service) IsGovernor(ctx context.Context, addr domain.Address) (bool, error) {
	return s.governance.IsGovernor(ctx, addr)
}

// IsCallerWhitelisted reports whether caller may change strategy's allowances
func (s *Service) IsCallerWhitelisted(ctx context.Context, strategy, caller domain.Address) (bool, error) {
	return s.repo.IsCallerWhitelisted(ctx, strategy, caller)
}

// Strategies returns registered strategies in registration order
func (s *Service) Strategies(ctx context.Context) ([]StrategyInfo, error) {
	return s.repo.ListStrategies(ctx)
}

// StrategyAssets returns the assets strategy holds rights over, in grant order
func (s *Service) StrategyAssets(ctx context.Context, strategy domain.Address) ([]domain.Address, error) {
	if err := s.requireRegistered(ctx, strategy); err != nil {
		return nil, err
	}
	return s.repo.ListedAssets(ctx, strategy)
}

// Callers returns the callers whitelisted for strategy
func (s *Service) Callers(ctx context.Context, strategy domain.Address) ([]domain.Address, error) {
	return s.repo.ListCallers(ctx, strategy)
}

// Position returns every accounting figure of a pair
func (s *Service) Position(ctx context.Context, strategy, asset domain.Address) (*Position, error) {
	return s.repo.GetPosition(ctx, strategy, asset)
}

// Positions returns every accounting record of strategy
func (s *Service) Positions(ctx context.Context, strategy domain.Address) ([]*Position, error) {
	return s.repo.ListPositions(ctx, strategy)
}

// Cap returns the cap of a pair, 0 when no right is granted
func (s *Service) Cap(ctx context.Context, strategy, asset domain.Address) (sdkmath.Int, error) {
	return s.figure(ctx, strategy, asset, func(p *Position) sdkmath.Int { return p.Cap })
}

// Debt returns the outstanding principal of a pair
func (s *Service) Debt(ctx context.Context, strategy, asset domain.Address) (sdkmath.Int, error) {
	return s.figure(ctx, strategy, asset, func(p *Position) sdkmath.Int { return p.Debt })
}

// LastBalance returns the invested balance recorded by the last push or pull
func (s *Service) LastBalance(ctx context.Context, strategy, asset domain.Address) (sdkmath.Int, error) {
	return s.figure(ctx, strategy, asset, func(p *Position) sdkmath.Int { return p.LastBalance })
}

// ProtocolGains returns the recognized surplus of a pair
func (s *Service) ProtocolGains(ctx context.Context, strategy, asset domain.Address) (sdkmath.Int, error) {
	return s.figure(ctx, strategy, asset, func(p *Position) sdkmath.Int { return p.ProtocolGains })
}

// ProtocolDebts returns the recognized shortfall of a pair
func (s *Service) ProtocolDebts(ctx context.Context, strategy, asset domain.Address) (sdkmath.Int, error) {
	return s.figure(ctx, strategy, asset, func(p *Position) sdkmath.Int { return p.ProtocolDebts })
}

// IsWhitelisted reports whether strategy is registered and whitelisted
func (s *Service) IsWhitelisted(ctx context.Context, strategy domain.Address) (bool, error) {
	_, whitelisted, err := s.repo.GetStrategy(ctx, strategy)
	return whitelisted, err
}

// IsAssetWhitelisted reports whether strategy currently holds a right over asset
func (s *Service) IsAssetWhitelisted(ctx context.Context, strategy, asset domain.Address) (bool, error) {
	p, err := s.repo.GetPosition(ctx, strategy, asset)
	if err != nil {
		return false, err
	}
	return p.IsAssetWhitelisted(), nil
}

// PoolBalance returns the pool's idle balance of asset
func (s *Service) PoolBalance(ctx context.Context, asset domain.Address) (sdkmath.Int, error) {
	return s.book.BalanceOf(ctx, asset, s.cfg.Pool)
}

func (s *Service) figure(ctx context.Context, strategy, asset domain.Address, pick func(*Position) sdkmath.Int) (sdkmath.Int, error) {
	p, err := s.repo.GetPosition(ctx, strategy, asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return pick(p), nil
}

func (s *Service) requireGovernor(ctx context.Context, caller domain.Address) error {
	ok, err := s.governance.IsGovernor(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a governor: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

func (s *Service) requireRegistered(ctx context.Context, strategy domain.Address) error {
	registered, _, err := s.repo.GetStrategy(ctx, strategy)
	if err != nil {
		return err
	}
	if !registered {
		return fmt.Errorf("strategy %s: %w", strategy, domain.ErrUnknownStrategy)
	}
	return nil
}

func (s *Service) strategy(addr domain.Address) (domain.Strategy, error) {
	impl, ok := s.resolver.Resolve(addr)
	if !ok {
		return nil, fmt.Errorf("strategy %s: %w", addr, domain.ErrModuleNotDeployed)
	}
	return impl, nil
}

// strategyError keeps a strategy's own failure reasons matchable and tags
// anything else as a failed external call
func strategyError(strategy domain.Address, op string, err error) error {
	if errors.Is(err, domain.ErrExternalCallFailed) ||
		errors.Is(err, domain.ErrInsufficientStrategyBalance) ||
		errors.Is(err, domain.ErrNotLedger) {
		return fmt.Errorf("strategy %s %s: %w", strategy, op, err)
	}
	return fmt.Errorf("strategy %s %s: %w", strategy, op, errors.Join(domain.ErrExternalCallFailed, err))
}
