package di

import (
	"context"
	"fmt"

	"github.com/aristath/treasury/internal/clients/venue"
	"github.com/aristath/treasury/internal/config"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/metrics"
	"github.com/aristath/treasury/internal/modules/access"
	"github.com/aristath/treasury/internal/modules/ledger"
	"github.com/aristath/treasury/internal/modules/reporting"
	"github.com/aristath/treasury/internal/modules/strategies"
	"github.com/aristath/treasury/internal/modules/strategies/lending"
	"github.com/aristath/treasury/internal/modules/token"
	"github.com/aristath/treasury/internal/reliability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// InitializeServices creates every domain service on top of the container's database.
// Order matters: the ledger exists before the strategy that names it as approver,
// and the strategy is deployed before anything resolves it.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	db := container.DB
	rt := container.Runtime

	// Audit trail
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(events.NewRepository(db, log), container.EventBus, log)

	// Metrics observe committed records only
	container.MetricsRegistry = prometheus.NewRegistry()
	container.MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	container.Metrics = metrics.New(container.MetricsRegistry)
	container.unsubscribe = append(container.unsubscribe, container.Metrics.Subscribe(container.EventBus))

	// Roles
	container.Roles = access.NewRegistry(access.NewRepository(db, log), rt, container.EventManager, log)
	if err := container.Roles.Bootstrap(ctx, cfg.Governors, cfg.Guardians); err != nil {
		return err
	}

	// Token book and lending venue
	container.Book = token.NewBook(rt, log)
	container.Venue = venue.NewSimulated(cfg.VenueAddress, rt, container.Book, log)

	if err := registerAssets(ctx, container, cfg.Assets, cfg.VenueSupplyAPRBps, log); err != nil {
		return fmt.Errorf("failed to register assets: %w", err)
	}
	if cfg.DevMode {
		if err := seedDevAssets(ctx, container, cfg, log); err != nil {
			return fmt.Errorf("failed to seed dev assets: %w", err)
		}
	}

	// Ledger, then the strategy that trusts it
	container.Strategies = strategies.NewRegistry()
	container.Ledger = ledger.NewService(
		ledger.Config{Address: cfg.LedgerAddress, Pool: cfg.PoolAddress},
		ledger.NewRepository(db, log), rt, container.Roles, container.Strategies,
		container.Book, container.EventManager, log,
	)

	base := strategies.NewBase(strategies.BaseConfig{
		Address:  cfg.StrategyAddress,
		Ledger:   container.Ledger.Address(),
		Approver: container.Ledger,
		Book:     container.Book,
		Events:   container.EventManager,
		Runtime:  rt,
	}, log)
	container.Lending = lending.New(base, container.Venue, lending.NewInstrumentRepository(db, log))
	container.Strategies.Deploy(container.Lending)

	// Reporting
	container.Reporting = reporting.NewService(container.Ledger, container.Strategies,
		reporting.NewRepository(db, log), rt, log)

	// Archival
	if cfg.Archive.Enabled() {
		uploader, err := reliability.NewS3Uploader(ctx, reliability.S3Config{
			Endpoint:        cfg.Archive.Endpoint,
			Region:          cfg.Archive.Region,
			Bucket:          cfg.Archive.Bucket,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		}, log)
		if err != nil {
			return err
		}
		container.Archiver = reliability.NewAuditArchiver(rt, container.EventManager.Repository(),
			uploader, cfg.Archive.Prefix, cfg.Archive.BatchSize, log)
	}

	log.Info().
		Str("ledger", cfg.LedgerAddress.String()).
		Str("pool", cfg.PoolAddress.String()).
		Str("strategy", cfg.StrategyAddress.String()).
		Bool("archive", container.Archiver != nil).
		Msg("Services initialized")
	return nil
}

// devAssets are registered, listed on the venue and funded in dev mode
var devAssets = []struct {
	asset  domain.Asset
	supply int64 // whole units minted to an empty pool
}{
	{domain.Asset{Address: "0xusdc", Symbol: "USDC", Decimals: 6}, 10_000_000},
	{domain.Asset{Address: "0xweth", Symbol: "WETH", Decimals: 18}, 5_000},
	{domain.Asset{Address: "0xdai", Symbol: "DAI", Decimals: 18}, 10_000_000},
}

// registerAssets makes assets known to the token book and lists them on the venue.
// Re-registering refreshes metadata and the market APR.
func registerAssets(ctx context.Context, container *Container, assets []domain.Asset, aprBps int64, log zerolog.Logger) error {
	for _, asset := range assets {
		if err := container.Book.RegisterAsset(ctx, asset); err != nil {
			return err
		}
		if _, err := container.Venue.ListMarket(ctx, asset.Address, aprBps); err != nil {
			return err
		}
		log.Debug().Str("asset", asset.Address.String()).Str("symbol", asset.Symbol).Msg("Asset registered")
	}
	return nil
}

func seedDevAssets(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	for _, dev := range devAssets {
		if err := registerAssets(ctx, container, []domain.Asset{dev.asset}, cfg.VenueSupplyAPRBps, log); err != nil {
			return err
		}

		balance, err := container.Book.BalanceOf(ctx, dev.asset.Address, cfg.PoolAddress)
		if err != nil {
			return err
		}
		if !balance.IsZero() {
			continue
		}
		amount := domain.Units(dev.supply, dev.asset.Decimals)
		if err := container.Book.Mint(ctx, dev.asset.Address, cfg.PoolAddress, amount); err != nil {
			return err
		}
		log.Info().Str("asset", dev.asset.Symbol).Str("amount", amount.String()).Msg("Dev pool funded")
	}
	return nil
}
