package ledger

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/clients/venue"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/access"
	"github.com/aristath/treasury/internal/modules/strategies"
	"github.com/aristath/treasury/internal/modules/strategies/lending"
	"github.com/aristath/treasury/internal/modules/token"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// treasury wires a complete ledger over a simulated venue for tests
type treasury struct {
	rt       *database.Runtime
	ledger   *Service
	book     *token.Book
	venue    *venue.Simulated
	lending  *lending.Strategy
	registry *strategies.Registry
	events   *events.Manager
	clock    *testingpkg.FakeClock
}

func setupTreasury(t *testing.T) *treasury {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	rt := testingpkg.NewTestRuntime(t)
	manager := events.NewManager(events.NewRepository(rt.DB(), log), events.NewBus(), log)
	roles := access.NewRegistry(access.NewRepository(rt.DB(), log), rt, manager, log)
	require.NoError(t, roles.Bootstrap(ctx, []domain.Address{testingpkg.Governor}, []domain.Address{testingpkg.Guardian}))

	book := token.NewBook(rt, log)
	for _, asset := range testingpkg.NewAssetFixtures() {
		require.NoError(t, book.RegisterAsset(ctx, asset))
	}

	clock := testingpkg.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	v := venue.NewSimulated(testingpkg.Venue, rt, book, log, venue.WithClock(clock.Now))
	_, err := v.ListMarket(ctx, testingpkg.USDC, 1000)
	require.NoError(t, err)
	_, err = v.ListMarket(ctx, testingpkg.WETH, 1000)
	require.NoError(t, err)

	registry := strategies.NewRegistry()
	ledger := NewService(
		Config{Address: testingpkg.Ledger, Pool: testingpkg.Pool},
		NewRepository(rt.DB(), log), rt, roles, registry, book, manager, log,
	)

	base := strategies.NewBase(strategies.BaseConfig{
		Address:  testingpkg.Strategy,
		Ledger:   ledger.Address(),
		Approver: ledger,
		Book:     book,
		Events:   manager,
		Runtime:  rt,
	}, log)
	lendingStrategy := lending.New(base, v, lending.NewInstrumentRepository(rt.DB(), log))
	registry.Deploy(lendingStrategy)

	require.NoError(t, book.Mint(ctx, testingpkg.USDC, testingpkg.Pool, domain.Units(1_000_000, 6)))
	require.NoError(t, book.Mint(ctx, testingpkg.WETH, testingpkg.Pool, domain.Units(1_000, 18)))

	return &treasury{
		rt:       rt,
		ledger:   ledger,
		book:     book,
		venue:    v,
		lending:  lendingStrategy,
		registry: registry,
		events:   manager,
		clock:    clock,
	}
}

// grant registers the lending strategy and grants it a right over asset
func (tr *treasury) grant(t *testing.T, asset domain.Address, capAmount sdkmath.Int) {
	t.Helper()
	ctx := context.Background()
	if ok, _ := tr.ledger.IsWhitelisted(ctx, testingpkg.Strategy); !ok {
		_, err := tr.ledger.AddStrategy(ctx, testingpkg.Governor, testingpkg.Strategy)
		require.NoError(t, err)
	}
	_, err := tr.ledger.AddAssetRight(ctx, testingpkg.Governor, testingpkg.Strategy, asset, capAmount)
	require.NoError(t, err)
}

func (tr *treasury) balance(t *testing.T, asset, holder domain.Address) sdkmath.Int {
	t.Helper()
	b, err := tr.book.BalanceOf(context.Background(), asset, holder)
	require.NoError(t, err)
	return b
}

func (tr *treasury) position(t *testing.T, strategy, asset domain.Address) *Position {
	t.Helper()
	p, err := tr.ledger.Position(context.Background(), strategy, asset)
	require.NoError(t, err)
	return p
}

func (tr *treasury) auditCount(t *testing.T) int64 {
	t.Helper()
	id, err := tr.events.Repository().LastID(context.Background())
	require.NoError(t, err)
	return id
}

func push(asset domain.Address, amount sdkmath.Int) []Transfer {
	return []Transfer{{Asset: asset, Amount: amount}}
}

func pull(asset domain.Address, amount sdkmath.Int, recipient domain.Address) []Withdrawal {
	return []Withdrawal{{Asset: asset, Amount: amount, Recipient: recipient}}
}
