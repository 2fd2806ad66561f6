// Package harness assembles a complete treasury over a simulated venue for
// tests of the packages that sit above the ledger.
package harness

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
	"github.com/aristath/treasury/internal/modules/ledger"
	"github.com/aristath/treasury/internal/modules/strategies"
	"github.com/aristath/treasury/internal/modules/strategies/lending"
	"github.com/aristath/treasury/internal/modules/token"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Treasury is a wired ledger with one lending strategy deployed at testingpkg.Strategy
type Treasury struct {
	Runtime  *database.Runtime
	Events   *events.Manager
	Roles    *access.Registry
	Book     *token.Book
	Venue    *venue.Simulated
	Registry *strategies.Registry
	Ledger   *ledger.Service
	Lending  *lending.Strategy
	Clock    *testingpkg.FakeClock
}

// New builds a treasury whose pool holds 1,000,000 USDC and 1,000 WETH.
// Both assets have a 10% APR venue market; DAI is registered but has none.
func New(t *testing.T) *Treasury {
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
	for _, asset := range []domain.Address{testingpkg.USDC, testingpkg.WETH} {
		_, err := v.ListMarket(ctx, asset, 1000)
		require.NoError(t, err)
	}

	registry := strategies.NewRegistry()
	service := ledger.NewService(
		ledger.Config{Address: testingpkg.Ledger, Pool: testingpkg.Pool},
		ledger.NewRepository(rt.DB(), log), rt, roles, registry, book, manager, log,
	)
	base := strategies.NewBase(strategies.BaseConfig{
		Address:  testingpkg.Strategy,
		Ledger:   service.Address(),
		Approver: service,
		Book:     book,
		Events:   manager,
		Runtime:  rt,
	}, log)
	lendingStrategy := lending.New(base, v, lending.NewInstrumentRepository(rt.DB(), log))
	registry.Deploy(lendingStrategy)

	require.NoError(t, book.Mint(ctx, testingpkg.USDC, testingpkg.Pool, domain.Units(1_000_000, 6)))
	require.NoError(t, book.Mint(ctx, testingpkg.WETH, testingpkg.Pool, domain.Units(1_000, 18)))

	return &Treasury{
		Runtime:  rt,
		Events:   manager,
		Roles:    roles,
		Book:     book,
		Venue:    v,
		Registry: registry,
		Ledger:   service,
		Lending:  lendingStrategy,
		Clock:    clock,
	}
}

// Grant registers the lending strategy if needed and grants it a right over asset
func (tr *Treasury) Grant(t *testing.T, asset domain.Address, capAmount sdkmath.Int) {
	t.Helper()
	ctx := context.Background()
	if ok, _ := tr.Ledger.IsWhitelisted(ctx, testingpkg.Strategy); !ok {
		_, err := tr.Ledger.AddStrategy(ctx, testingpkg.Governor, testingpkg.Strategy)
		require.NoError(t, err)
	}
	_, err := tr.Ledger.AddAssetRight(ctx, testingpkg.Governor, testingpkg.Strategy, asset, capAmount)
	require.NoError(t, err)
}

// Push moves amount of asset from the pool into the lending strategy
func (tr *Treasury) Push(t *testing.T, asset domain.Address, amount sdkmath.Int) {
	t.Helper()
	_, err := tr.Ledger.Push(context.Background(), testingpkg.Governor, testingpkg.Strategy,
		[]ledger.Transfer{{Asset: asset, Amount: amount}})
	require.NoError(t, err)
}

// Pull divests amount of asset from the lending strategy back to the pool
func (tr *Treasury) Pull(t *testing.T, asset domain.Address, amount sdkmath.Int) {
	t.Helper()
	_, err := tr.Ledger.Pull(context.Background(), testingpkg.Governor, testingpkg.Strategy,
		[]ledger.Withdrawal{{Asset: asset, Amount: amount, Recipient: testingpkg.Pool}})
	require.NoError(t, err)
}
