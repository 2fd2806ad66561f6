package venue

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/modules/token"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type venueFixture struct {
	venue *Simulated
	book  *token.Book
	clock *testingpkg.FakeClock
}

func setupVenue(t *testing.T) venueFixture {
	t.Helper()
	ctx := context.Background()
	rt := testingpkg.NewTestRuntime(t)
	book := token.NewBook(rt, zerolog.Nop())
	for _, asset := range testingpkg.NewAssetFixtures() {
		require.NoError(t, book.RegisterAsset(ctx, asset))
	}
	clock := testingpkg.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	v := NewSimulated(testingpkg.Venue, rt, book, zerolog.Nop(), WithClock(clock.Now))

	_, err := v.ListMarket(ctx, testingpkg.USDC, 1000)
	require.NoError(t, err)

	return venueFixture{venue: v, book: book, clock: clock}
}

func (f venueFixture) fund(t *testing.T, holder domain.Address, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.book.Mint(ctx, testingpkg.USDC, holder, sdkmath.NewInt(amount)))
	require.NoError(t, f.book.Approve(ctx, testingpkg.USDC, holder, f.venue.Address(), sdkmath.NewInt(amount)))
}

func TestListMarket_Instruments(t *testing.T) {
	f := setupVenue(t)
	ctx := context.Background()

	inst, err := f.venue.Instruments(ctx, testingpkg.USDC)
	require.NoError(t, err)
	assert.NotEmpty(t, inst.SupplyToken)
	assert.NotEqual(t, inst.SupplyToken, inst.BorrowToken)

	_, err = f.venue.Instruments(ctx, testingpkg.DAI)
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)

	_, err = f.venue.ListMarket(ctx, "0xnope", 100)
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)
}

func TestSupply_ConsumesExactAllowance(t *testing.T) {
	f := setupVenue(t)
	ctx := context.Background()
	f.fund(t, testingpkg.Strategy, 1000)

	require.NoError(t, f.venue.Supply(ctx, testingpkg.Strategy, testingpkg.USDC, sdkmath.NewInt(1000), true))

	allowance, err := f.book.Allowance(ctx, testingpkg.USDC, testingpkg.Strategy, testingpkg.Venue)
	require.NoError(t, err)
	assert.True(t, allowance.IsZero())

	bal, err := f.venue.BalanceOfUnderlying(ctx, testingpkg.USDC, testingpkg.Strategy)
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.String())

	collateral, err := f.venue.IsCollateral(ctx, testingpkg.USDC, testingpkg.Strategy)
	require.NoError(t, err)
	assert.True(t, collateral)

	require.NoError(t, f.venue.ExitMarket(ctx, testingpkg.Strategy, testingpkg.USDC))
	collateral, err = f.venue.IsCollateral(ctx, testingpkg.USDC, testingpkg.Strategy)
	require.NoError(t, err)
	assert.False(t, collateral)
}

func TestSupply_WithoutAllowanceFails(t *testing.T) {
	f := setupVenue(t)
	ctx := context.Background()
	require.NoError(t, f.book.Mint(ctx, testingpkg.USDC, testingpkg.Strategy, sdkmath.NewInt(1000)))

	err := f.venue.Supply(ctx, testingpkg.Strategy, testingpkg.USDC, sdkmath.NewInt(1000), false)
	assert.ErrorIs(t, err, domain.ErrInsufficientAllowance)

	bal, err := f.venue.BalanceOfUnderlying(ctx, testingpkg.USDC, testingpkg.Strategy)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestAccrual_OneYearAtTenPercent(t *testing.T) {
	f := setupVenue(t)
	ctx := context.Background()
	f.fund(t, testingpkg.Strategy, 1000)
	require.NoError(t, f.venue.Supply(ctx, testingpkg.Strategy, testingpkg.USDC, sdkmath.NewInt(1000), false))

	f.clock.Advance(SecondsPerYear * time.Second)

	bal, err := f.venue.BalanceOfUnderlying(ctx, testingpkg.USDC, testingpkg.Strategy)
	require.NoError(t, err)
	assert.Equal(t, "1100", bal.String())

	sent, err := f.venue.Redeem(ctx, testingpkg.Strategy, testingpkg.USDC, sdkmath.NewInt(1100), testingpkg.Recipient)
	require.NoError(t, err)
	assert.Equal(t, "1100", sent.String())

	received, err := f.book.BalanceOf(ctx, testingpkg.USDC, testingpkg.Recipient)
	require.NoError(t, err)
	assert.Equal(t, "1100", received.String())

	reserve, err := f.book.BalanceOf(ctx, testingpkg.USDC, testingpkg.Venue)
	require.NoError(t, err)
	assert.True(t, reserve.IsZero())

	bal, err = f.venue.BalanceOfUnderlying(ctx, testingpkg.USDC, testingpkg.Strategy)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestRedeem_MoreThanPositionFails(t *testing.T) {
	f := setupVenue(t)
	ctx := context.Background()
	f.fund(t, testingpkg.Strategy, 500)
	require.NoError(t, f.venue.Supply(ctx, testingpkg.Strategy, testingpkg.USDC, sdkmath.NewInt(500), false))

	_, err := f.venue.Redeem(ctx, testingpkg.Strategy, testingpkg.USDC, sdkmath.NewInt(501), testingpkg.Recipient)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.venue.Redeem(ctx, testingpkg.Strategy, testingpkg.USDC, sdkmath.ZeroInt(), testingpkg.Recipient)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestMarkets(t *testing.T) {
	f := setupVenue(t)
	ctx := context.Background()
	f.fund(t, testingpkg.Keeper, 2000)
	require.NoError(t, f.venue.Supply(ctx, testingpkg.Keeper, testingpkg.USDC, sdkmath.NewInt(2000), false))

	markets, err := f.venue.Markets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, int64(1000), markets[0].AprBps)
	assert.Equal(t, "2000", markets[0].TotalSupply.String())
	assert.True(t, markets[0].SupplyIndex.Equal(Ray))
}
