package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/clients/venue"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPush(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))
	amount := domain.Units(100, 6)

	receipt, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, amount))
	require.NoError(t, err)
	pushed := receipt.OfType(events.Pushed)
	require.Len(t, pushed, 1)
	data := pushed[0].Data.(*events.PushedData)
	assert.True(t, data.Amount.Equal(amount))
	assert.True(t, data.Debt.Equal(amount))

	p := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	assert.True(t, p.Debt.Equal(amount))

	invested, err := tr.lending.InvestedBalance(ctx, testingpkg.USDC)
	require.NoError(t, err)
	assert.True(t, invested.Equal(amount))
	assert.True(t, p.LastBalance.Equal(invested))

	assert.True(t, tr.balance(t, testingpkg.USDC, testingpkg.Pool).Equal(domain.Units(999_900, 6)))
	assert.True(t, tr.balance(t, testingpkg.USDC, testingpkg.Strategy).IsZero(), "everything is supplied to the venue")

	// The venue approval is consumed exactly
	allowance, err := tr.book.Allowance(ctx, testingpkg.USDC, testingpkg.Strategy, testingpkg.Venue)
	require.NoError(t, err)
	assert.True(t, allowance.IsZero())
}

func TestPush_CollateralFlag(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.WETH, domain.Units(10, 18))

	batch := []Transfer{{Asset: testingpkg.WETH, Amount: domain.Units(1, 18), Flag: true}}
	_, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, batch)
	require.NoError(t, err)

	collateral, err := tr.venue.IsCollateral(ctx, testingpkg.WETH, testingpkg.Strategy)
	require.NoError(t, err)
	assert.True(t, collateral)

	// Draining the position with the flag set leaves the market
	_, err = tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy,
		[]Withdrawal{{Asset: testingpkg.WETH, Amount: domain.Units(1, 18), Flag: true, Recipient: testingpkg.Pool}})
	require.NoError(t, err)

	collateral, err = tr.venue.IsCollateral(ctx, testingpkg.WETH, testingpkg.Strategy)
	require.NoError(t, err)
	assert.False(t, collateral)
}

func TestPush_CapExceededLeavesStateUntouched(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(100, 6))
	before := tr.auditCount(t)

	receipt, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(101, 6)))
	assert.ErrorIs(t, err, domain.ErrCapExceeded)
	assert.Nil(t, receipt)

	p := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	assert.True(t, p.Debt.IsZero())
	assert.True(t, tr.balance(t, testingpkg.USDC, testingpkg.Pool).Equal(domain.Units(1_000_000, 6)))
	assert.Equal(t, before, tr.auditCount(t))

	// Exactly at the cap is fine
	_, err = tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(100, 6)))
	require.NoError(t, err)
}

func TestPush_Rejections(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(10_000_000, 6))

	tests := []struct {
		name     string
		caller   domain.Address
		strategy domain.Address
		batch    []Transfer
		want     error
	}{
		{"empty batch", testingpkg.Governor, testingpkg.Strategy, nil, domain.ErrInvalidBatch},
		{"zero amount", testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, sdkmath.ZeroInt()), domain.ErrInvalidAmount},
		{"negative amount", testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, sdkmath.NewInt(-1)), domain.ErrInvalidAmount},
		{"not a governor", testingpkg.Guardian, testingpkg.Strategy, push(testingpkg.USDC, sdkmath.NewInt(1)), domain.ErrUnauthorized},
		{"unknown strategy", testingpkg.Governor, "0xnowhere", push(testingpkg.USDC, sdkmath.NewInt(1)), domain.ErrUnknownStrategy},
		{"no right", testingpkg.Governor, testingpkg.Strategy, push(testingpkg.WETH, sdkmath.NewInt(1)), domain.ErrUnknownRight},
		{"pool too small", testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(1_000_001, 6)), domain.ErrInsufficientPoolBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.ledger.Push(ctx, tt.caller, tt.strategy, tt.batch)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPush_BatchIsAllOrNothing(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()

	mocked := testingpkg.NewMockStrategy("0xmock")
	tr.registry.Deploy(mocked)
	mocked.On("OnRightGranted", mock.Anything, testingpkg.Ledger, mock.Anything).Return(nil)

	_, err := tr.ledger.AddStrategy(ctx, testingpkg.Governor, "0xmock")
	require.NoError(t, err)
	for _, asset := range []domain.Address{testingpkg.USDC, testingpkg.WETH} {
		_, err = tr.ledger.AddAssetRight(ctx, testingpkg.Governor, "0xmock", asset, domain.Units(1000, 18))
		require.NoError(t, err)
	}

	mocked.On("Deposit", mock.Anything, testingpkg.Ledger, testingpkg.USDC, mock.Anything, false, mock.Anything).Return(nil)
	mocked.On("InvestedBalance", mock.Anything, testingpkg.USDC).Return(domain.Units(10, 6), nil)
	mocked.On("Deposit", mock.Anything, testingpkg.Ledger, testingpkg.WETH, mock.Anything, false, mock.Anything).
		Return(errors.New("venue paused"))

	before := tr.auditCount(t)
	batch := []Transfer{
		{Asset: testingpkg.USDC, Amount: domain.Units(10, 6)},
		{Asset: testingpkg.WETH, Amount: domain.Units(1, 18)},
	}
	_, err = tr.ledger.Push(ctx, testingpkg.Governor, "0xmock", batch)
	assert.ErrorIs(t, err, domain.ErrExternalCallFailed)
	assert.ErrorContains(t, err, "venue paused")

	usdc := tr.position(t, "0xmock", testingpkg.USDC)
	assert.True(t, usdc.Debt.IsZero())
	assert.True(t, usdc.LastBalance.IsZero())
	assert.True(t, tr.balance(t, testingpkg.USDC, testingpkg.Pool).Equal(domain.Units(1_000_000, 6)))
	assert.True(t, tr.balance(t, testingpkg.USDC, "0xmock").IsZero())
	assert.Equal(t, before, tr.auditCount(t))
	mocked.AssertNumberOfCalls(t, "Deposit", 2)
}

func TestPull(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))

	_, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(100, 6)))
	require.NoError(t, err)

	receipt, err := tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy,
		pull(testingpkg.USDC, domain.Units(50, 6), testingpkg.Recipient))
	require.NoError(t, err)
	pulled := receipt.OfType(events.Pulled)
	require.Len(t, pulled, 1)
	data := pulled[0].Data.(*events.PulledData)
	assert.True(t, data.Sent.Equal(domain.Units(50, 6)))
	assert.Equal(t, testingpkg.Recipient, data.Recipient)

	assert.True(t, tr.balance(t, testingpkg.USDC, testingpkg.Recipient).Equal(domain.Units(50, 6)))

	p := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	assert.True(t, p.Debt.Equal(domain.Units(50, 6)))
	assert.True(t, p.LastBalance.Equal(domain.Units(50, 6)))
	assert.True(t, p.ProtocolGains.IsZero())
	assert.True(t, p.ProtocolDebts.IsZero())
}

func TestPull_RecognizesYieldAsGains(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))

	_, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(1000, 6)))
	require.NoError(t, err)

	tr.clock.Advance(venue.SecondsPerYear * time.Second)

	invested, err := tr.lending.InvestedBalance(ctx, testingpkg.USDC)
	require.NoError(t, err)
	require.True(t, invested.Equal(domain.Units(1100, 6)), "got %s", invested)

	_, err = tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy,
		pull(testingpkg.USDC, domain.Units(1100, 6), testingpkg.Pool))
	require.NoError(t, err)

	p := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	assert.True(t, p.Debt.IsZero())
	assert.True(t, p.LastBalance.IsZero())
	assert.True(t, p.ProtocolGains.Equal(domain.Units(100, 6)), "got %s", p.ProtocolGains)
	assert.True(t, p.ProtocolDebts.IsZero())
	assert.True(t, tr.balance(t, testingpkg.USDC, testingpkg.Pool).Equal(domain.Units(1_000_100, 6)))
}

func TestPushPull_TwoAssetBatch(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))
	tr.grant(t, testingpkg.WETH, domain.Units(10, 18))

	receipt, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, []Transfer{
		{Asset: testingpkg.USDC, Amount: domain.Units(500, 6)},
		{Asset: testingpkg.WETH, Amount: domain.Units(2, 18)},
	})
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.Pushed, events.Pushed}, receipt.Types())

	receipt, err = tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy, []Withdrawal{
		{Asset: testingpkg.USDC, Amount: domain.Units(200, 6), Recipient: testingpkg.Recipient},
		{Asset: testingpkg.WETH, Amount: domain.Units(2, 18), Recipient: testingpkg.Pool},
	})
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.Pulled, events.Pulled}, receipt.Types())

	assert.True(t, tr.position(t, testingpkg.Strategy, testingpkg.USDC).Debt.Equal(domain.Units(300, 6)))
	assert.True(t, tr.position(t, testingpkg.Strategy, testingpkg.WETH).Debt.IsZero())
	assert.True(t, tr.balance(t, testingpkg.WETH, testingpkg.Pool).Equal(domain.Units(1_000, 18)))
	assert.True(t, tr.balance(t, testingpkg.USDC, testingpkg.Recipient).Equal(domain.Units(200, 6)))
}

func TestPushPull_TwoAssetBatchAfterYear(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))
	tr.grant(t, testingpkg.WETH, domain.Units(1000, 18))

	_, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, []Transfer{
		{Asset: testingpkg.USDC, Amount: domain.Units(100, 6)},
		{Asset: testingpkg.WETH, Amount: domain.Units(100, 18)},
	})
	require.NoError(t, err)

	tr.clock.Advance(venue.SecondsPerYear * time.Second)

	_, err = tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy, []Withdrawal{
		{Asset: testingpkg.USDC, Amount: domain.Units(100, 6), Recipient: testingpkg.Pool},
		{Asset: testingpkg.WETH, Amount: domain.Units(100, 18), Recipient: testingpkg.Pool},
	})
	require.NoError(t, err)

	// Each asset reconciles against its own last balance
	for _, asset := range []domain.Address{testingpkg.USDC, testingpkg.WETH} {
		remaining, err := tr.lending.InvestedBalance(ctx, asset)
		require.NoError(t, err)
		require.True(t, remaining.IsPositive(), "%s", asset)

		p := tr.position(t, testingpkg.Strategy, asset)
		assert.True(t, p.Debt.IsZero(), "%s debt %s", asset, p.Debt)
		assert.True(t, p.LastBalance.Equal(remaining), "%s last balance %s", asset, p.LastBalance)
		assert.True(t, p.ProtocolGains.Equal(remaining), "%s gains %s, invested %s", asset, p.ProtocolGains, remaining)
		assert.True(t, p.ProtocolDebts.IsZero(), "%s debts %s", asset, p.ProtocolDebts)
	}

	usdc := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	weth := tr.position(t, testingpkg.Strategy, testingpkg.WETH)
	assert.True(t, usdc.ProtocolGains.LT(domain.Units(11, 6)))
	assert.True(t, weth.ProtocolGains.GT(domain.Units(9, 18)))
}

func TestPull_AfterRightRemoved(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))

	_, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(100, 6)))
	require.NoError(t, err)
	_, err = tr.ledger.RemoveAssetRight(ctx, testingpkg.Governor, testingpkg.Strategy, testingpkg.USDC)
	require.NoError(t, err)

	// New pushes are refused, the remaining debt can still be wound down
	_, err = tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(1, 6)))
	assert.ErrorIs(t, err, domain.ErrUnknownRight)

	_, err = tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy,
		pull(testingpkg.USDC, domain.Units(100, 6), testingpkg.Pool))
	require.NoError(t, err)

	p := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	assert.True(t, p.Debt.IsZero())
	assert.False(t, p.Listed)

	_, err = tr.ledger.RemoveStrategy(ctx, testingpkg.Governor, testingpkg.Strategy)
	require.NoError(t, err)
}

func TestRemoveStrategy_KeepsRecognizedGains(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))

	_, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(1000, 6)))
	require.NoError(t, err)
	tr.clock.Advance(venue.SecondsPerYear * time.Second)
	_, err = tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy,
		pull(testingpkg.USDC, domain.Units(1100, 6), testingpkg.Pool))
	require.NoError(t, err)

	_, err = tr.ledger.RemoveAssetRight(ctx, testingpkg.Governor, testingpkg.Strategy, testingpkg.USDC)
	require.NoError(t, err)
	_, err = tr.ledger.RemoveStrategy(ctx, testingpkg.Governor, testingpkg.Strategy)
	require.NoError(t, err)

	gains, err := tr.ledger.ProtocolGains(ctx, testingpkg.Strategy, testingpkg.USDC)
	require.NoError(t, err)
	assert.True(t, gains.Equal(domain.Units(100, 6)), "got %s", gains)

	// Re-registering resumes from the retained record
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))
	p := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	assert.True(t, p.Listed)
	assert.True(t, p.Debt.IsZero())
	assert.True(t, p.ProtocolGains.Equal(domain.Units(100, 6)))
}

func TestPull_Rejections(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()
	tr.grant(t, testingpkg.USDC, domain.Units(1000, 6))

	_, err := tr.ledger.Push(ctx, testingpkg.Governor, testingpkg.Strategy, push(testingpkg.USDC, domain.Units(100, 6)))
	require.NoError(t, err)

	tests := []struct {
		name  string
		batch []Withdrawal
		want  error
	}{
		{"empty batch", nil, domain.ErrInvalidBatch},
		{"zero amount", pull(testingpkg.USDC, sdkmath.ZeroInt(), testingpkg.Pool), domain.ErrInvalidAmount},
		{"missing recipient", pull(testingpkg.USDC, sdkmath.NewInt(1), ""), domain.ErrInvalidAddress},
		{"never granted", pull(testingpkg.WETH, sdkmath.NewInt(1), testingpkg.Pool), domain.ErrUnknownRight},
		{"more than invested", pull(testingpkg.USDC, domain.Units(101, 6), testingpkg.Pool), domain.ErrInsufficientStrategyBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.ledger.Pull(ctx, testingpkg.Governor, testingpkg.Strategy, tt.batch)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = tr.ledger.Pull(ctx, testingpkg.Stranger, testingpkg.Strategy, pull(testingpkg.USDC, sdkmath.NewInt(1), testingpkg.Pool))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	p := tr.position(t, testingpkg.Strategy, testingpkg.USDC)
	assert.True(t, p.Debt.Equal(domain.Units(100, 6)))
}

func TestPull_RecognizesShortfallAsDebts(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()

	mocked := testingpkg.NewMockStrategy("0xmock")
	tr.registry.Deploy(mocked)
	mocked.On("OnRightGranted", mock.Anything, testingpkg.Ledger, testingpkg.USDC).Return(nil)
	_, err := tr.ledger.AddStrategy(ctx, testingpkg.Governor, "0xmock")
	require.NoError(t, err)
	_, err = tr.ledger.AddAssetRight(ctx, testingpkg.Governor, "0xmock", testingpkg.USDC, sdkmath.NewInt(1000))
	require.NoError(t, err)

	mocked.On("Deposit", mock.Anything, testingpkg.Ledger, testingpkg.USDC, sdkmath.NewInt(100), false, mock.Anything).Return(nil)
	mocked.On("InvestedBalance", mock.Anything, testingpkg.USDC).Return(sdkmath.NewInt(100), nil).Once()
	_, err = tr.ledger.Push(ctx, testingpkg.Governor, "0xmock", push(testingpkg.USDC, sdkmath.NewInt(100)))
	require.NoError(t, err)

	// The position lost 10 between reports
	mocked.On("Withdraw", mock.Anything, testingpkg.Ledger, testingpkg.USDC, sdkmath.NewInt(50), false, testingpkg.Pool, mock.Anything).
		Return(sdkmath.NewInt(50), nil)
	mocked.On("InvestedBalance", mock.Anything, testingpkg.USDC).Return(sdkmath.NewInt(40), nil).Once()
	_, err = tr.ledger.Pull(ctx, testingpkg.Governor, "0xmock", pull(testingpkg.USDC, sdkmath.NewInt(50), testingpkg.Pool))
	require.NoError(t, err)

	p := tr.position(t, "0xmock", testingpkg.USDC)
	assert.Equal(t, "50", p.Debt.String())
	assert.Equal(t, "40", p.LastBalance.String())
	assert.Equal(t, "10", p.ProtocolDebts.String())
	assert.True(t, p.ProtocolGains.IsZero())

	// A later surplus first offsets recorded debts, then accrues as gains
	mocked.On("Withdraw", mock.Anything, testingpkg.Ledger, testingpkg.USDC, sdkmath.NewInt(20), false, testingpkg.Pool, mock.Anything).
		Return(sdkmath.NewInt(20), nil)
	mocked.On("InvestedBalance", mock.Anything, testingpkg.USDC).Return(sdkmath.NewInt(35), nil).Once()
	_, err = tr.ledger.Pull(ctx, testingpkg.Governor, "0xmock", pull(testingpkg.USDC, sdkmath.NewInt(20), testingpkg.Pool))
	require.NoError(t, err)

	p = tr.position(t, "0xmock", testingpkg.USDC)
	assert.Equal(t, "30", p.Debt.String())
	assert.Equal(t, "35", p.LastBalance.String())
	assert.Equal(t, "5", p.ProtocolGains.String())
	assert.True(t, p.ProtocolDebts.IsZero())
	mocked.AssertExpectations(t)
}

func TestStrategy_RejectsCallsNotFromLedger(t *testing.T) {
	tr := setupTreasury(t)
	ctx := context.Background()

	err := tr.lending.Deposit(ctx, testingpkg.Stranger, testingpkg.USDC, sdkmath.NewInt(1), false, nil)
	assert.ErrorIs(t, err, domain.ErrNotLedger)

	_, err = tr.lending.Withdraw(ctx, testingpkg.Governor, testingpkg.USDC, sdkmath.NewInt(1), false, testingpkg.Stranger, nil)
	assert.ErrorIs(t, err, domain.ErrNotLedger)
}
