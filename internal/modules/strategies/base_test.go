package strategies_test

import (
	"bytes"
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/strategies"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/aristath/treasury/internal/testing/harness"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeAllowance(t *testing.T) {
	tr := harness.New(t)
	ctx := context.Background()
	tr.Grant(t, testingpkg.USDC, domain.Units(1000, 6))

	change := []domain.AllowanceChange{{Asset: testingpkg.USDC, Spender: testingpkg.Keeper, Amount: sdkmath.NewInt(42)}}

	err := tr.Lending.ChangeAllowance(ctx, testingpkg.Stranger, change)
	assert.ErrorIs(t, err, domain.ErrNotApproved)

	lastID, err := tr.Events.Repository().LastID(ctx)
	require.NoError(t, err)

	require.NoError(t, tr.Lending.ChangeAllowance(ctx, testingpkg.Governor, change))

	allowance, err := tr.Book.Allowance(ctx, testingpkg.USDC, testingpkg.Strategy, testingpkg.Keeper)
	require.NoError(t, err)
	assert.True(t, allowance.Equal(sdkmath.NewInt(42)))

	emitted, err := tr.Events.Repository().ListAfter(ctx, lastID, 10)
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, events.AllowanceChanged, emitted[0].Type)
}

func TestChangeAllowance_RejectsBadChanges(t *testing.T) {
	tr := harness.New(t)
	ctx := context.Background()

	err := tr.Lending.ChangeAllowance(ctx, testingpkg.Governor, []domain.AllowanceChange{
		{Asset: testingpkg.USDC, Spender: testingpkg.Keeper, Amount: sdkmath.NewInt(1)},
		{Asset: testingpkg.USDC, Spender: testingpkg.Keeper, Amount: sdkmath.NewInt(-1)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// The first change was rolled back with the batch
	allowance, err := tr.Book.Allowance(ctx, testingpkg.USDC, testingpkg.Strategy, testingpkg.Keeper)
	require.NoError(t, err)
	assert.True(t, allowance.IsZero())

	err = tr.Lending.ChangeAllowance(ctx, testingpkg.Governor, []domain.AllowanceChange{
		{Asset: testingpkg.USDC, Amount: sdkmath.NewInt(1)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestChangeAllowance_WithoutApprover(t *testing.T) {
	tr := harness.New(t)
	base := strategies.NewBase(strategies.BaseConfig{
		Address: "0xorphan",
		Ledger:  testingpkg.Ledger,
		Book:    tr.Book,
		Events:  tr.Events,
		Runtime: tr.Runtime,
	}, *tr.Lending.Logger())

	err := base.ChangeAllowance(context.Background(), testingpkg.Governor, nil)
	assert.ErrorIs(t, err, domain.ErrNotApproved)
}

func TestBase_LoggerIsShared(t *testing.T) {
	var buf bytes.Buffer
	base := strategies.NewBase(strategies.BaseConfig{
		Address: testingpkg.Strategy,
		Ledger:  testingpkg.Ledger,
	}, zerolog.New(&buf))

	base.Logger().Info().Msg("deposited")
	assert.Contains(t, buf.String(), `"strategy":"0xlending-strategy"`)
	assert.Same(t, base.Logger(), base.Logger())
}

func TestRegistry(t *testing.T) {
	registry := strategies.NewRegistry()
	registry.Deploy(testingpkg.NewMockStrategy("0xb"))
	registry.Deploy(testingpkg.NewMockStrategy("0xa"))

	assert.Equal(t, []domain.Address{"0xa", "0xb"}, registry.Deployed())

	s, ok := registry.Resolve("0xb")
	require.True(t, ok)
	assert.Equal(t, domain.Address("0xb"), s.Address())

	_, ok = registry.Resolve("0xc")
	assert.False(t, ok)
}
