package access

import (
	"context"
	"testing"

	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	rt := testingpkg.NewTestRuntime(t)
	log := zerolog.Nop()
	manager := events.NewManager(events.NewRepository(rt.DB(), log), events.NewBus(), log)
	registry := NewRegistry(NewRepository(rt.DB(), log), rt, manager, log)
	require.NoError(t, registry.Bootstrap(context.Background(),
		[]domain.Address{testingpkg.Governor}, []domain.Address{testingpkg.Guardian}))
	return registry
}

func TestBootstrap_SeedsRolesOnce(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.Bootstrap(ctx, []domain.Address{testingpkg.Governor}, nil))

	roles, err := registry.Roles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{testingpkg.Governor}, roles.Governors)
	assert.Equal(t, []domain.Address{testingpkg.Guardian}, roles.Guardians)

	ok, err := registry.IsGuardian(ctx, testingpkg.Guardian)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrantGovernor(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()

	receipt, err := registry.GrantGovernor(ctx, testingpkg.Governor, testingpkg.Keeper)
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.RoleGranted}, receipt.Types())

	ok, err := registry.IsGovernor(ctx, testingpkg.Keeper)
	require.NoError(t, err)
	assert.True(t, ok)

	// Granting again is a silent no-op
	receipt, err = registry.GrantGovernor(ctx, testingpkg.Governor, testingpkg.Keeper)
	require.NoError(t, err)
	assert.Empty(t, receipt.Events())
}

func TestGrant_RequiresGovernor(t *testing.T) {
	registry := setupRegistry(t)

	_, err := registry.GrantGuardian(context.Background(), testingpkg.Stranger, testingpkg.Keeper)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = registry.GrantGovernor(context.Background(), testingpkg.Guardian, testingpkg.Keeper)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRevokeGovernor_LastGovernorProtected(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()

	_, err := registry.RevokeGovernor(ctx, testingpkg.Governor, testingpkg.Governor)
	assert.ErrorIs(t, err, domain.ErrLastGovernor)

	_, err = registry.GrantGovernor(ctx, testingpkg.Governor, testingpkg.Keeper)
	require.NoError(t, err)

	receipt, err := registry.RevokeGovernor(ctx, testingpkg.Keeper, testingpkg.Governor)
	require.NoError(t, err)
	assert.True(t, receipt.Has(events.RoleRevoked))

	ok, err := registry.IsGovernor(ctx, testingpkg.Governor)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeGuardian(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()

	receipt, err := registry.RevokeGuardian(ctx, testingpkg.Governor, testingpkg.Guardian)
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.RoleRevoked}, receipt.Types())

	ok, err := registry.IsGuardian(ctx, testingpkg.Guardian)
	require.NoError(t, err)
	assert.False(t, ok)
}
