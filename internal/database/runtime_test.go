package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "treasury.db"),
		Profile: ProfileStandard,
		Name:    "treasury",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewRuntime(db, zerolog.Nop())
}

func insertAsset(ctx context.Context, rt *Runtime, addr string) error {
	_, err := rt.DB().Q(ctx).ExecContext(ctx,
		"INSERT INTO assets (address, symbol, decimals) VALUES (?, ?, ?)", addr, "TKN", 18)
	return err
}

func countAssets(t *testing.T, rt *Runtime) int {
	t.Helper()
	var n int
	require.NoError(t, rt.DB().Conn().QueryRow("SELECT COUNT(*) FROM assets").Scan(&n))
	return n
}

func TestMigrate_Idempotent(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.DB().Migrate())
	assert.Equal(t, 0, countAssets(t, rt))
}

func TestAtomic_CommitsAndRunsHooks(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	hookRan := false
	err := rt.Atomic(ctx, func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		AfterCommit(ctx, func() { hookRan = true })
		assert.False(t, hookRan, "hook must wait for commit")
		return insertAsset(ctx, rt, "0xa")
	})

	require.NoError(t, err)
	assert.True(t, hookRan)
	assert.Equal(t, 1, countAssets(t, rt))
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	boom := errors.New("boom")

	hookRan := false
	err := rt.Atomic(ctx, func(ctx context.Context) error {
		require.NoError(t, insertAsset(ctx, rt, "0xa"))
		AfterCommit(ctx, func() { hookRan = true })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, hookRan)
	assert.Equal(t, 0, countAssets(t, rt))
}

func TestAtomic_RollsBackOnPanic(t *testing.T) {
	rt := newTestRuntime(t)

	err := rt.Atomic(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insertAsset(ctx, rt, "0xa"))
		panic("strategy exploded")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy exploded")
	assert.Equal(t, 0, countAssets(t, rt))
}

func TestAtomic_NestedCallsJoinTheUnit(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()
	boom := errors.New("outer failed")

	err := rt.Atomic(ctx, func(ctx context.Context) error {
		innerErr := rt.Atomic(ctx, func(ctx context.Context) error {
			return insertAsset(ctx, rt, "0xinner")
		})
		require.NoError(t, innerErr)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countAssets(t, rt), "inner writes roll back with the outer unit")
}

func TestAfterCommit_OutsideUnitRunsImmediately(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	db, err := New(Config{Path: filepath.Join(dir, "treasury.db"), Profile: ProfileLedger, Name: "treasury"})
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
	assert.Equal(t, ProfileLedger, db.Profile())
	assert.NoError(t, db.HealthCheck(context.Background()))
}
