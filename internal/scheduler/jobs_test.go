package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/modules/reporting"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/aristath/treasury/internal/testing/harness"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotJob_RecordsAndPrunes(t *testing.T) {
	tr := harness.New(t)
	tr.Grant(t, testingpkg.USDC, domain.Units(1000, 6))
	tr.Push(t, testingpkg.USDC, domain.Units(500, 6))

	log := zerolog.Nop()
	service := reporting.NewService(tr.Ledger, tr.Registry, reporting.NewRepository(tr.Runtime.DB(), log), tr.Runtime, log,
		reporting.WithClock(tr.Clock.Now))
	job := NewSnapshotJob(service, 24*time.Hour, log)
	assert.Equal(t, "nav_snapshot", job.Name())

	require.NoError(t, job.Run())
	tr.Clock.Advance(48 * time.Hour)
	require.NoError(t, job.Run())

	trend, err := service.Trend(context.Background(), testingpkg.Strategy, testingpkg.USDC, 10)
	require.NoError(t, err)
	// The first sample fell outside the retention window
	assert.Equal(t, 1, trend.Samples)
}
