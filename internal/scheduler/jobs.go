package scheduler

import (
	"context"
	"time"

	"github.com/aristath/treasury/internal/modules/reporting"
	"github.com/aristath/treasury/internal/reliability"
	"github.com/rs/zerolog"
)

const jobTimeout = 5 * time.Minute

// SnapshotJob records NAV snapshots for every open position and drops
// snapshots older than the retention window
type SnapshotJob struct {
	reporting *reporting.Service
	retention time.Duration
	log       zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job. A zero retention keeps everything.
func NewSnapshotJob(service *reporting.Service, retention time.Duration, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		reporting: service,
		retention: retention,
		log:       log.With().Str("job", "nav_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "nav_snapshot"
}

// Run executes the snapshot job
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	snapshots, err := j.reporting.TakeSnapshot(ctx)
	if err != nil {
		return err
	}

	var pruned int64
	if j.retention > 0 {
		pruned, err = j.reporting.Prune(ctx, j.retention)
		if err != nil {
			return err
		}
	}

	j.log.Info().
		Int("snapshots", len(snapshots)).
		Int64("pruned", pruned).
		Msg("NAV snapshots recorded")
	return nil
}

// ArchiveJob ships new audit records to object storage
type ArchiveJob struct {
	archiver *reliability.AuditArchiver
	log      zerolog.Logger
}

// NewArchiveJob creates a new archive job
func NewArchiveJob(archiver *reliability.AuditArchiver, log zerolog.Logger) *ArchiveJob {
	return &ArchiveJob{
		archiver: archiver,
		log:      log.With().Str("job", "audit_archive").Logger(),
	}
}

// Name returns the job name
func (j *ArchiveJob) Name() string {
	return "audit_archive"
}

// Run executes the archive job
func (j *ArchiveJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.archiver.Run(ctx)
	if err != nil {
		return err
	}
	j.log.Debug().Int("records", result.Records).Int64("last_id", result.LastID).Msg("Archive run finished")
	return nil
}
