package di

import (
	"fmt"

	"github.com/aristath/treasury/internal/config"
	"github.com/aristath/treasury/internal/reliability"
	"github.com/aristath/treasury/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and registers them with the container's scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(container.Metrics, log)
	instances := &JobInstances{}

	// NAV snapshots
	instances.Snapshot = scheduler.NewSnapshotJob(container.Reporting, cfg.SnapshotRetention, log)
	if err := container.Scheduler.AddJob(cfg.SnapshotSchedule, instances.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to register snapshot job: %w", err)
	}

	// Database maintenance
	instances.Maintenance = reliability.NewMaintenanceJob(container.DB, log)
	if err := container.Scheduler.AddJob(cfg.MaintenanceSchedule, instances.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	// Audit archival
	if container.Archiver != nil {
		instances.Archive = scheduler.NewArchiveJob(container.Archiver, log)
		if err := container.Scheduler.AddJob(cfg.Archive.Schedule, instances.Archive); err != nil {
			return nil, fmt.Errorf("failed to register archive job: %w", err)
		}
	}

	log.Info().Int("jobs", container.Scheduler.Entries()).Msg("Jobs registered")
	return instances, nil
}
