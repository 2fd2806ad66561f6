package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/treasury/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// MinFreeDiskBytes is the free space below which maintenance fails
const MinFreeDiskBytes = 500 * 1024 * 1024

// DiskUsageFunc reports free bytes on the filesystem holding path
type DiskUsageFunc func(path string) (uint64, error)

func gopsutilFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// MaintenanceJob checks the ledger database, truncates its WAL and watches
// free disk space
type MaintenanceJob struct {
	db       *database.DB
	diskFree DiskUsageFunc
	log      zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job for db
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:       db,
		diskFree: gopsutilFree,
		log:      log.With().Str("job", "maintenance").Logger(),
	}
}

// WithDiskUsage overrides how free disk space is measured
func (j *MaintenanceJob) WithDiskUsage(fn DiskUsageFunc) *MaintenanceJob {
	j.diskFree = fn
	return j
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Step 1: Integrity check. A corrupt ledger must never keep serving.
	if err := j.db.QuickCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("CRITICAL: Database integrity check failed")
		return fmt.Errorf("CRITICAL: integrity check failed for %s: %w", j.db.Name(), err)
	}

	// Step 2: WAL checkpoint
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	// Step 3: Disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.logDatabaseSize()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed successfully")
	return nil
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

func (j *MaintenanceJob) checkDiskSpace() error {
	dir := filepath.Dir(j.db.Path())
	free, err := j.diskFree(dir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	freeGB := float64(free) / 1e9
	j.log.Debug().Float64("available_gb", freeGB).Msg("Disk space check")

	if free < MinFreeDiskBytes {
		j.log.Error().Float64("available_gb", freeGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %.2f GB free on %s", freeGB, dir)
	}
	if freeGB < 1.0 {
		j.log.Warn().Float64("available_gb", freeGB).Msg("Low disk space")
	}
	return nil
}

func (j *MaintenanceJob) logDatabaseSize() {
	var total int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		info, err := os.Stat(j.db.Path() + suffix)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	j.log.Info().
		Str("database", j.db.Name()).
		Float64("size_mb", float64(total)/1024/1024).
		Msg("Database size")
}
