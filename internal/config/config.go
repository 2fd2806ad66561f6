// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/utils"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the ledger database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool // Seeds demo assets and serves the token faucet

	PoolAddress     domain.Address
	LedgerAddress   domain.Address
	StrategyAddress domain.Address
	VenueAddress    domain.Address
	Governors       []domain.Address
	Guardians       []domain.Address
	Assets          []domain.Asset // Registered and listed on the venue at start-up

	VenueSupplyAPRBps int64

	SnapshotSchedule    string
	SnapshotRetention   time.Duration
	MaintenanceSchedule string

	Archive ArchiveConfig
}

// ArchiveConfig holds audit log archival settings.
// Archival is off unless a bucket is configured.
type ArchiveConfig struct {
	Schedule        string
	Prefix          string
	BatchSize       int
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether audit archival is configured
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads configuration from .env and the environment
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("TREASURY_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	assets, err := utils.ParseAssetList(os.Getenv("TREASURY_ASSETS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TREASURY_ASSETS: %w", err)
	}

	cfg := &Config{
		DataDir:  dataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		PoolAddress:     domain.Address(getEnv("TREASURY_POOL_ADDRESS", "0xtreasury-pool")),
		LedgerAddress:   domain.Address(getEnv("LEDGER_ADDRESS", "0xallocation-ledger")),
		StrategyAddress: domain.Address(getEnv("STRATEGY_ADDRESS", "0xlending-strategy")),
		VenueAddress:    domain.Address(getEnv("VENUE_ADDRESS", "0xlending-venue")),
		Governors:       utils.ParseAddressList(os.Getenv("GOVERNOR_ADDRESS")),
		Guardians:       utils.ParseAddressList(os.Getenv("GUARDIAN_ADDRESS")),
		Assets:          assets,

		VenueSupplyAPRBps: int64(getEnvAsInt("VENUE_SUPPLY_APR_BPS", 500)),

		SnapshotSchedule:    getEnv("SNAPSHOT_SCHEDULE", "0 0 * * * *"),
		SnapshotRetention:   time.Duration(getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 90)) * 24 * time.Hour,
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),

		Archive: ArchiveConfig{
			Schedule:        getEnv("ARCHIVE_SCHEDULE", "0 */15 * * * *"),
			Prefix:          getEnv("ARCHIVE_PREFIX", "treasury/audit"),
			BatchSize:       getEnvAsInt("ARCHIVE_BATCH_SIZE", 500),
			Bucket:          getEnv("ARCHIVE_S3_BUCKET", ""),
			Region:          getEnv("ARCHIVE_S3_REGION", "auto"),
			Endpoint:        getEnv("ARCHIVE_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("ARCHIVE_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabasePath returns the ledger database file path
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "treasury.db")
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}

	handles := map[string]domain.Address{
		"TREASURY_POOL_ADDRESS": c.PoolAddress,
		"LEDGER_ADDRESS":        c.LedgerAddress,
		"STRATEGY_ADDRESS":      c.StrategyAddress,
		"VENUE_ADDRESS":         c.VenueAddress,
	}
	seen := make(map[domain.Address]string, len(handles))
	for key, addr := range handles {
		if addr.IsZero() {
			return fmt.Errorf("%s is required: %w", key, domain.ErrInvalidAddress)
		}
		if other, dup := seen[addr]; dup {
			return fmt.Errorf("%s and %s must differ: %w", key, other, domain.ErrInvalidAddress)
		}
		seen[addr] = key
	}

	if len(c.Governors) == 0 {
		return fmt.Errorf("GOVERNOR_ADDRESS is required: at least one governor must be configured")
	}
	if c.VenueSupplyAPRBps < 0 {
		return fmt.Errorf("VENUE_SUPPLY_APR_BPS must not be negative")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedules := map[string]string{
		"SNAPSHOT_SCHEDULE":    c.SnapshotSchedule,
		"MAINTENANCE_SCHEDULE": c.MaintenanceSchedule,
	}
	if c.Archive.Enabled() {
		schedules["ARCHIVE_SCHEDULE"] = c.Archive.Schedule
		if c.Archive.BatchSize <= 0 {
			return fmt.Errorf("ARCHIVE_BATCH_SIZE must be positive")
		}
	}
	for key, schedule := range schedules {
		if _, err := parser.Parse(schedule); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, schedule, err)
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
