package di

import (
	"fmt"

	"github.com/aristath/treasury/internal/config"
	"github.com/aristath/treasury/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabase opens treasury.db with the ledger profile and applies its schema
func InitializeDatabase(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger, // Maximum safety for balances and the audit trail
		Name:    "treasury",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize treasury database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate treasury database: %w", err)
	}

	log.Info().Str("path", db.Path()).Msg("Treasury database initialized")

	return &Container{
		DB:      db,
		Runtime: database.NewRuntime(db, log),
	}, nil
}
