// Package lending provides the strategy that invests treasury assets into a
// lending venue and earns its supply rate.
package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aristath/treasury/internal/clients/venue"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/rs/zerolog"
)

// InstrumentRepository stores the venue receipt instruments per (strategy, asset)
// Database: treasury.db (lending_instruments table)
type InstrumentRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *database.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		db:  db,
		log: log.With().Str("repo", "lending_instruments").Logger(),
	}
}

// Get returns the recorded instruments, ok=false when none are recorded
func (r *InstrumentRepository) Get(ctx context.Context, strategy, asset domain.Address) (venue.Instruments, bool, error) {
	var supplyTok, borrowTok string
	err := r.db.Q(ctx).QueryRowContext(ctx,
		"SELECT supply_token, borrow_token FROM lending_instruments WHERE strategy = ? AND asset = ?",
		string(strategy), string(asset),
	).Scan(&supplyTok, &borrowTok)
	if errors.Is(err, sql.ErrNoRows) {
		return venue.Instruments{}, false, nil
	}
	if err != nil {
		return venue.Instruments{}, false, fmt.Errorf("failed to load instruments: %w", err)
	}
	return venue.Instruments{SupplyToken: domain.Address(supplyTok), BorrowToken: domain.Address(borrowTok)}, true, nil
}

// Set records the instruments of asset
func (r *InstrumentRepository) Set(ctx context.Context, strategy, asset domain.Address, inst venue.Instruments) error {
	_, err := r.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO lending_instruments (strategy, asset, supply_token, borrow_token) VALUES (?, ?, ?, ?)
		ON CONFLICT(strategy, asset) DO UPDATE SET supply_token = excluded.supply_token, borrow_token = excluded.borrow_token
	`, string(strategy), string(asset), string(inst.SupplyToken), string(inst.BorrowToken))
	if err != nil {
		return fmt.Errorf("failed to record instruments: %w", err)
	}
	return nil
}

// Clear forgets the instruments of asset
func (r *InstrumentRepository) Clear(ctx context.Context, strategy, asset domain.Address) error {
	_, err := r.db.Q(ctx).ExecContext(ctx,
		"DELETE FROM lending_instruments WHERE strategy = ? AND asset = ?",
		string(strategy), string(asset))
	if err != nil {
		return fmt.Errorf("failed to clear instruments: %w", err)
	}
	return nil
}
