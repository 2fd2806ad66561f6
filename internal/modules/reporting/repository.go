package reporting

import (
	"context"
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/rs/zerolog"
)

// Repository stores NAV snapshots
// Database: treasury.db (nav_snapshots table)
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "nav_snapshots").Logger(),
	}
}

// Insert records s and sets its ID
func (r *Repository) Insert(ctx context.Context, s *Snapshot) error {
	result, err := r.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO nav_snapshots
			(strategy, asset, cap, debt, nav, last_balance, protocol_gains, protocol_debts, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(s.Strategy), string(s.Asset),
		s.Cap.String(), s.Debt.String(), s.NAV.String(), s.LastBalance.String(),
		s.ProtocolGains.String(), s.ProtocolDebts.String(),
		s.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s/%s: %w", s.Strategy, s.Asset, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read snapshot id: %w", err)
	}
	s.ID = id
	return nil
}

// List returns the snapshots of a pair, oldest first, limited to the most recent limit rows
func (r *Repository) List(ctx context.Context, strategy, asset domain.Address, limit int) ([]Snapshot, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, `
		SELECT id, strategy, asset, cap, debt, nav, last_balance, protocol_gains, protocol_debts, taken_at
		FROM (
			SELECT * FROM nav_snapshots
			WHERE strategy = ? AND asset = ?
			ORDER BY taken_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY taken_at, id
	`, string(strategy), string(asset), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// ListSince returns every snapshot taken at or after since, oldest first
func (r *Repository) ListSince(ctx context.Context, since int64) ([]Snapshot, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, `
		SELECT id, strategy, asset, cap, debt, nav, last_balance, protocol_gains, protocol_debts, taken_at
		FROM nav_snapshots
		WHERE taken_at >= ?
		ORDER BY taken_at, id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// DeleteBefore prunes snapshots older than cutoff and returns how many were removed
func (r *Repository) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := r.db.Q(ctx).ExecContext(ctx, "DELETE FROM nav_snapshots WHERE taken_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}

func scanSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	result := make([]Snapshot, 0)
	for rows.Next() {
		var (
			s                                Snapshot
			strategy, asset                  string
			capRaw, debtRaw, navRaw, lastRaw string
			gainsRaw, debtsRaw               string
		)
		if err := rows.Scan(&s.ID, &strategy, &asset, &capRaw, &debtRaw, &navRaw, &lastRaw,
			&gainsRaw, &debtsRaw, &s.TakenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Strategy = domain.Address(strategy)
		s.Asset = domain.Address(asset)

		amounts := []struct {
			raw string
			dst *sdkmath.Int
		}{
			{capRaw, &s.Cap},
			{debtRaw, &s.Debt},
			{navRaw, &s.NAV},
			{lastRaw, &s.LastBalance},
			{gainsRaw, &s.ProtocolGains},
			{debtsRaw, &s.ProtocolDebts},
		}
		for _, a := range amounts {
			v, err := domain.ParseAmount(a.raw)
			if err != nil {
				return nil, fmt.Errorf("corrupt snapshot %d: %w", s.ID, err)
			}
			*a.dst = v
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return result, nil
}
