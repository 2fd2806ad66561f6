package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles the ledger's registry and accounting records
// Database: treasury.db (strategies, strategy_positions, caller_whitelist tables)
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// InsertStrategy appends a whitelisted strategy to the registry
func (r *Repository) InsertStrategy(ctx context.Context, addr domain.Address) error {
	_, err := r.db.Q(ctx).ExecContext(ctx,
		"INSERT INTO strategies (address, whitelisted, created_at) VALUES (?, 1, ?)",
		string(addr), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert strategy %s: %w", addr, err)
	}
	return nil
}

// DeleteStrategy removes a strategy and its caller whitelist.
// Position rows stay so recognized gains and debts remain queryable.
func (r *Repository) DeleteStrategy(ctx context.Context, addr domain.Address) error {
	for _, query := range []string{
		"DELETE FROM caller_whitelist WHERE strategy = ?",
		"DELETE FROM strategies WHERE address = ?",
	} {
		if _, err := r.db.Q(ctx).ExecContext(ctx, query, string(addr)); err != nil {
			return fmt.Errorf("failed to delete strategy %s: %w", addr, err)
		}
	}
	return nil
}

// GetStrategy returns whether addr is registered and whether it is whitelisted
func (r *Repository) GetStrategy(ctx context.Context, addr domain.Address) (registered bool, whitelisted bool, err error) {
	var flag int
	err = r.db.Q(ctx).QueryRowContext(ctx,
		"SELECT whitelisted FROM strategies WHERE address = ?", string(addr),
	).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to load strategy %s: %w", addr, err)
	}
	return true, flag == 1, nil
}

// ListStrategies returns registered strategies in registration order
func (r *Repository) ListStrategies(ctx context.Context) ([]StrategyInfo, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, "SELECT address, whitelisted FROM strategies ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}

	result := make([]StrategyInfo, 0)
	for rows.Next() {
		var addr string
		var flag int
		if err := rows.Scan(&addr, &flag); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		result = append(result, StrategyInfo{Address: domain.Address(addr), Whitelisted: flag == 1})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategies: %w", err)
	}

	for i := range result {
		assets, err := r.ListedAssets(ctx, result[i].Address)
		if err != nil {
			return nil, err
		}
		result[i].Assets = assets
	}
	return result, nil
}

// ListedAssets returns the assets strategy currently holds rights over, in grant order
func (r *Repository) ListedAssets(ctx context.Context, strategy domain.Address) ([]domain.Address, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, `
		SELECT asset FROM strategy_positions
		WHERE strategy = ? AND listed = 1
		ORDER BY listed_seq
	`, string(strategy))
	if err != nil {
		return nil, fmt.Errorf("failed to query assets of %s: %w", strategy, err)
	}
	defer rows.Close()

	result := make([]domain.Address, 0)
	for rows.Next() {
		var asset string
		if err := rows.Scan(&asset); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		result = append(result, domain.Address(asset))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return result, nil
}

// GetPosition loads the record of a pair, or the zero position if none exists
func (r *Repository) GetPosition(ctx context.Context, strategy, asset domain.Address) (*Position, error) {
	p := newPosition(strategy, asset)

	var capRaw, debtRaw, lastRaw, gainsRaw, debtsRaw string
	var listed int
	err := r.db.Q(ctx).QueryRowContext(ctx, `
		SELECT cap, debt, last_balance, protocol_gains, protocol_debts, listed, listed_seq
		FROM strategy_positions WHERE strategy = ? AND asset = ?
	`, string(strategy), string(asset)).Scan(&capRaw, &debtRaw, &lastRaw, &gainsRaw, &debtsRaw, &listed, &p.listedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s/%s: %w", strategy, asset, err)
	}

	p.exists = true
	p.Listed = listed == 1
	amounts := []struct {
		raw string
		dst *sdkmath.Int
	}{
		{capRaw, &p.Cap},
		{debtRaw, &p.Debt},
		{lastRaw, &p.LastBalance},
		{gainsRaw, &p.ProtocolGains},
		{debtsRaw, &p.ProtocolDebts},
	}
	for _, a := range amounts {
		v, err := domain.ParseAmount(a.raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt position %s/%s: %w", strategy, asset, err)
		}
		*a.dst = v
	}
	return p, nil
}

// ListPositions returns every record of strategy, listed first in grant order
func (r *Repository) ListPositions(ctx context.Context, strategy domain.Address) ([]*Position, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, `
		SELECT asset FROM strategy_positions WHERE strategy = ?
		ORDER BY listed DESC, listed_seq, asset
	`, string(strategy))
	if err != nil {
		return nil, fmt.Errorf("failed to query positions of %s: %w", strategy, err)
	}
	var assets []domain.Address
	for rows.Next() {
		var asset string
		if err := rows.Scan(&asset); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		assets = append(assets, domain.Address(asset))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	result := make([]*Position, 0, len(assets))
	for _, asset := range assets {
		p, err := r.GetPosition(ctx, strategy, asset)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// SavePosition writes every field of p. A newly listed pair is appended to the end of the strategy's asset list.
func (r *Repository) SavePosition(ctx context.Context, p *Position) error {
	if p.Listed && p.listedSeq == 0 {
		var next int64
		if err := r.db.Q(ctx).QueryRowContext(ctx,
			"SELECT COALESCE(MAX(listed_seq), 0) + 1 FROM strategy_positions WHERE strategy = ?",
			string(p.Strategy),
		).Scan(&next); err != nil {
			return fmt.Errorf("failed to allocate list slot: %w", err)
		}
		p.listedSeq = next
	}
	if !p.Listed {
		p.listedSeq = 0
	}

	listed := 0
	if p.Listed {
		listed = 1
	}

	_, err := r.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO strategy_positions
			(strategy, asset, cap, debt, last_balance, protocol_gains, protocol_debts, listed, listed_seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy, asset) DO UPDATE SET
			cap = excluded.cap,
			debt = excluded.debt,
			last_balance = excluded.last_balance,
			protocol_gains = excluded.protocol_gains,
			protocol_debts = excluded.protocol_debts,
			listed = excluded.listed,
			listed_seq = excluded.listed_seq,
			updated_at = excluded.updated_at
	`,
		string(p.Strategy), string(p.Asset),
		p.Cap.String(), p.Debt.String(), p.LastBalance.String(),
		p.ProtocolGains.String(), p.ProtocolDebts.String(),
		listed, p.listedSeq, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save position %s/%s: %w", p.Strategy, p.Asset, err)
	}
	p.exists = true
	return nil
}

// IsCallerWhitelisted reports whether caller may change strategy's allowances
func (r *Repository) IsCallerWhitelisted(ctx context.Context, strategy, caller domain.Address) (bool, error) {
	var n int
	if err := r.db.Q(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM caller_whitelist WHERE strategy = ? AND caller = ?",
		string(strategy), string(caller),
	).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check caller whitelist: %w", err)
	}
	return n > 0, nil
}

// SetCallerWhitelisted adds or removes caller from strategy's whitelist
func (r *Repository) SetCallerWhitelisted(ctx context.Context, strategy, caller domain.Address, whitelisted bool) error {
	var err error
	if whitelisted {
		_, err = r.db.Q(ctx).ExecContext(ctx,
			"INSERT OR IGNORE INTO caller_whitelist (strategy, caller, created_at) VALUES (?, ?, ?)",
			string(strategy), string(caller), time.Now().Unix())
	} else {
		_, err = r.db.Q(ctx).ExecContext(ctx,
			"DELETE FROM caller_whitelist WHERE strategy = ? AND caller = ?",
			string(strategy), string(caller))
	}
	if err != nil {
		return fmt.Errorf("failed to update caller whitelist: %w", err)
	}
	return nil
}

// ListCallers returns the whitelisted callers of strategy
func (r *Repository) ListCallers(ctx context.Context, strategy domain.Address) ([]domain.Address, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx,
		"SELECT caller FROM caller_whitelist WHERE strategy = ? ORDER BY created_at, caller", string(strategy))
	if err != nil {
		return nil, fmt.Errorf("failed to query callers: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Address, 0)
	for rows.Next() {
		var caller string
		if err := rows.Scan(&caller); err != nil {
			return nil, fmt.Errorf("failed to scan caller: %w", err)
		}
		result = append(result, domain.Address(caller))
	}
	return result, rows.Err()
}
