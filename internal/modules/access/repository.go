// Package access provides the role registry (governors and guardians) that
// authorizes treasury operations.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles role assignments
// Database: treasury.db (access_roles table)
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new access repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "access").Logger(),
	}
}

// HasRole reports whether addr holds role
func (r *Repository) HasRole(ctx context.Context, addr domain.Address, role domain.Role) (bool, error) {
	var n int
	err := r.db.Q(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_roles WHERE address = ? AND role = ?",
		string(addr), string(role),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check %s role: %w", role, err)
	}
	return n > 0, nil
}

// Grant assigns role to addr. Returns false if addr already held it.
func (r *Repository) Grant(ctx context.Context, addr domain.Address, role domain.Role) (bool, error) {
	result, err := r.db.Q(ctx).ExecContext(ctx,
		"INSERT OR IGNORE INTO access_roles (address, role, granted_at) VALUES (?, ?, ?)",
		string(addr), string(role), time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to grant %s role: %w", role, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Revoke removes role from addr. Returns false if addr did not hold it.
func (r *Repository) Revoke(ctx context.Context, addr domain.Address, role domain.Role) (bool, error) {
	result, err := r.db.Q(ctx).ExecContext(ctx,
		"DELETE FROM access_roles WHERE address = ? AND role = ?",
		string(addr), string(role),
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke %s role: %w", role, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Count returns how many addresses hold role
func (r *Repository) Count(ctx context.Context, role domain.Role) (int, error) {
	var n int
	if err := r.db.Q(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_roles WHERE role = ?", string(role),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s role: %w", role, err)
	}
	return n, nil
}

// List returns the holders of role in grant order
func (r *Repository) List(ctx context.Context, role domain.Role) ([]domain.Address, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx,
		"SELECT address FROM access_roles WHERE role = ? ORDER BY granted_at, address", string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s role: %w", role, err)
	}
	defer rows.Close()

	result := make([]domain.Address, 0)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan role holder: %w", err)
		}
		result = append(result, domain.Address(addr))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role holders: %w", err)
	}
	return result, nil
}
