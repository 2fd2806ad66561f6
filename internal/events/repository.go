package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/treasury/internal/database"
	"github.com/rs/zerolog"
)

// Repository persists audit records in the audit_log table
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new audit log repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "audit_log").Logger(),
	}
}

// Append writes event through the unit carried by ctx and sets its ID
func (r *Repository) Append(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event.Type, err)
	}

	result, err := r.db.Q(ctx).ExecContext(ctx, `
		INSERT INTO audit_log (event_id, type, module, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.EventID, string(event.Type), event.Module, string(payload), event.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append %s to audit log: %w", event.Type, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read audit log id: %w", err)
	}
	event.ID = id
	return nil
}

// ListAfter returns up to limit records with id > afterID in append order
func (r *Repository) ListAfter(ctx context.Context, afterID int64, limit int) ([]Event, error) {
	rows, err := r.db.Q(ctx).QueryContext(ctx, `
		SELECT id, event_id, type, module, payload, created_at
		FROM audit_log
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// ListRecent returns the latest limit records, newest first, optionally filtered by type
func (r *Repository) ListRecent(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	query := `
		SELECT id, event_id, type, module, payload, created_at
		FROM audit_log
	`
	args := []interface{}{}
	if eventType != "" {
		query += " WHERE type = ?"
		args = append(args, string(eventType))
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// LastID returns the id of the newest record, 0 when the log is empty
func (r *Repository) LastID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.db.Q(ctx).QueryRowContext(ctx, "SELECT MAX(id) FROM audit_log").Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read last audit log id: %w", err)
	}
	return id.Int64, nil
}

func (r *Repository) scanEvents(rows *sql.Rows) ([]Event, error) {
	var result []Event
	for rows.Next() {
		var (
			event     Event
			eventType string
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &event.EventID, &eventType, &event.Module, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		event.Type = EventType(eventType)
		event.Timestamp = time.UnixMilli(createdAt).UTC()

		data, err := decodeData(event.Type, []byte(payload))
		if err != nil {
			r.log.Warn().Err(err).Int64("id", event.ID).Msg("Failed to decode audit payload")
		}
		event.Data = data
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}
	return result, nil
}
