// Package reliability keeps the treasury's data durable: audit log archival
// to object storage and routine database maintenance.
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/events"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	archiveCheckpoint = "audit_log"
	defaultBatchSize  = 500
)

// Uploader stores one archive object under key
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// ArchivedRecord is the on-disk form of one audit record
type ArchivedRecord struct {
	ID        int64  `msgpack:"id"`
	EventID   string `msgpack:"event_id"`
	Type      string `msgpack:"type"`
	Module    string `msgpack:"module"`
	Timestamp int64  `msgpack:"ts"`
	Payload   []byte `msgpack:"payload"`
}

// ArchiveResult summarises one archiver run
type ArchiveResult struct {
	Batches int      `json:"batches"`
	Records int      `json:"records"`
	Keys    []string `json:"keys"`
	LastID  int64    `json:"last_id"`
}

// AuditArchiver ships committed audit records to object storage in
// msgpack+gzip batches. Progress is checkpointed after each upload, and batch
// keys are derived from the record ids so a retried upload overwrites itself.
type AuditArchiver struct {
	rt        *database.Runtime
	repo      *events.Repository
	uploader  Uploader
	prefix    string
	batchSize int
	log       zerolog.Logger
}

// NewAuditArchiver creates a new audit archiver writing under prefix
func NewAuditArchiver(rt *database.Runtime, repo *events.Repository, uploader Uploader, prefix string, batchSize int, log zerolog.Logger) *AuditArchiver {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &AuditArchiver{
		rt:        rt,
		repo:      repo,
		uploader:  uploader,
		prefix:    prefix,
		batchSize: batchSize,
		log:       log.With().Str("service", "audit_archive").Logger(),
	}
}

// Run archives every record appended since the last checkpoint
func (a *AuditArchiver) Run(ctx context.Context) (*ArchiveResult, error) {
	last, err := a.Checkpoint(ctx)
	if err != nil {
		return nil, err
	}

	result := &ArchiveResult{LastID: last, Keys: make([]string, 0)}
	for {
		batch, err := a.repo.ListAfter(ctx, result.LastID, a.batchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		key, err := a.ship(ctx, batch)
		if err != nil {
			return result, err
		}

		lastID := batch[len(batch)-1].ID
		if err := a.saveCheckpoint(ctx, lastID); err != nil {
			return result, err
		}

		result.Batches++
		result.Records += len(batch)
		result.Keys = append(result.Keys, key)
		result.LastID = lastID

		if len(batch) < a.batchSize {
			break
		}
	}

	if result.Records > 0 {
		a.log.Info().
			Int("batches", result.Batches).
			Int("records", result.Records).
			Int64("last_id", result.LastID).
			Msg("Audit log archived")
	}
	return result, nil
}

// Checkpoint returns the id of the last archived record
func (a *AuditArchiver) Checkpoint(ctx context.Context) (int64, error) {
	var last int64
	err := a.rt.DB().Q(ctx).QueryRowContext(ctx,
		"SELECT COALESCE(MAX(last_event_id), 0) FROM archive_checkpoints WHERE name = ?", archiveCheckpoint,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read archive checkpoint: %w", err)
	}
	return last, nil
}

func (a *AuditArchiver) saveCheckpoint(ctx context.Context, lastID int64) error {
	return a.rt.Atomic(ctx, func(ctx context.Context) error {
		_, err := a.rt.DB().Q(ctx).ExecContext(ctx, `
			INSERT INTO archive_checkpoints (name, last_event_id, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET last_event_id = excluded.last_event_id, updated_at = excluded.updated_at
		`, archiveCheckpoint, lastID, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to save archive checkpoint: %w", err)
		}
		return nil
	})
}

func (a *AuditArchiver) ship(ctx context.Context, batch []events.Event) (string, error) {
	body, err := EncodeBatch(batch)
	if err != nil {
		return "", err
	}

	first, last := batch[0], batch[len(batch)-1]
	key := fmt.Sprintf("%s/%s/audit-%012d-%012d.msgpack.gz",
		a.prefix, first.Timestamp.UTC().Format("2006-01-02"), first.ID, last.ID)

	if err := a.uploader.Upload(ctx, key, bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	a.log.Debug().Str("key", key).Int("records", len(batch)).Int("bytes", len(body)).Msg("Archive batch uploaded")
	return key, nil
}

// EncodeBatch serialises records as a gzip-compressed msgpack array
func EncodeBatch(batch []events.Event) ([]byte, error) {
	records := make([]ArchivedRecord, len(batch))
	for i, e := range batch {
		payload, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %d payload: %w", e.ID, err)
		}
		records[i] = ArchivedRecord{
			ID:        e.ID,
			EventID:   e.EventID,
			Type:      string(e.Type),
			Module:    e.Module,
			Timestamp: e.Timestamp.UnixMilli(),
			Payload:   payload,
		}
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := msgpack.NewEncoder(zw).Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode archive batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress archive batch: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBatch reads a batch written by EncodeBatch
func DecodeBatch(r io.Reader) ([]ArchivedRecord, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive batch: %w", err)
	}
	defer zr.Close()

	var records []ArchivedRecord
	if err := msgpack.NewDecoder(zr).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode archive batch: %w", err)
	}
	return records, nil
}
