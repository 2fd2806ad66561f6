package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/treasury/internal/database"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	repo *Repository
	bus  *Bus
	log  zerolog.Logger
	now  func() time.Time
}

// NewManager creates a new event manager
func NewManager(repo *Repository, bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("service", "events").Logger(),
		now:  time.Now,
	}
}

// Bus returns the bus committed events are published on
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Repository returns the audit log repository
func (m *Manager) Repository() *Repository {
	return m.repo
}

// Emit appends a record to the audit log within the unit carried by ctx and
// adds it to the caller's receipt. The record is published on the bus and
// logged only once the unit commits; a rolled-back unit leaves no record.
func (m *Manager) Emit(ctx context.Context, module string, data EventData) error {
	event := Event{
		EventID:   uuid.New().String(),
		Type:      data.EventType(),
		Module:    module,
		Timestamp: m.now().UTC(),
		Data:      data,
	}

	if err := m.repo.Append(ctx, &event); err != nil {
		return fmt.Errorf("failed to emit %s: %w", event.Type, err)
	}

	if r, ok := receiptFrom(ctx); ok {
		r.add(event)
	}

	database.AfterCommit(ctx, func() {
		m.bus.Publish(&event)

		eventJSON, _ := json.Marshal(&event)
		m.log.Info().
			Str("event_type", string(event.Type)).
			Str("module", module).
			RawJSON("event", eventJSON).
			Msg("Event emitted")
	})

	return nil
}
