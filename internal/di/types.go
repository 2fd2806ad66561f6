// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived component of the treasury and is the
// single source of truth handed to the server and the scheduler.
package di

import (
	"github.com/aristath/treasury/internal/clients/venue"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/metrics"
	"github.com/aristath/treasury/internal/modules/access"
	"github.com/aristath/treasury/internal/modules/ledger"
	"github.com/aristath/treasury/internal/modules/reporting"
	"github.com/aristath/treasury/internal/modules/strategies"
	"github.com/aristath/treasury/internal/modules/strategies/lending"
	"github.com/aristath/treasury/internal/modules/token"
	"github.com/aristath/treasury/internal/reliability"
	"github.com/aristath/treasury/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

// Container holds all application dependencies
type Container struct {
	// Storage
	DB      *database.DB
	Runtime *database.Runtime

	// Audit trail
	EventBus     *events.Bus
	EventManager *events.Manager

	// Domain
	Roles      *access.Registry
	Book       *token.Book
	Venue      *venue.Simulated
	Strategies *strategies.Registry
	Ledger     *ledger.Service
	Lending    *lending.Strategy
	Reporting  *reporting.Service

	// Observability
	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.Metrics

	// Archival, nil when no bucket is configured
	Archiver *reliability.AuditArchiver

	Scheduler *scheduler.Scheduler

	unsubscribe []func()
}

// JobInstances holds the scheduled jobs. Archive is nil when archival is off.
type JobInstances struct {
	Snapshot    scheduler.Job
	Maintenance scheduler.Job
	Archive     scheduler.Job
}

// Close releases the container's resources
func (c *Container) Close() error {
	for _, fn := range c.unsubscribe {
		fn()
	}
	c.unsubscribe = nil
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
