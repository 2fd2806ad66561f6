// Package metrics exposes treasury activity as Prometheus metrics.
package metrics

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/aristath/treasury/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger and its background jobs.
// Ledger figures are fed from committed audit records on the event bus.
type Metrics struct {
	AuditRecords  *prometheus.CounterVec
	Debt          *prometheus.GaugeVec
	ProtocolGains *prometheus.GaugeVec
	ProtocolDebts *prometheus.GaugeVec
	Cap           *prometheus.GaugeVec
	JobDuration   *prometheus.HistogramVec
	JobFailures   *prometheus.CounterVec
}

// New creates a new Metrics instance with every metric registered on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	pair := []string{"strategy", "asset"}

	return &Metrics{
		AuditRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "treasury_audit_records_total",
			Help: "Committed audit records by type",
		}, []string{"type", "module"}),
		Debt: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treasury_strategy_debt",
			Help: "Outstanding principal per strategy and asset, in base units",
		}, pair),
		ProtocolGains: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treasury_protocol_gains",
			Help: "Recognized surplus per strategy and asset, in base units",
		}, pair),
		ProtocolDebts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treasury_protocol_debts",
			Help: "Recognized shortfall per strategy and asset, in base units",
		}, pair),
		Cap: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treasury_strategy_cap",
			Help: "Exposure cap per strategy and asset, in base units",
		}, pair),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "treasury_job_duration_seconds",
			Help:    "Duration of scheduled jobs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		JobFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "treasury_job_failures_total",
			Help: "Failed scheduled job runs",
		}, []string{"job"}),
	}
}

// Subscribe feeds committed records from bus into the metrics and returns the unsubscribe func
func (m *Metrics) Subscribe(bus *events.Bus) func() {
	return bus.SubscribeAll(m.Observe)
}

// Observe updates the metrics from one committed record
func (m *Metrics) Observe(event *events.Event) {
	m.AuditRecords.WithLabelValues(string(event.Type), event.Module).Inc()

	switch data := event.Data.(type) {
	case *events.PushedData:
		m.Debt.WithLabelValues(string(data.Strategy), string(data.Asset)).Set(amount(data.Debt))
	case *events.PulledData:
		labels := []string{string(data.Strategy), string(data.Asset)}
		m.Debt.WithLabelValues(labels...).Set(amount(data.Debt))
		m.ProtocolGains.WithLabelValues(labels...).Set(amount(data.ProtocolGains))
		m.ProtocolDebts.WithLabelValues(labels...).Set(amount(data.ProtocolDebts))
	case *events.CapUpdatedData:
		m.Cap.WithLabelValues(string(data.Strategy), string(data.Asset)).Set(amount(data.Cap))
	}
}

// ObserveJob records the duration and outcome of one job run.
// Call with time.Now() at the start of the run.
func (m *Metrics) ObserveJob(job string, start time.Time, err error) {
	m.JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	if err != nil {
		m.JobFailures.WithLabelValues(job).Inc()
	}
}

// amount converts base units to a float for gauges; precision loss is acceptable there
func amount(v sdkmath.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, err := sdkmath.LegacyNewDecFromInt(v).Float64()
	if err != nil {
		return 0
	}
	return f
}
