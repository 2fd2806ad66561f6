package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

// SystemStatus is the response of GET /api/system/status
type SystemStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	LastEventID   int64   `json:"last_event_id"`
	Database      string  `json:"database"`

	DeployedStrategies []domain.Address `json:"deployed_strategies"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":  "healthy",
		"service": "treasury",
	}
	status := http.StatusOK
	if err := s.cfg.Runtime.DB().HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		response["status"] = "unhealthy"
		response["error"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	utils.WriteJSON(w, s.log, status, response)
}

// handleSystemStatus handles GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := SystemStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Database:      s.cfg.Runtime.DB().Name(),
	}

	// 100ms sample keeps the call responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		status.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		status.MemoryPercent = memStat.UsedPercent
	}

	lastID, err := s.cfg.Events.Repository().LastID(r.Context())
	if err != nil {
		utils.WriteError(w, s.log, err)
		return
	}
	status.LastEventID = lastID

	status.DeployedStrategies = []domain.Address{}
	if s.cfg.Strategies != nil {
		status.DeployedStrategies = s.cfg.Strategies.Deployed()
	}

	utils.WriteJSON(w, s.log, http.StatusOK, status)
}

// handleListMarkets handles GET /api/venue/markets
func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Venue == nil {
		utils.WriteError(w, s.log, fmt.Errorf("no venue configured: %w", domain.ErrModuleNotDeployed))
		return
	}

	markets, err := s.cfg.Venue.Markets(r.Context())
	if err != nil {
		utils.WriteError(w, s.log, err)
		return
	}
	utils.WriteJSON(w, s.log, http.StatusOK, map[string]interface{}{"markets": markets})
}

// handleListEvents handles GET /api/events?type=&after=&limit=
// With after set, records are returned oldest first from that id onwards;
// otherwise the latest records are returned newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultEventsLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.WriteError(w, s.log, fmt.Errorf("%w: invalid limit %q", domain.ErrInvalidRequest, raw))
			return
		}
		limit = min(n, maxEventsLimit)
	}
	eventType := events.EventType(query.Get("type"))

	repo := s.cfg.Events.Repository()
	var (
		result []events.Event
		err    error
	)
	if raw := query.Get("after"); raw != "" {
		after, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || after < 0 {
			utils.WriteError(w, s.log, fmt.Errorf("%w: invalid after %q", domain.ErrInvalidRequest, raw))
			return
		}
		result, err = repo.ListAfter(r.Context(), after, limit)
		if err == nil && eventType != "" {
			result = filterType(result, eventType)
		}
	} else {
		result, err = repo.ListRecent(r.Context(), eventType, limit)
	}
	if err != nil {
		utils.WriteError(w, s.log, err)
		return
	}
	if result == nil {
		result = []events.Event{}
	}

	utils.WriteJSON(w, s.log, http.StatusOK, result)
}

func filterType(in []events.Event, t events.EventType) []events.Event {
	out := make([]events.Event, 0, len(in))
	for _, e := range in {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
