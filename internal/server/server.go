// Package server provides the HTTP server and routing for the treasury.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/treasury/internal/clients/venue"
	"github.com/aristath/treasury/internal/database"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/access"
	accesshandlers "github.com/aristath/treasury/internal/modules/access/handlers"
	"github.com/aristath/treasury/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/treasury/internal/modules/ledger/handlers"
	"github.com/aristath/treasury/internal/modules/reporting"
	reportinghandlers "github.com/aristath/treasury/internal/modules/reporting/handlers"
	"github.com/aristath/treasury/internal/modules/strategies"
	"github.com/aristath/treasury/internal/modules/token"
	tokenhandlers "github.com/aristath/treasury/internal/modules/token/handlers"
	"github.com/aristath/treasury/internal/utils"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Runtime    *database.Runtime
	Events     *events.Manager
	Roles      *access.Registry
	Ledger     *ledger.Service
	Reporting  *reporting.Service
	Book       *token.Book
	Strategies *strategies.Registry
	Venue      MarketLister
	Gatherer   prometheus.Gatherer // nil serves the default registry
	Port       int
	DevMode    bool
}

// MarketLister reports the markets a lending venue has listed
type MarketLister interface {
	Markets(ctx context.Context) ([]venue.Market, error)
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       Config
	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		startedAt: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: it would cut long-lived websocket streams
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", utils.CallerHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json"))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	gatherer := s.cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		// The stream must not sit behind the request timeout
		stream := NewEventsStreamHandler(s.cfg.Events.Bus(), s.cfg.Events.Repository(), s.log)
		r.Get("/events/stream", stream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/system/status", s.handleSystemStatus)
			r.Get("/events", s.handleListEvents)
			r.Get("/venue/markets", s.handleListMarkets)

			accesshandlers.NewHandler(s.cfg.Roles, s.log).RegisterRoutes(r)
			ledgerhandlers.NewHandler(s.cfg.Ledger, s.log).RegisterRoutes(r)
			reportinghandlers.NewHandler(s.cfg.Reporting, s.log).RegisterRoutes(r)
			tokenhandlers.NewHandler(s.cfg.Book, s.cfg.Roles, s.cfg.DevMode, s.log).RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
