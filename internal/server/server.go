// Package server provides the HTTP server and routing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cht-holly/chtholly-vault/internal/config"
	"github.com/cht-holly/chtholly-vault/internal/di"
	holdingshandlers "github.com/cht-holly/chtholly-vault/internal/modules/holdings/handlers"
	markethandlers "github.com/cht-holly/chtholly-vault/internal/modules/market/handlers"
	portfoliohandlers "github.com/cht-holly/chtholly-vault/internal/modules/portfolio/handlers"
	settingshandlers "github.com/cht-holly/chtholly-vault/internal/modules/settings/handlers"
)

const (
	requestTimeout        = 60 * time.Second
	statusMonitorInterval = 60 * time.Second
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
	monitorCancel  context.CancelFunc
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	container := cfg.Container

	systemHandlers := NewSystemHandlers(
		cfg.Log,
		container.StateDB,
		container.PortfolioService,
		container.MarketDataClient,
		container.ExchangeRateClient,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      container,
		systemHandlers: systemHandlers,
		statusMonitor:  NewStatusMonitor(container.EventManager, systemHandlers, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the event streams are long-lived; API routes
		// are bounded by the timeout middleware instead.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.container.MetricsRegistry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		// Event streams stay outside the timeout and compression middleware
		eventsStreamHandler := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)
		r.Get("/events/ws", eventsStreamHandler.ServeWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			if !devMode {
				r.Use(middleware.Compress(5))
			}

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Post("/cache/clear", s.systemHandlers.HandleClearCaches)
			})

			holdingsHandler := holdingshandlers.NewHandler(s.container.HoldingsRepo, s.log)
			holdingsHandler.RegisterRoutes(r)

			settingsHandler := settingshandlers.NewHandler(s.container.SettingsStore, s.log)
			settingsHandler.RegisterRoutes(r)

			portfolioHandler := portfoliohandlers.NewHandler(s.container.PortfolioService, s.container.SettingsStore, s.container, s.log)
			portfolioHandler.RegisterRoutes(r)

			marketHandler := markethandlers.NewHandler(s.container.MarketDataClient, s.container.ExchangeRateClient, s.log)
			marketHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the status monitor and the HTTP server. It blocks until the
// server stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.monitorCancel = cancel
	s.statusMonitor.Start(ctx, statusMonitorInterval)

	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	if s.monitorCancel != nil {
		s.monitorCancel()
	}
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
