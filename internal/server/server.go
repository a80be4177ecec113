// Package server provides the HTTP server and routing for Omegafolio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	chartshandlers "github.com/aristath/omegafolio/internal/modules/charts/handlers"
	portfoliohandlers "github.com/aristath/omegafolio/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/aristath/omegafolio/internal/modules/rebalancing/handlers"
	universehandlers "github.com/aristath/omegafolio/internal/modules/universe/handlers"
)

// Config holds server configuration.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool

	PortfolioHandlers   *portfoliohandlers.Handler
	RebalancingHandlers *rebalancinghandlers.Handler
	UniverseHandlers    *universehandlers.Handler
	ChartsHandlers      *chartshandlers.Handler
	SystemHandlers      *SystemHandlers
}

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolios", func(r chi.Router) {
			r.Post("/", s.cfg.PortfolioHandlers.HandleCreate)
			r.Get("/", s.cfg.PortfolioHandlers.HandleList)
			r.Get("/{id}", s.cfg.PortfolioHandlers.HandleGet)
			r.Get("/{id}/history", s.cfg.PortfolioHandlers.HandleGetHistory)
			r.Get("/{id}/chart.png", s.cfg.ChartsHandlers.HandleMarketValueChart)
		})

		r.Route("/rebalancing", func(r chi.Router) {
			r.Post("/portfolios/{id}/trigger", s.cfg.RebalancingHandlers.HandleTrigger)
			r.Get("/runs/{runID}", s.cfg.RebalancingHandlers.HandleGetRun)
			r.Get("/runs/{runID}/ws", s.cfg.RebalancingHandlers.HandleRunWS)
		})

		r.Route("/universe", func(r chi.Router) {
			r.Get("/{name}/instruments", s.cfg.UniverseHandlers.HandleGetInstruments)
			r.Post("/{name}/sync", s.cfg.UniverseHandlers.HandleSync)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", s.cfg.SystemHandlers.HandleHealth)
			r.Post("/backup", s.cfg.SystemHandlers.HandleTriggerBackup)
			r.Get("/backups", s.cfg.SystemHandlers.HandleListBackups)
		})
	})
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Server) Router() http.Handler {
	return s.router
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
