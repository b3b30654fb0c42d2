// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/storage"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	config     *ServerConfig

	db      *storage.DB
	games   *storage.GameRepository
	ratings *storage.RatingRepository
	prices  *storage.PriceRepository
	bundles *storage.BundleRepository
	status  *storage.SyncStatusRepository
	cache   *storage.CacheService

	logger *logging.Logger
}

// NewServer creates a new API server instance. cache may be nil when
// response caching is disabled.
func NewServer(
	config *ServerConfig,
	db *storage.DB,
	games *storage.GameRepository,
	ratings *storage.RatingRepository,
	prices *storage.PriceRepository,
	bundles *storage.BundleRepository,
	status *storage.SyncStatusRepository,
	cache *storage.CacheService,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		config:  config,
		db:      db,
		games:   games,
		ratings: ratings,
		prices:  prices,
		bundles: bundles,
		status:  status,
		cache:   cache,
		logger:  logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Middleware order matters: log and recover first, rate limit after CORS
	// so preflights are never throttled.
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}/price-history", s.handleGetPriceHistory).Methods("GET")

	api.HandleFunc("/deals/best", s.handleBestDeals).Methods("GET")
	api.HandleFunc("/deals/active-sales", s.handleActiveSales).Methods("GET")
	api.HandleFunc("/deals/bundles", s.handleListBundles).Methods("GET")
	api.HandleFunc("/deals/bundles/{id}", s.handleGetBundle).Methods("GET")

	api.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving requests and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"db":     err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
