// Package server exposes a small operations API over the running engine:
// health, venue tops, balances, the order journal, and the trading toggle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwalczyk/arbot/internal/server/handler"
	"github.com/mwalczyk/arbot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port int
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Engine    *handler.EngineHandler
	Markets   *handler.MarketHandler
	Positions *handler.PositionHandler
	Orders    *handler.OrderHandler
}

// Server is the operations HTTP API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in request logging.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/engine", handlers.Engine.GetState)
	mux.HandleFunc("POST /api/engine/active", handlers.Engine.SetActive)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListTops)
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListBalances)
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListRecent)

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger.With(slog.String("component", "server"))}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
