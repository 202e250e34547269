// Package server assembles the reference Remote Service: versioned record
// API over sqlite with request logging, panic recovery, rate limiting and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/credisync/internal/config"
	"github.com/iudanet/credisync/internal/server/handlers"
	"github.com/iudanet/credisync/internal/server/metrics"
	"github.com/iudanet/credisync/internal/server/middleware"
	"github.com/iudanet/credisync/internal/server/storage/sqlite"
)

// Server represents the HTTP server of the remote service
type Server struct {
	cfg     *config.ServerConfig
	logger  *slog.Logger
	handler http.Handler
	limiter *middleware.RateLimiter
}

// New wires handlers and middleware over db
func New(cfg *config.ServerConfig, db *sqlite.Storage, logger *slog.Logger) *Server {
	m := metrics.New()
	router := handlers.NewRouter(
		handlers.NewRecordsHandler(logger, db, m),
		handlers.NewHealthHandler(logger, db),
		m.Handler(),
	)

	s := &Server{cfg: cfg, logger: logger}

	// Цепочка: recovery -> logging -> rate limit -> router
	var h http.Handler = router
	if cfg.RateLimit.Requests > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
		h = s.limiter.Middleware(h)
	}
	h = middleware.LoggingWithSkip(logger, []string{"/api/v1/health", "/metrics"})(h)
	s.handler = middleware.RecoveryMiddleware(logger)(h)

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on cfg.Addr and serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.limiter != nil {
		defer s.limiter.Stop()
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	s.logger.Info("Server listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
