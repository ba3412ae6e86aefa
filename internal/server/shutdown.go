package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gsc-dashboard/internal/config"
)

const hookTimeout = 10 * time.Second

// GracefulServer runs an http.Server until SIGINT or SIGTERM, then drains
// in-flight requests and runs registered shutdown hooks within the
// configured shutdown timeout.
type GracefulServer struct {
	server *http.Server
	logger *slog.Logger
	config *config.Config

	mu    sync.Mutex
	hooks []func(ctx context.Context) error
}

func NewGracefulServer(server *http.Server, logger *slog.Logger, cfg *config.Config) *GracefulServer {
	return &GracefulServer{
		server: server,
		logger: logger,
		config: cfg,
	}
}

// RegisterShutdownHook adds a cleanup step. Hooks run after the HTTP
// server has drained, in registration order.
func (gs *GracefulServer) RegisterShutdownHook(fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, fn)
}

func (gs *GracefulServer) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		gs.logger.Info("server listening",
			"addr", gs.server.Addr,
			"read_timeout", gs.config.Server.ReadTimeout,
			"write_timeout", gs.config.Server.WriteTimeout,
		)
		serveErr <- gs.server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		gs.logger.Info("shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), gs.config.Server.ShutdownTimeout)
	defer cancel()

	return gs.shutdown(drainCtx)
}

func (gs *GracefulServer) shutdown(ctx context.Context) error {
	gs.logger.Info("draining HTTP server", "timeout", gs.config.Server.ShutdownTimeout)

	var errs []error
	if err := gs.server.Shutdown(ctx); err != nil {
		gs.logger.Error("HTTP server shutdown failed", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	gs.mu.Lock()
	hooks := make([]func(ctx context.Context) error, len(gs.hooks))
	copy(hooks, gs.hooks)
	gs.mu.Unlock()

	for i, hook := range hooks {
		hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
		err := hook(hookCtx)
		cancel()

		if err != nil {
			gs.logger.Error("shutdown hook failed", "hook", i, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	gs.logger.Info("shutdown complete")
	return nil
}
