package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/CAFxX/httpcompression"

	"gsc-dashboard/internal/config"
	"gsc-dashboard/internal/ingest"
	"gsc-dashboard/internal/middleware"
	"gsc-dashboard/internal/models"
	"gsc-dashboard/internal/observability"
	"gsc-dashboard/internal/server"
	"gsc-dashboard/internal/services"
	"gsc-dashboard/internal/ui/templates"
)

const (
	renderTimeout    = 10 * time.Second
	sampleLoadBudget = 30 * time.Second
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// loadSampleDatasets parses the demo CSVs so first-time visitors see a
// populated dashboard without uploading anything. Missing files are fine;
// a file that fails to parse is only logged.
func loadSampleDatasets(ctx context.Context, paths []string, logger *slog.Logger) []*models.Dataset {
	var datasets []*models.Dataset
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}

		ds, err := ingest.Load(ctx, f, path)
		f.Close()
		if err != nil {
			logger.Warn("skipping sample file", "path", path, "error", err)
			continue
		}

		datasets = append(datasets, ds)
		logger.Info("sample data loaded",
			"path", path,
			"label", ds.Label,
			"rows", len(ds.Records),
			"skipped", ds.SkippedRows,
		)
	}
	return datasets
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	sessions := services.NewStore(cfg.Data.SessionTTL, logger)

	if cfg.Data.AutoloadSamples {
		ctx, cancel := context.WithTimeout(context.Background(), sampleLoadBudget)
		sessions.SetSeed(loadSampleDatasets(ctx, cfg.Data.SampleFiles, logger))
		cancel()
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(sessions, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.MaxUploadBytes(cfg.Data.MaxUploadBytes),
	)

	handler := middlewareChain(srv)

	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		logger.Error("failed to build compression adapter", "error", err)
		os.Exit(1)
	}
	handler = compress(handler)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping session store")
		sessions.Close()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
