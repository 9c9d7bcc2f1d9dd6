package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/ronanmccormack-ca/areacheck-service/internal/adapter/http"
	"github.com/ronanmccormack-ca/areacheck-service/internal/adapter/opendata"
	"github.com/ronanmccormack-ca/areacheck-service/internal/config"
	"github.com/ronanmccormack-ca/areacheck-service/internal/insight"
	"github.com/ronanmccormack-ca/areacheck-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := opendata.NewClient(cfg.OpenDataBaseURL, cfg.OpenDataTimeout, cfg.OpenDataPageSize, metrics, logger)
	source := opendata.NewCachedClient(client, cfg.CoordCacheSize, metrics)

	service := insight.New(source, cfg.CompareYears(), metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, service, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("areacheck service started",
		"addr", cfg.HTTPAddr,
		"compare_years", cfg.CompareYears(),
		"open_data_base_url", cfg.OpenDataBaseURL,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
