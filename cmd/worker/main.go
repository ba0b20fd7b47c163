package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/catalog-search-backend/internal/app"
	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/temporalx"
	"github.com/yungbote/catalog-search-backend/internal/temporalx/rebuild"
	"github.com/yungbote/catalog-search-backend/internal/temporalx/temporalworker"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("worker exited", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(log)
	if err != nil {
		return err
	}
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "catalog-search-worker",
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", ""),
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, log, cfg.MetricsAddr)
	}

	tc, err := temporalx.NewClient(log, cfg.Temporal)
	if err != nil {
		return err
	}
	if tc == nil {
		return fmt.Errorf("worker requires TEMPORAL_ADDRESS")
	}
	defer tc.Close()

	if err := rebuild.EnsureSchedules(ctx, tc, cfg.Temporal, log); err != nil {
		log.Warn("Rebuild schedules not ensured; periodic rebuilds may be stale", "error", err)
	}

	runner, err := temporalworker.NewRunner(log, tc, cfg.Temporal, a.Builder)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	<-ctx.Done()
	log.Info("Shutting down worker")
	return nil
}
