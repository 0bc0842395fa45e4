package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-apply/internal/app"
	"smart-apply/internal/config"
	"smart-apply/internal/pipeline"

	"github.com/joho/godotenv"
)

// The worker runs the match pipeline immediately at startup, then on every
// tick until terminated.
func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	container, err := app.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to build container: %v", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Printf("cleanup error: %v", err)
		}
	}()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	if err := container.MigrateUp(migrateCtx); err != nil {
		cancelMigrate()
		logger.Fatalf("failed to run migrations: %v", err)
	}
	cancelMigrate()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("worker status=started interval=%s", cfg.Worker.Interval)

	runOnce(ctx, container, logger)

	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Printf("worker status=stopped")
			return
		case <-ticker.C:
			runOnce(ctx, container, logger)
		}
	}
}

func runOnce(ctx context.Context, container *app.Container, logger *log.Logger) {
	if ctx.Err() != nil {
		return
	}
	if _, err := container.Pipeline.Run(ctx); err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			logger.Printf("worker status=skipped reason=run_in_progress")
			return
		}
		logger.Printf("worker status=error err=%v", err)
	}
}
