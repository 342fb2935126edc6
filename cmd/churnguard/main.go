package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/churnguard/internal/api"
	"github.com/opensource-finance/churnguard/internal/bus"
	"github.com/opensource-finance/churnguard/internal/cache"
	"github.com/opensource-finance/churnguard/internal/config"
	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
	"github.com/opensource-finance/churnguard/internal/metrics"
	"github.com/opensource-finance/churnguard/internal/model"
	"github.com/opensource-finance/churnguard/internal/repository"
	"github.com/opensource-finance/churnguard/internal/scoring"
	"github.com/opensource-finance/churnguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// storedPredictionWindow bounds the per-tier totals exported on /metrics.
const storedPredictionWindow = 24 * time.Hour

func main() {
	configPath := flag.String("config", "", "path to churnguard.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting churnguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"model", cfg.Model.Path,
		"schema", cfg.Model.Schema,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"worker", cfg.Worker.Enabled,
		"tracing", cfg.Tracing.Enabled,
	)

	if err := run(cfg); err != nil {
		slog.Error("churnguard stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *domain.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	instanceID := instanceName()

	// Model first: a contract mismatch is a deployment error and must stop
	// startup. A missing or unreadable artifact only leaves the service
	// unhealthy until a reload succeeds.
	holder := model.NewHolder(cfg.Model.Path, cfg.Model.Schema)
	if err := holder.Load(); err != nil {
		var cerr *domain.ContractError
		if errors.As(err, &cerr) {
			return fmt.Errorf("model does not match the %s feature schema: %w", cfg.Model.Schema, err)
		}
		slog.Warn("starting without a model", "error", err)
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if cacheImpl != nil {
		defer cacheImpl.Close()
	}
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	m := metrics.New()
	m.RegisterRepository(repo, storedPredictionWindow)
	m.SetModelLoaded(holder.Loaded())

	deriver := features.NewDeriver(cfg.Pipeline.Reference)
	svc := scoring.NewService(holder, deriver)
	processor := scoring.NewProcessor(svc, scoring.Options{
		Cache:     cacheImpl,
		Repo:      repo,
		Bus:       busImpl,
		Metrics:   m,
		ResultTTL: cfg.Cache.ResultTTL,
	})

	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, processor, holder)
		if err := asyncWorker.Start(worker.Config{
			WorkerCount: cfg.Worker.WorkerCount,
			InstanceID:  instanceID,
			Metrics:     m,
		}); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
		slog.Info("async worker started", "workers", cfg.Worker.WorkerCount)
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Processor:  processor,
		Models:     holder,
		Repo:       repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Metrics:    m,
		InstanceID: instanceID,
		Version:    Version,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	slog.Info("churnguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"instance", instanceID,
		"model_loaded", holder.Loaded(),
	)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("churnguard shutdown complete")
	return nil
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// instanceName identifies this process on the event bus so it can skip its
// own model reload announcements.
func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "churnguard"
	}
	return host + "-" + uuid.New().String()[:8]
}
