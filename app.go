package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/HydroGest/lmarena/bridge"
	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/core/validation"
	"github.com/HydroGest/lmarena/db"
	"github.com/HydroGest/lmarena/handlers"
	"github.com/HydroGest/lmarena/imagegen"
	"github.com/HydroGest/lmarena/logging"
	"github.com/HydroGest/lmarena/metrics"
	"github.com/HydroGest/lmarena/onebot"
	"github.com/HydroGest/lmarena/shutdown"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	shutdownTimeout    = 30 * time.Second
	pruneInterval      = 6 * time.Hour
	recentGenerations  = 200
	adapterStopTimeout = 10 * time.Second
)

// newLogger builds the process logger from DEV_MODE, LOG_FILE and LOG_LEVEL.
// It runs before LoadConfig so configuration errors are logged too.
func newLogger() (*logging.Logger, error) {
	dev := core.ParseBoolEnv("DEV_MODE", false)
	defaultLevel := zapcore.InfoLevel
	if dev {
		defaultLevel = zapcore.DebugLevel
	}
	level := logging.ParseLogLevel("LOG_LEVEL", defaultLevel)
	return logging.NewLogger(logging.Options{
		Development: dev,
		FilePath:    core.GetEnvOrDefault("LOG_FILE", "lmarena.log"),
		Level:       &level,
	})
}

// runBot starts the bot and blocks until ctx ends or a signal arrives. It
// returns the process exit code.
func runBot(ctx context.Context, envPath string) int {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration",
			zap.String("code", core.GetErrorCode(err)),
			zap.Error(err),
		)
		_ = logger.Sync()
		return core.ExitCodeConfig
	}
	logger.Info("Configuration loaded",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("retry_interval", cfg.RetryInterval),
		zap.Bool("fallback", cfg.EnableFallback),
		zap.Int("commands", len(core.EnabledCommands(cfg.Commands))),
		zap.String("onebot_url", cfg.OneBotURL),
		zap.String("database", cfg.DatabasePath),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	if code := runStartupValidation(ctx, logger, cfg, envPath); code != core.ExitCodeSuccess {
		_ = logger.Sync()
		return code
	}

	manager := shutdown.NewManager(logger.Zap(), shutdown.WithTimeout(shutdownTimeout))
	manager.Start()
	manager.Register("logger", shutdown.StageLogs, shutdown.SyncLogger(logger.Sync))

	if err := startBot(manager, logger, cfg); err != nil {
		logger.Error("Failed to start bot", zap.Error(err))
		_ = manager.Shutdown()
		return core.ExitCodeError
	}

	select {
	case <-manager.Context().Done():
	case <-ctx.Done():
		logger.Info("Stop requested")
		manager.Trigger()
	}

	if err := manager.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown finished with errors: %v\n", err)
	}
	return manager.ExitCode()
}

// runStartupValidation prints the startup report and maps a failed suite to
// ExitCodeConfig.
func runStartupValidation(ctx context.Context, logger *logging.Logger, cfg *core.Config, envPath string) int {
	logger.Info("Starting startup validation...")

	result := validation.NewValidationSuite(cfg).
		WithEnvPath(envPath).
		WithShowProgress(true).
		Validate(ctx, cfg)

	if !result.Success {
		logger.Error("Configuration validation failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Duration("duration", result.Duration),
		)
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Error("Validation step failed",
					zap.String("step", step.Name),
					zap.String("message", step.Message),
					zap.Error(step.Error),
				)
			}
		}
		return core.ExitCodeConfig
	}

	logger.Info("Configuration validation passed",
		zap.Int("checks_passed", result.PassedSteps),
		zap.Int("warnings", result.Warnings),
		zap.Duration("duration", result.Duration),
	)
	return core.ExitCodeSuccess
}

// startBot wires every component and registers its cleanup with manager.
// Components started before an error are still stopped by Shutdown.
func startBot(manager *shutdown.Manager, logger *logging.Logger, cfg *core.Config) error {
	ctx := manager.Context()

	store := metrics.NewStore(recentGenerations, version, time.Now())
	collector := metrics.NewCollector(store)

	client := bridge.NewClientFromConfig(cfg, logger.Named("bridge"), collector)
	orchestrator := bridge.NewOrchestratorFromConfig(cfg, client, logger.Named("bridge"))

	downloader, err := imagegen.NewDownloader(cfg)
	if err != nil {
		return fmt.Errorf("create downloader: %w", err)
	}
	pipeline, err := imagegen.NewPipeline(downloader, logger.Named("imagegen"))
	if err != nil {
		return fmt.Errorf("create image pipeline: %w", err)
	}

	recorder, err := startHistory(ctx, manager, logger, cfg)
	if err != nil {
		return err
	}

	handler, err := handlers.NewHandler(handlers.Options{
		Generator: orchestrator,
		Preparer:  pipeline,
		History:   recorder,
		Observer:  collector,
		Limiter:   handlers.NewRateLimiter(cfg.RateLimitPerMinute),
		Model:     cfg.Model,
		Prefix:    cfg.CommandPrefix,
		Logger:    logger.Named("handler"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}
	router := handlers.NewRouter(cfg.CommandPrefix, cfg.Commands, handler, manager, logger.Named("router"))
	logger.Info("Commands registered", zap.Strings("commands", router.Commands()))

	if cfg.MetricsAddr != "" {
		startMetricsServer(manager, logger, metrics.NewServer(cfg.MetricsAddr, collector, logger.Named("metrics")))
	}

	adapter, err := onebot.NewClient(
		onebot.ConfigFromCore(cfg),
		router,
		handlers.NewCatalog(cfg.Locale),
		store,
		logger.Named("onebot"),
	)
	if err != nil {
		return fmt.Errorf("create onebot client: %w", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := adapter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("OneBot adapter stopped", zap.Error(err))
		}
	}()
	manager.Register("onebot", shutdown.StageAdapter, func(stopCtx context.Context) error {
		return waitDone(stopCtx, done, adapterStopTimeout)
	})

	logger.Info("Bot started",
		zap.String("version", version),
		zap.String("prefix", cfg.CommandPrefix),
		zap.String("locale", cfg.Locale),
		zap.Bool("fallback", orchestrator.FallbackEnabled()),
	)
	return nil
}

// startHistory opens the history database and starts the async recorder and
// the retention pruner. Cleanup drains the recorder before closing the file.
func startHistory(ctx context.Context, manager *shutdown.Manager, logger *logging.Logger, cfg *core.Config) (*db.Recorder, error) {
	database, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	recorder := db.NewRecorder(db.NewRepository(database), logger.Named("history"), db.DefaultRecorderCapacity)
	recorder.Start()

	pruned := database.StartPruner(ctx, db.PruneSchedule{
		Retention: cfg.HistoryRetention,
		Interval:  pruneInterval,
		OnPrune: func(res db.PruneResult, err error) {
			if err != nil {
				logger.Warn("History prune failed", zap.Error(err))
				return
			}
			logger.Info("History pruned",
				zap.Int64("deleted", res.Deleted),
				zap.Time("cutoff", res.Cutoff),
				zap.Duration("duration", res.Duration),
			)
		},
	})

	manager.Register("history-db", shutdown.StageStorage, func(stopCtx context.Context) error {
		err := recorder.Close(stopCtx)
		select {
		case <-pruned:
		case <-stopCtx.Done():
		}
		return errors.Join(err, database.Close())
	})

	logger.Info("History database ready",
		zap.String("path", database.Path()),
		zap.Duration("retention", cfg.HistoryRetention),
	)
	return recorder, nil
}

func startMetricsServer(manager *shutdown.Manager, logger *logging.Logger, srv *http.Server) {
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	manager.Register("metrics-server", shutdown.StageServers, shutdown.HTTPServer(logger.Zap(), "metrics-server", srv))
}

// waitDone waits for done, giving up after timeout or when ctx ends.
func waitDone(ctx context.Context, done <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
