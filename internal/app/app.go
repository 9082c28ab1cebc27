// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/fetcher/internal/config"
	"github.com/JakeFAU/fetcher/internal/fetcher"
	"github.com/JakeFAU/fetcher/internal/logging"
	"github.com/JakeFAU/fetcher/internal/metrics"
	"github.com/JakeFAU/fetcher/internal/sink"
)

// App holds the shared services built once at startup: configuration, the
// logger, the fetch engine every command runs jobs through, and the sink
// completed results are delivered to.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	engine *fetcher.Engine
	sink   sink.Sink
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetEngine returns the shared fetch engine.
func (a *App) GetEngine() *fetcher.Engine {
	return a.engine
}

// GetSink returns the configured result sink.
func (a *App) GetSink() sink.Sink {
	return a.sink
}

// NewApp loads configuration from cfgPath and builds the logger, engine and
// result sink. It fails fast if the sink cannot be reached.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	results, err := sink.New(ctx, cfg.SinkOptions(), logger.Named("sink"))
	if err != nil {
		return nil, fmt.Errorf("init result sink: %w", err)
	}
	return New(cfg, logger, results), nil
}

// New assembles an App from an already loaded configuration. A nil sink
// discards results.
func New(cfg config.Config, logger *zap.Logger, results sink.Sink) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if results == nil {
		results = sink.Nop{}
	}
	engineLogger := logger.Named("fetcher")
	engine := fetcher.New(cfg.FetcherConfig(),
		fetcher.WithLogger(engineLogger),
		fetcher.WithObserver(fetcher.Observers{
			fetcher.NewLogObserver(engineLogger),
			metrics.NewObserver(),
		}),
	)
	logger.Debug("application services initialized",
		zap.Int("max_concurrency", cfg.Engine.MaxConcurrency),
		zap.Duration("default_timeout", cfg.Engine.DefaultTimeout),
	)
	return &App{cfg: cfg, logger: logger, engine: engine, sink: results}
}

// Close releases the result sink and flushes buffered log output.
func (a *App) Close() {
	if err := a.sink.Close(); err != nil {
		a.logger.Warn("error closing result sink", zap.Error(err))
	}
	// Sync on a terminal stdout/stderr returns EINVAL or ENOTTY.
	if err := a.logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		a.logger.Warn("error syncing logger on shutdown", zap.Error(err))
	}
}
