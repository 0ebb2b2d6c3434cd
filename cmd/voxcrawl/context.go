package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"voxcrawl/internal/assemble"
	"voxcrawl/internal/catalog"
	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/fetch"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/pipeline"
	"voxcrawl/internal/scraper"
	"voxcrawl/internal/transform"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = strings.TrimSpace(*c.logLevelFlag)
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Writer: os.Stderr,
	})
}

func (c *commandContext) openStore(cfg *config.Config, logger *slog.Logger) (*checkpoint.Store, error) {
	return checkpoint.Open(cfg, logger)
}

// openCatalog returns the champion catalog store, or nil when the catalog
// cache is disabled in configuration.
func (c *commandContext) openCatalog(cfg *config.Config) (*catalog.Store, error) {
	if !cfg.Catalog.Enabled {
		return nil, nil
	}
	return catalog.Open(cfg)
}

// buildPipeline wires the scraping client and the four stage handlers into
// an orchestrator over the given store.
func (c *commandContext) buildPipeline(cfg *config.Config, store *checkpoint.Store, client *scraper.Client, logger *slog.Logger) *pipeline.Orchestrator {
	return pipeline.New(cfg, store, logger, pipeline.StageSet{
		Discovery: scraper.NewHandler(cfg, store, client, logger),
		Fetch:     fetch.NewHandler(cfg, store, logger),
		Transform: transform.NewHandler(cfg, store, logger),
		Finalize:  assemble.NewHandler(cfg, store, logger),
	})
}

// runWithSignals executes run under the two-signal shutdown contract: the
// first interrupt requests a cooperative stop at the next checkpoint
// boundary, the second cancels the context outright.
func runWithSignals(parent context.Context, orch *pipeline.Orchestrator, logger *slog.Logger, run func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-signals:
			logger.Info("interrupt received, stopping after the current stage (interrupt again to abort)")
			orch.RequestStop()
		case <-done:
			return
		}
		select {
		case <-signals:
			logger.Warn("second interrupt, aborting")
			cancel()
		case <-done:
		}
	}()

	return run(ctx)
}
