package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sparkify/internal/cli/config"
	"github.com/leapstack-labs/sparkify/internal/cli/output"
	"github.com/leapstack-labs/sparkify/internal/engine"
	"github.com/leapstack-labs/sparkify/internal/metrics"
	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
	Metrics  *metrics.Collector
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutEngine(cmd)
	cc.Metrics = metrics.NewCollector()

	eng, err := createEngine(cmd.Context(), cc.Cfg, cc.Logger, cc.Metrics)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		_ = eng.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't touch the ledger or the compute engine.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r, ok := output.FromContext(cmd.Context())
	if !ok {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when no
// configuration has been loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		StatePath:    config.DefaultStateFile,
		Environment:  config.DefaultEnv,
		OutputFormat: config.DefaultOutput,
		LogLevel:     config.DefaultLogLevel,
		LogFormat:    config.DefaultLogFormat,
	}
}

func createEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Collector) (*engine.Engine, error) {
	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	creds, err := cfg.AWS.Credentials(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials: %w", err)
	}

	var objectStore storage.Storage
	if usesObjectStore(cfg.Pipeline) {
		client, err := storage.NewS3Client(ctx, creds)
		if err != nil {
			return nil, err
		}
		objectStore = storage.NewS3(client)
		logger.Debug("object store configured", "credentials", creds.String())
	}

	engineCfg := engine.Config{
		StatePath:   cfg.StatePath,
		Environment: cfg.Environment,
		Logger:      logger,
		ObjectStore: objectStore,
		Metrics:     m,
	}
	if cfg.Engine != nil {
		engineCfg.Adapter = cfg.Engine.ToAdapterConfig(creds)
	} else {
		engineCfg.Adapter = core.AdapterConfig{Credentials: creds}
	}

	return engine.New(engineCfg)
}

// usesObjectStore reports whether any stage location is an object-store URI.
func usesObjectStore(p config.PipelineConfig) bool {
	for _, loc := range []string{p.Songs.Input, p.Songs.Output, p.Logs.Input, p.Logs.Output} {
		if storage.SchemeOf(loc) == storage.SchemeS3 {
			return true
		}
	}
	return false
}
