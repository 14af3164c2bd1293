// Package engine runs the sparkify pipeline.
// It wires the compute engine, the storage handles, the sink and the run
// ledger, and sequences the catalog and usage stages.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sparkify/internal/metrics"
	"github.com/leapstack-labs/sparkify/internal/sink"
	"github.com/leapstack-labs/sparkify/internal/state"
	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"

	// Register the compute engine adapter.
	_ "github.com/leapstack-labs/sparkify/pkg/adapters/duckdb"
)

// Engine orchestrates one pipeline execution at a time.
type Engine struct {
	db       core.Adapter
	store    core.Store
	sink     *sink.Sink
	resolver *storage.Resolver
	metrics  *metrics.Collector
	logger   *slog.Logger

	environment string
}

// Config holds engine configuration.
type Config struct {
	// Adapter configures the compute engine. An empty type means duckdb.
	Adapter core.AdapterConfig
	// StatePath is the run ledger database; empty or ":memory:" keeps it in memory.
	StatePath   string
	Environment string
	Logger      *slog.Logger
	// ObjectStore serves s3:// locations. Nil restricts the run to local paths.
	ObjectStore storage.Storage
	// Metrics receives run counters. Nil creates a private collector.
	Metrics *metrics.Collector
}

// New creates a new engine: it opens the run ledger and connects the
// compute engine.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := state.NewSQLiteStore(logger)
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = ":memory:"
	}
	if err := store.Open(statePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	dbConfig := cfg.Adapter
	if dbConfig.Type == "" {
		dbConfig.Type = "duckdb"
	}

	logger.Debug("connecting to compute engine", "adapter_type", dbConfig.Type)
	db, err := adapter.NewAdapter(dbConfig, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create compute engine adapter: %w", err)
	}
	if err := db.Connect(context.Background(), dbConfig); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to compute engine: %w", err)
	}

	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	resolver := storage.NewResolver(cfg.ObjectStore)

	return &Engine{
		db:          db,
		store:       store,
		sink:        sink.New(db, resolver, logger),
		resolver:    resolver,
		metrics:     collector,
		logger:      logger,
		environment: env,
	}, nil
}

// Close releases the compute engine and the run ledger.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Environment returns the environment runs are recorded under.
func (e *Engine) Environment() string {
	return e.environment
}

// GetStateStore returns the run ledger.
func (e *Engine) GetStateStore() core.Store {
	return e.store
}

// Metrics returns the collector run counters are recorded in.
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}
