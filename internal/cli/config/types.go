// Package config provides configuration management for the sparkify CLI.
//
// This package extends the shared configuration types from internal/config
// with CLI-specific fields and functionality. The shared types are
// re-exported here via type aliases for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/sparkify/internal/config"
)

// EngineConfig is an alias for the shared compute engine configuration.
type EngineConfig = sharedcfg.EngineConfig

// PipelineConfig is an alias for the shared stage location configuration.
type PipelineConfig = sharedcfg.PipelineConfig

// StageConfig is an alias for one shared (input, output) pair.
type StageConfig = sharedcfg.StageConfig

// AWSConfig is an alias for the shared object-storage configuration.
type AWSConfig = sharedcfg.AWSConfig

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment" validate:"required"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output" validate:"oneof=auto text markdown json"`
	LogLevel     string               `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat    string               `koanf:"log_format" validate:"oneof=text json"`
	MetricsFile  string               `koanf:"metrics_file"`
	Engine       *EngineConfig        `koanf:"engine"`
	Pipeline     PipelineConfig       `koanf:"pipeline" validate:"-"`
	AWS          *AWSConfig           `koanf:"aws"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Engine   *EngineConfig   `koanf:"engine"`
	Pipeline *PipelineConfig `koanf:"pipeline"`
	AWS      *AWSConfig      `koanf:"aws"`
}

// Default configuration values
const (
	ConfigFileName    = "sparkify.yaml"
	ConfigFileNameAlt = "sparkify.yml"
	DefaultStateFile  = ".sparkify/state.db"
	DefaultEnv        = "dev"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	EnvPrefix         = "SPARKIFY_"
)
