// Package config provides shared configuration types for sparkify.
// This package is decoupled from CLI concerns; the CLI loader layers
// file, environment and flag values into these types.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// EngineConfig configures the compute engine.
type EngineConfig struct {
	Type string `koanf:"type"` // duckdb

	// Database is the engine's working database file; empty means in-memory.
	Database string `koanf:"database"`

	// Params holds adapter-specific configuration (extensions, settings, secrets)
	Params map[string]any `koanf:"params"`
}

// Validate checks the engine type against the adapter registry.
func (e *EngineConfig) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("engine type is required")
	}
	if !adapter.IsRegistered(e.Type) {
		return &adapter.UnknownAdapterError{
			Type:      e.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// ToAdapterConfig converts the engine configuration for the adapter registry.
func (e *EngineConfig) ToAdapterConfig(creds *core.Credentials) core.AdapterConfig {
	return core.AdapterConfig{
		Type:        strings.ToLower(e.Type),
		Path:        e.Database,
		Params:      e.Params,
		Credentials: creds,
	}
}

// StageConfig is one (input, output) location pair.
type StageConfig struct {
	Input  string `koanf:"input" validate:"required"`
	Output string `koanf:"output" validate:"required"`
}

// Paths converts the pair for the engine.
func (s StageConfig) Paths() core.StagePaths {
	return core.StagePaths{Input: s.Input, Output: s.Output}
}

// PipelineConfig holds the two stage location pairs and the write mode.
type PipelineConfig struct {
	Songs     StageConfig `koanf:"songs"`
	Logs      StageConfig `koanf:"logs"`
	WriteMode string      `koanf:"write_mode" validate:"omitempty,oneof=error error_if_exists overwrite"`
}

// RunRequest builds the engine request. The write mode must already be valid.
func (p PipelineConfig) RunRequest() core.RunRequest {
	mode, _ := core.ParseWriteMode(p.WriteMode)
	return core.RunRequest{
		Catalog: p.Songs.Paths(),
		Usage:   p.Logs.Paths(),
		Mode:    mode,
	}
}

// AWSConfig holds object-storage credentials and endpoint settings.
// Key material may be written as ${VAR} references, or left empty and read
// from CredentialsFile.
type AWSConfig struct {
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	SessionToken    string `koanf:"session_token"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	URLStyle        string `koanf:"url_style" validate:"omitempty,oneof=path vhost"`
	UseSSL          *bool  `koanf:"use_ssl"`

	// CredentialsFile is a dotenv-style file (an [AWS] section header is
	// allowed) holding AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
	CredentialsFile string `koanf:"credentials_file"`
}
