package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	sharedcfg "github.com/leapstack-labs/sparkify/internal/config"
	"github.com/leapstack-labs/sparkify/internal/storage"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// never loaded into the config.
var flagKeys = map[string]string{
	"env":          "environment",
	"state":        "state_path",
	"database":     "engine.database",
	"output":       "output",
	"verbose":      "verbose",
	"log-level":    "log_level",
	"log-format":   "log_format",
	"metrics-file": "metrics_file",
	"song-input":   "pipeline.songs.input",
	"song-output":  "pipeline.songs.output",
	"log-input":    "pipeline.logs.input",
	"log-output":   "pipeline.logs.output",
	"overwrite":    "pipeline.write_mode",
}

// FlagKey returns the config key a CLI flag overrides.
func FlagKey(flag string) (string, bool) {
	key, ok := flagKeys[flag]
	return key, ok
}

// locationFlags are flags whose local values are resolved against the
// working directory rather than the project root.
var locationFlags = []string{"state", "database", "song-input", "song-output", "log-input", "log-output", "metrics-file"}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a sparkify config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a local path relative to baseDir if it's
// not absolute. Empty, in-memory and object-store locations are unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || storage.SchemeOf(path) != storage.SchemeLocal {
		return path
	}
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, the config file,
// SPARKIFY_ environment variables and explicitly set flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"state_path":          DefaultStateFile,
		"environment":         DefaultEnv,
		"verbose":             false,
		"output":              DefaultOutput,
		"log_level":           DefaultLogLevel,
		"log_format":          DefaultLogFormat,
		"pipeline.write_mode": sharedcfg.DefaultWriteMode,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit path, else search upward from the working directory
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	projectRoot := cwd
	if cfgFile == "" {
		if root := findProjectRootUpward(cwd); root != "" {
			projectRoot = root
			cfgFile = configExistsIn(root)
		}
	} else if abs, err := filepath.Abs(cfgFile); err == nil {
		projectRoot = filepath.Dir(abs)
	}

	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: SPARKIFY_LOG_LEVEL -> log_level,
	// SPARKIFY_PIPELINE__SONGS__INPUT -> pipeline.songs.input
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	fromFlags := map[string]bool{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			if f.Name == "overwrite" {
				if on, _ := flags.GetBool("overwrite"); on {
					return key, "overwrite"
				}
				return key, sharedcfg.DefaultWriteMode
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
		for _, name := range locationFlags {
			if f := flags.Lookup(name); f != nil && f.Changed {
				fromFlags[flagKeys[name]] = true
			}
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// 6. Environment-specific overrides
	if envCfg, ok := cfg.Environments[cfg.Environment]; ok {
		cfg.Engine = MergeEngineConfig(cfg.Engine, envCfg.Engine)
		cfg.Pipeline = MergePipelineConfig(cfg.Pipeline, envCfg.Pipeline)
		cfg.AWS = MergeAWSConfig(cfg.AWS, envCfg.AWS)
	}

	if cfg.Engine == nil {
		cfg.Engine = &EngineConfig{}
	}
	sharedcfg.ApplyEngineDefaults(cfg.Engine)
	sharedcfg.ApplyAWSDefaults(cfg.AWS)
	cfg.Engine.Database = sharedcfg.ExpandEnvVars(cfg.Engine.Database, nil)

	// 7. Resolve local paths: flag values against the working directory,
	// everything else against the project root.
	resolve := func(key string, path *string) {
		base := projectRoot
		if fromFlags[key] {
			base = cwd
		}
		*path = resolvePathRelativeTo(*path, base)
	}
	resolve("state_path", &cfg.StatePath)
	resolve("engine.database", &cfg.Engine.Database)
	resolve("metrics_file", &cfg.MetricsFile)
	resolve("pipeline.songs.input", &cfg.Pipeline.Songs.Input)
	resolve("pipeline.songs.output", &cfg.Pipeline.Songs.Output)
	resolve("pipeline.logs.input", &cfg.Pipeline.Logs.Input)
	resolve("pipeline.logs.output", &cfg.Pipeline.Logs.Output)
	if cfg.AWS != nil {
		cfg.AWS.CredentialsFile = resolvePathRelativeTo(sharedcfg.ExpandEnvVars(cfg.AWS.CredentialsFile, nil), projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// MergeEngineConfig merges two engine configs, with override taking precedence.
func MergeEngineConfig(base, override *EngineConfig) *EngineConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &EngineConfig{
		Type:     base.Type,
		Database: base.Database,
		Params:   make(map[string]any),
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return merged
}

// MergePipelineConfig applies the non-empty fields of override to base.
func MergePipelineConfig(base PipelineConfig, override *PipelineConfig) PipelineConfig {
	if override == nil {
		return base
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Songs.Input, override.Songs.Input)
	set(&base.Songs.Output, override.Songs.Output)
	set(&base.Logs.Input, override.Logs.Input)
	set(&base.Logs.Output, override.Logs.Output)
	set(&base.WriteMode, override.WriteMode)
	return base
}

// MergeAWSConfig merges two object-storage configs, with override taking precedence.
func MergeAWSConfig(base, override *AWSConfig) *AWSConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	merged := *base
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&merged.AccessKeyID, override.AccessKeyID)
	set(&merged.SecretAccessKey, override.SecretAccessKey)
	set(&merged.SessionToken, override.SessionToken)
	set(&merged.Region, override.Region)
	set(&merged.Endpoint, override.Endpoint)
	set(&merged.URLStyle, override.URLStyle)
	set(&merged.CredentialsFile, override.CredentialsFile)
	if override.UseSSL != nil {
		merged.UseSSL = override.UseSSL
	}
	return &merged
}
