package config

// Default configuration values.
const (
	DefaultEngineType = "duckdb"
	DefaultRegion     = "us-west-2"
	DefaultWriteMode  = "error_if_exists"
)

// ApplyEngineDefaults applies default values to an EngineConfig.
func ApplyEngineDefaults(e *EngineConfig) {
	if e == nil {
		return
	}
	if e.Type == "" {
		e.Type = DefaultEngineType
	}
}

// ApplyAWSDefaults applies default values to an AWSConfig.
func ApplyAWSDefaults(a *AWSConfig) {
	if a == nil {
		return
	}
	if a.Region == "" {
		a.Region = DefaultRegion
	}
}
