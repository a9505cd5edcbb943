package ir

// Version constants for the configuration schema and engine.
const (
	// ConfigVersion is the configuration schema version.
	ConfigVersion = "1"

	// EngineVersion is the preproc engine version.
	EngineVersion = "0.1.0"
)
