package config

// ConfigFileName is the pipeline configuration file looked up in the current
// directory when --config is not given.
const ConfigFileName = "pipeline.conf"

// DefaultConfigPath returns the default pipeline.conf location.
// The configuration belongs to the repository being released, not to the
// user, so it lives next to the project rather than in a per-user directory.
func DefaultConfigPath() string {
	return ConfigFileName
}
