package common

// KeysDirConfig contains configuration for key/value file loading.
type KeysDirConfig struct {
	// Dir is the directory containing key/value files in TOML format.
	// Each TOML file has [key-name] sections with 'value' and optional
	// 'description' fields.
	// Default: ./keys
	Dir string `toml:"dir"`
}
