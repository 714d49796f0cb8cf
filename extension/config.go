package extension

// Config holds the Escrow extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.escrow" or "escrow" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Admin is the hex address granted administrator rights on the engine
	// (refunds, service verification). Empty means no administrator.
	Admin string `json:"admin" mapstructure:"admin" yaml:"admin"`

	// HookBuffer is the size of the asynchronous hook dispatch queue
	// (default: 1024).
	HookBuffer int `json:"hook_buffer" mapstructure:"hook_buffer" yaml:"hook_buffer"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HookBuffer: 1024,
	}
}
