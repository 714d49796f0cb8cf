package extension

import (
	"github.com/xraph/escrow"
	"github.com/xraph/escrow/hook"
	"github.com/xraph/escrow/store"
)

// Option configures the Escrow Forge extension.
type Option func(*Extension)

// WithStore sets the store for the escrow engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes an escrow.Option through to the underlying engine.
func WithEngineOption(opt escrow.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithHook registers an escrow hook.
func WithHook(h hook.Hook) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, escrow.WithHook(h))
	}
}

// WithCustodian sets the fund custodian for the engine.
func WithCustodian(c escrow.Custodian) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, escrow.WithCustodian(c))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithAdmin sets the administrator address, given as a hex string.
func WithAdmin(addr string) Option {
	return func(e *Extension) { e.config.Admin = addr }
}

// WithHookBuffer sets the size of the asynchronous hook dispatch queue.
func WithHookBuffer(n int) Option {
	return func(e *Extension) { e.config.HookBuffer = n }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
