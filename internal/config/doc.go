// Package config provides the configuration system for sitepipe.
//
// Configuration is resolved once at startup and never mutated afterwards.
// Layers are applied in order, later layers overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← SITEPIPE_*, highest priority
//	├─────────────────────────────┤
//	│  2. Project config file     │  ← sitepipe.toml / sitepipe.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← lowest priority
//	└─────────────────────────────┘
//
// The environment flag (SITEPIPE_ENV) selects which conditional pipeline
// steps are active. It is read once here and injected into every component
// that needs it through the resulting Config value.
package config
