package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of every environment variable sitepipe reads.
const EnvPrefix = "SITEPIPE_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "SITEPIPE_")
	mapping map[string]string // Env var -> config path
	lookup  func(string) (string, bool)
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "SITEPIPE_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		lookup:  os.LookupEnv,
		environ: os.Environ,
	}
}

// NewEnvLoaderFrom creates a loader reading from a fixed set of KEY=VALUE
// pairs instead of the process environment.
func NewEnvLoaderFrom(prefix string, env []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return env }
	l.lookup = func(key string) (string, bool) {
		for _, kv := range env {
			if k, v, ok := strings.Cut(kv, "="); ok && k == key {
				return v, true
			}
		}
		return "", false
	}
	return l
}

// defaultEnvMapping returns the default environment variable mappings.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"SITEPIPE_ENV":        "env",
		"SITEPIPE_ROOT":       "paths.root",
		"SITEPIPE_LOG_LEVEL":  "logging.level",
		"SITEPIPE_LOG_FORMAT": "logging.format",
		"SITEPIPE_HOST":       "server.host",
		"SITEPIPE_PORT":       "server.port",
		"SITEPIPE_SASS":       "styles.sass",
		"SITEPIPE_DEBOUNCE":   "watch.debounce",
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	// First, load explicitly mapped variables
	for env, path := range l.mapping {
		if val, ok := l.lookup(env); ok {
			setByPath(config, path, l.parseValue(path, val))
		}
	}

	// Then, scan for additional prefixed variables not in mapping
	for _, env := range l.environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}

		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		// Skip if already mapped
		if _, ok := l.mapping[name]; ok {
			continue
		}

		// SITEPIPE_SERVER_HOST -> server.host
		path, ok := l.envToPath(name)
		if !ok {
			continue
		}
		setByPath(config, path, l.parseValue(path, value))
	}

	return config, nil
}

// envToPath converts SITEPIPE_STYLES_SASS_ARGS to styles.sass_args.
// Variables without a section part are ignored.
func (l *EnvLoader) envToPath(env string) (string, bool) {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok || section == "" || setting == "" {
		return "", false
	}
	return section + "." + setting, true
}

// listSettings are setting names decoded as string lists.
var listSettings = map[string]bool{
	"inputs":    true,
	"watch":     true,
	"targets":   true,
	"ignore":    true,
	"sass_args": true,
}

// parseValue converts numeric settings to integers and leaves everything
// else as a string. List settings are comma separated.
func (l *EnvLoader) parseValue(path, s string) any {
	switch path {
	case "server.port":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		return s
	case "env", "paths.root", "logging.level", "logging.format", "server.host",
		"styles.sass", "watch.debounce":
		return s
	}
	if listSettings[path[strings.LastIndex(path, ".")+1:]] {
		parts := strings.Split(s, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	// Navigate/create intermediate maps
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			next := make(map[string]any)
			current[part] = next
			current = next
		}
	}

	current[parts[len(parts)-1]] = value
}
