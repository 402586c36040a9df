package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are the config file names searched for in the project root,
// in order, when no explicit path is given.
var DefaultFiles = []string{"sitepipe.toml", "sitepipe.yaml", "sitepipe.yml"}

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Options controls how Load resolves configuration.
type Options struct {
	// Path is an explicit config file. When set, it must exist.
	Path string
	// Dir is searched for DefaultFiles when Path is empty. Defaults to ".".
	Dir string
	// FS overrides the file system. Defaults to OSFS.
	FS FileSystem
	// Env overrides the environment loader. Defaults to NewEnvLoader(EnvPrefix).
	Env *EnvLoader
}

// Load resolves config from defaults → file → environment and validates it.
func Load(opts Options) (*Config, error) {
	if opts.FS == nil {
		opts.FS = OSFS{}
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Env == nil {
		opts.Env = NewEnvLoader(EnvPrefix)
	}

	cfg := Default()

	path, err := locate(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := mergeFile(opts.FS, cfg, path); err != nil {
			return nil, err
		}
		// A root given in a config file is relative to that file.
		if !filepath.IsAbs(cfg.Paths.Root) {
			cfg.Paths.Root = filepath.Join(filepath.Dir(path), cfg.Paths.Root)
		}
	}

	env, err := opts.Env.Load()
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if len(env) > 0 {
		if err := mergeMap(cfg, env); err != nil {
			return nil, fmt.Errorf("applying environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// locate returns the config file to read, or "" when none applies.
func locate(opts Options) (string, error) {
	if opts.Path != "" {
		if _, err := opts.FS.Stat(opts.Path); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrFileNotFound, opts.Path)
			}
			return "", err
		}
		return opts.Path, nil
	}
	for _, name := range DefaultFiles {
		p := filepath.Join(opts.Dir, name)
		if _, err := opts.FS.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// mergeFile decodes the file over dst. Fields absent from the file keep
// their current values.
func mergeFile(fsys FileSystem, dst *Config, path string) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(dst)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(dst)
		if errors.Is(err, io.EOF) {
			// Empty YAML document.
			err = nil
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// mergeMap decodes a nested settings map over dst by round-tripping it
// through TOML, so map layers share the file decoding rules.
func mergeMap(dst *Config, values map[string]any) error {
	data, err := toml.Marshal(values)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, dst)
}
