package config

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Env is the build environment flag. It decides which conditional pipeline
// steps run. Only "dev" and "prod" activate anything; every other value,
// including the empty string, activates neither branch.
type Env string

const (
	// EnvDev enables development-only steps (source maps).
	EnvDev Env = "dev"
	// EnvProd enables production-only steps (minification, transpiling).
	EnvProd Env = "prod"
)

// IsDev reports whether development-only steps are active.
func (e Env) IsDev() bool { return e == EnvDev }

// IsProd reports whether production-only steps are active.
func (e Env) IsProd() bool { return e == EnvProd }

// String returns the flag value, or "none" when unset.
func (e Env) String() string {
	if e == "" {
		return "none"
	}
	return string(e)
}

// Config is the fully resolved sitepipe configuration.
type Config struct {
	// Env is the environment flag read from SITEPIPE_ENV.
	Env Env `toml:"env" yaml:"env"`

	Paths   PathsConfig   `toml:"paths" yaml:"paths"`
	Styles  StylesConfig  `toml:"styles" yaml:"styles"`
	Scripts ScriptsConfig `toml:"scripts" yaml:"scripts"`
	HTML    CopyConfig    `toml:"html" yaml:"html"`
	Fonts   CopyConfig    `toml:"fonts" yaml:"fonts"`
	Images  CopyConfig    `toml:"images" yaml:"images"`
	Icons   IconsConfig   `toml:"icons" yaml:"icons"`
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Watch   WatchConfig   `toml:"watch" yaml:"watch"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// PathsConfig holds the project layout.
type PathsConfig struct {
	// Root is the project directory every pattern is relative to.
	Root string `toml:"root" yaml:"root"`
	// Src is the source tree that is watched for changes.
	Src string `toml:"src" yaml:"src"`
	// Dist is the output tree that is cleaned and served.
	Dist string `toml:"dist" yaml:"dist"`
}

// StylesConfig configures the stylesheet task.
type StylesConfig struct {
	Inputs []string `toml:"inputs" yaml:"inputs"`
	// Output is the combined stylesheet file name.
	Output string `toml:"output" yaml:"output"`
	// Dest is the directory the combined stylesheet is written to.
	Dest string `toml:"dest" yaml:"dest"`
	// Sass is the dart-sass executable used for .scss/.sass inputs.
	Sass string `toml:"sass" yaml:"sass"`
	// SassArgs are extra arguments appended to the sass invocation.
	SassArgs []string `toml:"sass_args" yaml:"sass_args"`
	// Targets are browser targets for vendor prefixing, e.g. "chrome58".
	Targets []string `toml:"targets" yaml:"targets"`
	// Transforms are Lua scripts applied to the combined stylesheet.
	Transforms []string `toml:"transforms" yaml:"transforms"`
	Watch      []string `toml:"watch" yaml:"watch"`
}

// ScriptsConfig configures the script bundle task.
type ScriptsConfig struct {
	Inputs []string `toml:"inputs" yaml:"inputs"`
	Output string   `toml:"output" yaml:"output"`
	Dest   string   `toml:"dest" yaml:"dest"`
	// Target is the language level production bundles are lowered to.
	Target string `toml:"target" yaml:"target"`
	// Transforms are Lua scripts applied to the combined bundle.
	Transforms []string `toml:"transforms" yaml:"transforms"`
	Watch      []string `toml:"watch" yaml:"watch"`
}

// CopyConfig configures a plain copy task.
type CopyConfig struct {
	Inputs []string `toml:"inputs" yaml:"inputs"`
	Dest   string   `toml:"dest" yaml:"dest"`
	Watch  []string `toml:"watch" yaml:"watch"`
}

// IconsConfig configures the SVG sprite task.
type IconsConfig struct {
	Inputs []string `toml:"inputs" yaml:"inputs"`
	Dest   string   `toml:"dest" yaml:"dest"`
	// Sprite is the generated sprite file name.
	Sprite string `toml:"sprite" yaml:"sprite"`
	// StripAttrs is a regular expression of attribute names removed from every icon.
	StripAttrs string   `toml:"strip_attrs" yaml:"strip_attrs"`
	Watch      []string `toml:"watch" yaml:"watch"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	// Port is the listen port; 0 picks an ephemeral port.
	Port int `toml:"port" yaml:"port"`
}

// WatchConfig configures change detection.
type WatchConfig struct {
	// Debounce coalesces bursts of events for the same path.
	Debounce string   `toml:"debounce" yaml:"debounce"`
	Ignore   []string `toml:"ignore" yaml:"ignore"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Default returns the built-in configuration: the conventional app/ -> dist/
// layout with normalize.css and swiper pulled from node_modules.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Root: ".",
			Src:  "app",
			Dist: "dist",
		},
		Styles: StylesConfig{
			Inputs: []string{
				"node_modules/normalize.css/normalize.css",
				"node_modules/swiper/swiper-bundle.css",
				"node_modules/swiper/swiper-bundle.min.css",
				"app/scss/main.scss",
			},
			Output:  "style.min.css",
			Dest:    "app/css",
			Sass:    "sass",
			Targets: []string{"chrome58", "firefox57", "safari11", "edge16"},
			Watch:   []string{"app/**/*.scss"},
		},
		Scripts: ScriptsConfig{
			Inputs: []string{
				"node_modules/swiper/swiper-bundle.js",
				"node_modules/swiper/swiper-bundle.min.js",
				"app/js/main.js",
			},
			Output: "main.min.js",
			Dest:   "dist",
			Target: "es2015",
			Watch:  []string{"app/js/*.js"},
		},
		HTML: CopyConfig{
			Inputs: []string{"app/index.html"},
			Dest:   "dist",
			Watch:  []string{"app/*.html"},
		},
		Fonts: CopyConfig{
			Inputs: []string{"app/fonts/**/*"},
			Dest:   "dist/fonts",
		},
		Images: CopyConfig{
			Inputs: []string{"app/images/**/*", "!app/images/icons/**"},
			Dest:   "dist/images",
		},
		Icons: IconsConfig{
			Inputs:     []string{"app/images/icons/*.svg"},
			Dest:       "dist/images/icons",
			Sprite:     "sprite.svg",
			StripAttrs: "^(fill|stroke|style|width|height|data.*)$",
			Watch:      []string{"app/images/icons/*.svg"},
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
		},
		Watch: WatchConfig{
			Debounce: "100ms",
			Ignore:   []string{".git/", "node_modules/", "*.swp", "*~"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.Root == "" {
		return invalid("paths.root", "must not be empty")
	}
	if c.Paths.Dist == "" {
		return invalid("paths.dist", "must not be empty")
	}
	if clean := filepath.Clean(c.Paths.Dist); clean == "." || clean == ".." || filepath.IsAbs(clean) {
		return invalid("paths.dist", "%q must be a subdirectory of the project", c.Paths.Dist)
	}
	if c.Styles.Output == "" {
		return invalid("styles.output", "must not be empty")
	}
	if c.Scripts.Output == "" {
		return invalid("scripts.output", "must not be empty")
	}
	if c.Icons.Sprite == "" {
		return invalid("icons.sprite", "must not be empty")
	}
	if _, err := regexp.Compile(c.Icons.StripAttrs); err != nil {
		return invalid("icons.strip_attrs", "%v", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", "%d out of range", c.Server.Port)
	}
	if _, err := c.DebounceDelay(); err != nil {
		return invalid("watch.debounce", "%v", err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", "%q (must be debug, info, warn, or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format", "%q (must be console or json)", c.Logging.Format)
	}
	return nil
}

// DebounceDelay returns the parsed watch debounce delay.
func (c *Config) DebounceDelay() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Watch.Debounce)
}

// Abs resolves a project-relative path against Paths.Root.
func (c *Config) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Paths.Root, path)
}
