// Package cli implements the skink command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/skinklang/skink"
	"github.com/skinklang/skink/internal/bytecode"
	"github.com/skinklang/skink/internal/cache"
	"github.com/spf13/pflag"
)

// Config holds the resolved settings for one invocation. The keys mirror
// the skink.yaml manifest, so a project manifest and the CLI read the
// same file.
type Config struct {
	Name       string   `koanf:"name"`
	SearchPath []string `koanf:"search_path"`
	Cache      bool     `koanf:"cache"`
	CachePath  string   `koanf:"cache_path"`
	Format     int      `koanf:"format"`
	LogLevel   string   `koanf:"log_level"`

	// ProjectRoot anchors relative paths. It is the manifest's directory
	// when one was found, the working directory otherwise.
	ProjectRoot string `koanf:"-"`
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// BytecodeFormat maps the numeric format key to a bytecode format,
// defaulting to the current one when unset.
func (c *Config) BytecodeFormat() bytecode.Format {
	if c.Format == 0 {
		return bytecode.FormatCurrent
	}
	return bytecode.Format(c.Format)
}

// ResolvedCachePath returns the chunk database path, falling back to the
// default location under the project root.
func (c *Config) ResolvedCachePath() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	return cache.DefaultPath(c.ProjectRoot)
}

// Logger builds a stderr text logger at the configured level.
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.slogLevel()}))
}

func (c *Config) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// GetConfigFileUsed returns the path of the manifest being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// getConfig returns the configuration loaded by the root command, or a
// fresh default load when no command ran yet.
func getConfig() *Config {
	if currentConfig != nil {
		return currentConfig
	}
	cfg, err := LoadConfig("", nil)
	if err != nil {
		return &Config{LogLevel: "warn", ProjectRoot: "."}
	}
	return cfg
}

// LoadConfig loads configuration from the manifest, environment variables,
// and flags. Precedence (highest to lowest): flags > env vars > manifest >
// defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// Search path roots and the cache path given as flags are relative to
	// the working directory, not the project root. Pin them down before
	// the project root is known.
	var flagPaths []string
	var flagCachePath string
	if flags != nil {
		if flags.Changed("path") {
			vs, _ := flags.GetStringSlice("path")
			for _, v := range vs {
				if abs, err := filepath.Abs(v); err == nil {
					flagPaths = append(flagPaths, abs)
				} else {
					flagPaths = append(flagPaths, v)
				}
			}
		}
		if flags.Changed("cache-path") {
			if v, _ := flags.GetString("cache-path"); v != "" {
				if v == ":memory:" {
					flagCachePath = v
				} else {
					flagCachePath, _ = filepath.Abs(v)
				}
			}
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"search_path": []string{},
		"cache":       false,
		"cache_path":  "",
		"format":      0,
		"log_level":   "warn",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Find and load the project manifest
	configFileUsed = cfgFile
	if configFileUsed == "" {
		found, err := skink.FindManifest(".")
		if err != nil {
			return nil, err
		}
		configFileUsed = found
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (SKINK_ prefix)
	// Transform: SKINK_CACHE_PATH -> cache_path. SKINK_PATH is the
	// documented search path variable and list values split on the
	// platform list separator.
	if err := k.Load(env.ProviderWithValue("SKINK_", ".", func(key, value string) (string, interface{}) {
		// A set-but-empty variable means unset
		if value == "" {
			return "", nil
		}
		name := strings.ToLower(strings.TrimPrefix(key, "SKINK_"))
		if name == "path" {
			name = "search_path"
		}
		if name == "search_path" {
			return name, splitPathList(value)
		}
		return name, value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// The CLI uses --path for brevity, the config key is search_path
			if key == "path" {
				return "search_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.Format != 0 && !bytecode.Format(cfg.Format).Known() {
		return nil, fmt.Errorf("unknown bytecode format %d", cfg.Format)
	}

	// 6. Anchor relative paths on the project root
	cfg.ProjectRoot = projectRoot(configFileUsed)
	if len(flagPaths) > 0 {
		cfg.SearchPath = flagPaths
	} else {
		for i, root := range cfg.SearchPath {
			cfg.SearchPath[i] = resolvePathRelativeTo(root, cfg.ProjectRoot)
		}
	}
	if flagCachePath != "" {
		cfg.CachePath = flagCachePath
	} else if cfg.CachePath != ":memory:" {
		cfg.CachePath = resolvePathRelativeTo(cfg.CachePath, cfg.ProjectRoot)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// projectRoot is the manifest's directory when one was found, the working
// directory otherwise.
func projectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not
// absolute. Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func splitPathList(value string) []string {
	var out []string
	for _, p := range filepath.SplitList(value) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
