// Package config loads the metaschema tool configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/model"
)

// DefaultVersion is the schema version resolved when none is configured.
const DefaultVersion = "v1.1.3"

// Config represents the complete configuration.
type Config struct {
	Version    string   `yaml:"version" toml:"version"`
	Models     []string `yaml:"models,omitempty" toml:"models,omitempty"`
	Paths      []string `yaml:"paths,omitempty" toml:"paths,omitempty"`
	CacheDir   string   `yaml:"cache_dir" toml:"cache_dir"`
	OutputDir  string   `yaml:"output_dir" toml:"output_dir"`
	Format     string   `yaml:"format" toml:"format"`
	StepLimit  int      `yaml:"step_limit" toml:"step_limit"`
	Strictness string   `yaml:"strictness" toml:"strictness"`
	LogLevel   string   `yaml:"log_level" toml:"log_level"`
	GitHub     GitHub   `yaml:"github" toml:"github"`
}

// GitHub configures the release feed.
type GitHub struct {
	Owner   string `yaml:"owner" toml:"owner"`
	Repo    string `yaml:"repo" toml:"repo"`
	Token   string `yaml:"token" toml:"token"`
	Offline bool   `yaml:"offline" toml:"offline"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version:    DefaultVersion,
		OutputDir:  ".",
		Format:     "json",
		Strictness: "strict",
		LogLevel:   "warn",
		GitHub: GitHub{
			Owner: "usnistgov",
			Repo:  "OSCAL",
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml and .yml are YAML, .toml is TOML. A missing file yields Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the tool cannot act on.
func (c *Config) Validate() error {
	switch c.Format {
	case "json", "yaml", "yml":
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", c.Format)
	}
	if _, ok := model.ParseStrictness(c.Strictness); !ok {
		return fmt.Errorf("unknown strictness %q", c.Strictness)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.StepLimit < 0 {
		return fmt.Errorf("step_limit must not be negative, got %d", c.StepLimit)
	}
	return nil
}

// StrictnessLevel returns the configured strictness preset.
func (c *Config) StrictnessLevel() model.StrictnessLevel {
	level, _ := model.ParseStrictness(c.Strictness)
	return level
}

// Save writes the configuration to path in the format named by its
// extension.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		data, err = toml.Marshal(c)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ParseLogLevel maps trace, debug, info, warn, and error onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return types.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
