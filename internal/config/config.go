package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/mapstorm/internal/extension"
)

// Validation errors.
var (
	ErrInvalidLogLevel = errors.New("config: invalid log level")
	ErrInvalidDebounce = errors.New("config: debounce must be positive")
	ErrInvalidTimeout  = errors.New("config: execution timeout must be positive")
)

// Config is the top-level mapstorm configuration.
type Config struct {
	Extensions ExtensionsConfig `yaml:"extensions"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExtensionsConfig configures extension discovery and execution.
type ExtensionsConfig struct {
	// Paths are directories searched for extensions. Empty means the
	// default search paths.
	Paths []string `yaml:"paths"`

	// Watch enables live reload of extensions on file changes.
	Watch bool `yaml:"watch"`

	// DebounceMS is the reload debounce in milliseconds.
	DebounceMS int `yaml:"debounceMs"`

	// ExecutionTimeoutMS bounds each script call in milliseconds.
	ExecutionTimeoutMS int `yaml:"executionTimeoutMs"`

	// InstructionLimit bounds each script call's Lua instruction count.
	InstructionLimit int64 `yaml:"instructionLimit"`
}

// OutputConfig configures map writing.
type OutputConfig struct {
	// DefaultFormat is the format used when none can be inferred from
	// the output path.
	DefaultFormat string `yaml:"defaultFormat"`

	// Minimized writes compact output without indentation.
	Minimized bool `yaml:"minimized"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Extensions: ExtensionsConfig{
			Watch:              false,
			DebounceMS:         500,
			ExecutionTimeoutMS: 5000,
		},
		Output: OutputConfig{
			DefaultFormat: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPaths returns the config file locations in load order.
// Later files override earlier ones.
func DefaultPaths() []string {
	paths := make([]string, 0, 2)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mapstorm", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".mapstorm", "config.yaml"))
	}
	return paths
}

// Load reads configuration from the default locations, applying each
// existing file over the defaults in order, then environment overrides.
func Load() (*Config, error) {
	c := Default()
	for _, path := range DefaultPaths() {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads configuration from a single file over the defaults,
// then environment overrides.
func LoadFile(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv applies MAPSTORM_* environment overrides. Environment wins
// over config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("MAPSTORM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MAPSTORM_DEFAULT_FORMAT"); v != "" {
		c.Output.DefaultFormat = v
	}
	if v := os.Getenv("MAPSTORM_EXTENSION_PATHS"); v != "" {
		c.Extensions.Paths = filepath.SplitList(v)
	}
}

// applyFile merges a config file into c. Missing files are skipped.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Extensions.DebounceMS <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDebounce, c.Extensions.DebounceMS)
	}
	if c.Extensions.ExecutionTimeoutMS <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimeout, c.Extensions.ExecutionTimeoutMS)
	}
	return nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
}

// Debounce returns the reload debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Extensions.DebounceMS) * time.Millisecond
}

// ExecutionTimeout returns the script execution timeout as a duration.
func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.Extensions.ExecutionTimeoutMS) * time.Millisecond
}

// ManagerConfig builds the extension manager configuration.
func (c *Config) ManagerConfig(logger *slog.Logger) extension.ManagerConfig {
	return extension.ManagerConfig{
		SearchPaths:      c.Extensions.Paths,
		ExecutionTimeout: c.ExecutionTimeout(),
		InstructionLimit: c.Extensions.InstructionLimit,
		Logger:           logger,
	}
}
