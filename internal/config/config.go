// Package config handles configuration loading, validation, and management for observer.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"observer/internal/logging"
	"observer/internal/persistence"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete observer configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Engine tunes detection policy.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// Lenses names the short and long windows and how they are displayed.
	Lenses LensesConfig `toml:"lenses" json:"lenses" yaml:"lenses"`

	// Journal locates the entry database.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// EngineConfig holds detection policy.
type EngineConfig struct {
	// UnparseableDates is "fail-open" (a pair with an unparseable window
	// bound is treated as non-overlapping) or "fail-safe" (it is skipped).
	UnparseableDates string `toml:"unparseable_dates" json:"unparseable_dates" yaml:"unparseable_dates"`

	// StatementForm is "named" or "literal".
	StatementForm string `toml:"statement_form" json:"statement_form" yaml:"statement_form"`
}

// LensesConfig holds the lens pair.
type LensesConfig struct {
	Short     string `toml:"short" json:"short" yaml:"short"`
	Long      string `toml:"long" json:"long" yaml:"long"`
	ShortDays int    `toml:"short_days" json:"short_days" yaml:"short_days"`
	LongDays  int    `toml:"long_days" json:"long_days" yaml:"long_days"`

	// DisplayNames maps lens names to the names used in statements.
	DisplayNames map[string]string `toml:"display_names" json:"display_names" yaml:"display_names"`
}

// JournalConfig holds entry storage configuration.
type JournalConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// OutputPath receives a text exposition dump after each command.
	// Empty means stdout.
	OutputPath string `toml:"output_path" json:"output_path" yaml:"output_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := ObserverDir()

	return &Config{
		Version: Version,
		Engine: EngineConfig{
			UnparseableDates: "fail-open",
			StatementForm:    "named",
		},
		Lenses: LensesConfig{
			Short:     "weekly",
			Long:      "yearly",
			ShortDays: 7,
			LongDays:  365,
			DisplayNames: map[string]string{
				"weekly":  "Weekly",
				"monthly": "Monthly",
				"yearly":  "Yearly",
			},
		},
		Journal: JournalConfig{
			Path: filepath.Join(dir, "journal.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "observer.log"),
			MaxSizeMB:  20,
			MaxBackups: 3,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// ObserverDir returns the base data directory. OBSERVER_DATA_DIR
// overrides the platform default.
func ObserverDir() string {
	if envDir := os.Getenv("OBSERVER_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file yields the defaults. The format
// is chosen by extension: .toml, .json, .yaml or .yml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(cfg)
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		err = enc.Encode(cfg)
		if err == nil {
			err = enc.Close()
		}
	default:
		err = toml.NewEncoder(f).Encode(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Sync()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies OBSERVER_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("OBSERVER_UNPARSEABLE_DATES"); v != "" {
		c.Engine.UnparseableDates = v
	}
	if v := os.Getenv("OBSERVER_STATEMENT_FORM"); v != "" {
		c.Engine.StatementForm = v
	}
	if v := os.Getenv("OBSERVER_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("OBSERVER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OBSERVER_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("OBSERVER_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("OBSERVER_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("OBSERVER_METRICS_OUTPUT"); v != "" {
		c.Metrics.OutputPath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version: c.Version,
		Engine:  c.Engine,
		Lenses:  c.Lenses,
		Journal: c.Journal,
		Logging: c.Logging,
		Metrics: c.Metrics,
	}
	if c.Lenses.DisplayNames != nil {
		clone.Lenses.DisplayNames = make(map[string]string, len(c.Lenses.DisplayNames))
		for k, v := range c.Lenses.DisplayNames {
			clone.Lenses.DisplayNames[k] = v
		}
	}
	return clone
}

// UnparseablePolicy returns the parsed engine policy. Invalid values are
// rejected by Validate; here they fall back to fail-open.
func (c *Config) UnparseablePolicy() persistence.UnparseablePolicy {
	p, _ := persistence.ParseUnparseablePolicy(c.Engine.UnparseableDates)
	return p
}

// Statements returns the statement renderer described by the config.
func (c *Config) Statements() persistence.Statements {
	form, _ := persistence.ParseStatementForm(c.Engine.StatementForm)
	return persistence.Statements{Form: form, DisplayNames: c.Lenses.DisplayNames}
}

// LoggerConfig converts the logging section for logging.New.
func (l LoggingConfig) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(l.Format)
	if err != nil {
		return nil, err
	}
	return &logging.Config{
		Level:      level,
		Format:     format,
		Output:     l.Output,
		FilePath:   l.FilePath,
		MaxSize:    int64(l.MaxSizeMB),
		MaxBackups: l.MaxBackups,
		Compress:   l.Compress,
		Component:  "observer",
	}, nil
}
