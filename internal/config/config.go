// Package config loads fiscal-pilot configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// Config is the complete application configuration.
type Config struct {
	Log            LogConfig    `yaml:"log"`
	Store          StoreConfig  `yaml:"store"`
	Server         ServerConfig `yaml:"server"`
	Jobs           JobsConfig   `yaml:"jobs"`
	Model          ModelConfig  `yaml:"model"`
	Export         ExportConfig `yaml:"export"`
	Events         EventsConfig `yaml:"events"`
	Notion         NotionConfig `yaml:"notion"`
	Thresholds     Thresholds   `yaml:"thresholds"`
	CurrencySymbol string       `yaml:"currency_symbol"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	ProjectID  string `yaml:"project_id"`
	DatasetID  string `yaml:"dataset_id"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// JobsConfig configures the in-memory cycle queue.
type JobsConfig struct {
	Workers    int `yaml:"workers"`
	BufferSize int `yaml:"buffer_size"`
	MaxRetries int `yaml:"max_retries"`
}

// ModelConfig configures the model-backed specialists. Disabled by default.
type ModelConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Name       string        `yaml:"name"`
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ExportConfig configures the GCS audit sink. Empty bucket disables it.
type ExportConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// EventsConfig configures NATS publishing. Empty URL disables it.
type EventsConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// NotionConfig configures the action mirror.
type NotionConfig struct {
	TokenEnv          string `yaml:"token_env"`
	ActionsDatabaseID string `yaml:"actions_database_id"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Backend:    BackendSQLite,
			SQLitePath: "fiscal-pilot.db",
			DatasetID:  "fiscal_pilot",
		},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			RequestTimeout: 30 * time.Second,
		},
		Jobs: JobsConfig{
			Workers:    5,
			BufferSize: 100,
			MaxRetries: 3,
		},
		Model: ModelConfig{
			Enabled:    false,
			Name:       "gemini-2.5-flash",
			APIVersion: "v1",
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		Export: ExportConfig{
			Prefix: "recommendations",
		},
		Events: EventsConfig{
			SubjectPrefix: "fiscalpilot",
		},
		Notion: NotionConfig{
			TokenEnv: "NOTION_TOKEN",
		},
		Thresholds:     DefaultThresholds(),
		CurrencySymbol: "₹",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case BackendBigQuery:
		if c.Store.ProjectID == "" || c.Store.DatasetID == "" {
			return fmt.Errorf("store.project_id and store.dataset_id are required for the bigquery backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendBigQuery, c.Store.Backend)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive")
	}
	if c.Jobs.MaxRetries < 0 {
		return fmt.Errorf("jobs.max_retries must not be negative")
	}
	if c.Model.Enabled && c.Model.Name == "" {
		return fmt.Errorf("model.name is required when the model is enabled")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load builds the effective configuration: defaults, then the file at path
// (skipped when empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides infrastructure settings from the environment. lookup
// is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORE_BACKEND", &c.Store.Backend)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("GCP_PROJECT_ID", &c.Store.ProjectID)
	str("BIGQUERY_DATASET", &c.Store.DatasetID)
	str("PORT", &c.Server.Port)
	str("GCS_EXPORT_BUCKET", &c.Export.Bucket)
	str("NATS_URL", &c.Events.URL)
	str("NOTION_ACTIONS_DATABASE_ID", &c.Notion.ActionsDatabaseID)
	str("MODEL_NAME", &c.Model.Name)

	if v, ok := lookup("MODEL_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Model.Enabled = b
		}
	}
	if v, ok := lookup("JOB_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Jobs.Workers = n
		}
	}
}

// NotionToken returns the Notion API token from the configured variable.
func (c *Config) NotionToken() string {
	return os.Getenv(c.Notion.TokenEnv)
}
