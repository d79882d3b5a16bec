package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/fieldmap/internal/proptree"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth; an empty key leaves the API open.
	APIKey string `yaml:"api_key"`

	// People store
	DatabasePath string `yaml:"database_path"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Session and job state
	SessionTTL time.Duration `yaml:"session_ttl"`
	JobTTL     time.Duration `yaml:"job_ttl"`

	// Batch worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Flattening and resolution
	MaxDepth      int    `yaml:"max_depth"`
	IndexArrays   bool   `yaml:"index_arrays"`
	KeyMode       string `yaml:"key_mode"`
	NameFallback  bool   `yaml:"name_fallback"`
	PreserveTypes bool   `yaml:"preserve_types"`

	// Optional pathstore sink for batch outputs
	PathstoreURL    string `yaml:"pathstore_url"`
	PathstoreAPIKey string `yaml:"pathstore_api_key"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:           "8090",
		DatabasePath:   "fieldmap.db",
		MaxUploadBytes: 10 << 20, // 10MB
		SessionTTL:     1 * time.Hour,
		JobTTL:         1 * time.Hour,
		WorkerCount:    4,
		MaxQueueSize:   100,
		MaxDepth:       proptree.DefaultMaxDepth,
		IndexArrays:    true,
		KeyMode:        "path",
		NameFallback:   true,
		LogLevel:       "info",
	}
}

// Load starts from Defaults, overlays the YAML file named by
// FIELDMAP_CONFIG if set, then applies environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("FIELDMAP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("FIELDMAP_API_KEY", cfg.APIKey)
	cfg.DatabasePath = envOr("DATABASE_PATH", cfg.DatabasePath)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.SessionTTL = envDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxDepth = envInt("MAX_DEPTH", cfg.MaxDepth)
	cfg.IndexArrays = envBool("INDEX_ARRAYS", cfg.IndexArrays)
	cfg.KeyMode = envOr("KEY_MODE", cfg.KeyMode)
	cfg.NameFallback = envBool("NAME_FALLBACK", cfg.NameFallback)
	cfg.PreserveTypes = envBool("PRESERVE_TYPES", cfg.PreserveTypes)
	cfg.PathstoreURL = envOr("PATHSTORE_URL", cfg.PathstoreURL)
	cfg.PathstoreAPIKey = envOr("PATHSTORE_API_KEY", cfg.PathstoreAPIKey)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("MAX_DEPTH must be positive, got %d", c.MaxDepth)
	}
	if _, err := proptree.ParseKeyMode(c.KeyMode); err != nil {
		return fmt.Errorf("KEY_MODE: %w", err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	return nil
}

// Mode returns the parsed key mode, falling back to path mode.
func (c Config) Mode() proptree.KeyMode {
	m, _ := proptree.ParseKeyMode(c.KeyMode)
	return m
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
