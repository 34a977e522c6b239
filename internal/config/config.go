// Package config loads the service configuration from environment variables.
//
// The only credential is GEMINI_API_KEY. Its absence never prevents startup;
// remote calls fail individually instead.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fpang/storybook-illustrator/internal/illustrator"
)

// Storage backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendDynamo = "dynamodb"
	BackendMemory = "memory"
)

// Config is the full service configuration.
type Config struct {
	APIKey         string `env:"GEMINI_API_KEY"`
	APIKeySSMParam string `env:"STORYBOOK_API_KEY_SSM_PARAM"`

	// Model identifiers default to illustrator.DefaultAnalysisModel and
	// illustrator.DefaultImageModel.
	AnalysisModel  string        `env:"STORYBOOK_ANALYSIS_MODEL"`
	ImageModel     string        `env:"STORYBOOK_IMAGE_MODEL"`
	RemoteInterval time.Duration `env:"STORYBOOK_REMOTE_INTERVAL" envDefault:"0s"`

	Port       int           `env:"STORYBOOK_PORT" envDefault:"8080"`
	Title      string        `env:"STORYBOOK_TITLE"`
	PreviewTTL time.Duration `env:"STORYBOOK_PREVIEW_TTL" envDefault:"30m"`

	Store Store `envPrefix:"STORYBOOK_STORE_"`

	LogLevel string `env:"STORYBOOK_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"STORYBOOK_LOG_FILE"`

	// Metrics enables embedded-metric-format lines on stdout.
	Metrics bool `env:"STORYBOOK_METRICS" envDefault:"false"`
}

// Store selects and configures the preset persistence backend.
type Store struct {
	Backend    string `env:"BACKEND" envDefault:"file"`
	Dir        string `env:"DIR" envDefault:".storybook"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"storybook.db"`
	S3Bucket   string `env:"S3_BUCKET"`
	S3Prefix   string `env:"S3_PREFIX" envDefault:"storybook/"`
	// DynamoTable items are capped at 400 KB by DynamoDB; larger values are
	// split across chunk items by kv.DynamoStore.
	DynamoTable string `env:"DYNAMO_TABLE"`
}

// Load parses the environment into a Config. It does not validate: callers
// apply their overrides first and then call Validate.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.AnalysisModel) == "" {
		cfg.AnalysisModel = illustrator.DefaultAnalysisModel
	}
	if strings.TrimSpace(cfg.ImageModel) == "" {
		cfg.ImageModel = illustrator.DefaultImageModel
	}
	return cfg, nil
}

// Validate checks cross-field constraints and normalizes the backend name.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("store backend %q requires STORYBOOK_STORE_DIR", c.Store.Backend)
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store backend %q requires STORYBOOK_STORE_SQLITE_PATH", c.Store.Backend)
		}
	case BackendS3:
		if c.Store.S3Bucket == "" {
			return fmt.Errorf("store backend %q requires STORYBOOK_STORE_S3_BUCKET", c.Store.Backend)
		}
	case BackendDynamo:
		if c.Store.DynamoTable == "" {
			return fmt.Errorf("store backend %q requires STORYBOOK_STORE_DYNAMO_TABLE", c.Store.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RemoteInterval < 0 {
		return fmt.Errorf("remote interval must not be negative")
	}
	if strings.TrimSpace(c.AnalysisModel) == "" || strings.TrimSpace(c.ImageModel) == "" {
		return fmt.Errorf("model identifiers must not be empty")
	}
	return nil
}

// HasCredential reports whether an API key is available.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}
