package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/symplistic/contentiq-widget/internal/signer"
	"github.com/symplistic/contentiq-widget/internal/store"
)

// DevServerConfig holds the stub backend configuration.
type DevServerConfig struct {
	Port        string `env:"PORT" envDefault:"1234"`
	FrontendURL string `env:"FRONTEND_URL"`

	// Agents maps agent id to its hex secret.
	Agents        map[string]string `env:"DEV_AGENTS" envSeparator:"," envKeyValSeparator:":"`
	MaxSkew       time.Duration     `env:"DEV_MAX_SKEW" envDefault:"5m"`
	ThreadTimeout time.Duration     `env:"DEV_THREAD_TIMEOUT" envDefault:"5m"`
	DoubleEncode  bool              `env:"DEV_DOUBLE_ENCODE" envDefault:"false"`
	StylingJSON   string            `env:"DEV_STYLING_JSON"`

	// Store holds recorded feedback: memory, file or sqlite.
	Store     string `env:"DEV_STORE" envDefault:"memory"`
	StorePath string `env:"DEV_STORE_PATH" envDefault:"./data/devserver.db"`

	// TranscriptDir enables NDJSON transcripts when set.
	TranscriptDir       string `env:"DEV_TRANSCRIPT_DIR"`
	TranscriptQueueSize int    `env:"DEV_TRANSCRIPT_QUEUE_SIZE" envDefault:"1000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadDevServer reads and validates the stub backend configuration.
func LoadDevServer() (*DevServerConfig, error) {
	return loadDevServer(env.Options{})
}

// LoadDevServerFrom is LoadDevServer reading from environ.
func LoadDevServerFrom(environ map[string]string) (*DevServerConfig, error) {
	return loadDevServer(env.Options{Environment: environ})
}

func loadDevServer(opts env.Options) (*DevServerConfig, error) {
	cfg := &DevServerConfig{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *DevServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("DEV_AGENTS must list at least one agent:secret pair")
	}
	for agentID, secret := range c.Agents {
		if strings.TrimSpace(agentID) == "" {
			return fmt.Errorf("DEV_AGENTS contains an empty agent id")
		}
		if err := signer.ValidateSecret(secret); err != nil {
			return fmt.Errorf("DEV_AGENTS secret for %q: %w", agentID, err)
		}
	}
	if c.MaxSkew <= 0 {
		return fmt.Errorf("DEV_MAX_SKEW must be > 0")
	}
	if c.ThreadTimeout <= 0 {
		return fmt.Errorf("DEV_THREAD_TIMEOUT must be > 0")
	}
	if c.TranscriptQueueSize <= 0 {
		return fmt.Errorf("DEV_TRANSCRIPT_QUEUE_SIZE must be > 0")
	}
	switch c.Store {
	case store.DriverMemory:
	case store.DriverFile, store.DriverSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("DEV_STORE_PATH cannot be empty for %s storage", c.Store)
		}
	default:
		return fmt.Errorf("DEV_STORE must be memory, file or sqlite, got %q", c.Store)
	}
	if _, err := c.Styling(); err != nil {
		return err
	}
	return nil
}

// Styling decodes DEV_STYLING_JSON. An empty value yields no overrides.
func (c *DevServerConfig) Styling() (map[string]any, error) {
	if strings.TrimSpace(c.StylingJSON) == "" {
		return map[string]any{}, nil
	}
	var styling map[string]any
	if err := json.Unmarshal([]byte(c.StylingJSON), &styling); err != nil {
		return nil, fmt.Errorf("DEV_STYLING_JSON: %w", err)
	}
	return styling, nil
}

// Log returns the logging settings.
func (c *DevServerConfig) Log() LogConfig {
	return LogConfig{Level: c.LogLevel, Format: c.LogFormat}
}

// IsDevelopment returns true when no explicit frontend origin is configured
// or the origin is local.
func (c *DevServerConfig) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}
