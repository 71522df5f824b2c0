// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/symplistic/contentiq-widget/internal/session"
	"github.com/symplistic/contentiq-widget/internal/signer"
	"github.com/symplistic/contentiq-widget/internal/store"
)

// Config holds the widget client configuration.
type Config struct {
	AgentID    string `env:"CONTENTIQ_AGENT_ID"`
	Token      string `env:"CONTENTIQ_TOKEN"`
	BackendURL string `env:"CONTENTIQ_BACKEND_URL" envDefault:"http://localhost:1234"`

	ThreadTimeoutMinutes int           `env:"CONTENTIQ_THREAD_TIMEOUT_MINUTES" envDefault:"5"`
	FeedbackDelay        time.Duration `env:"CONTENTIQ_FEEDBACK_DELAY" envDefault:"30s"`
	RequestTimeout       time.Duration `env:"CONTENTIQ_REQUEST_TIMEOUT" envDefault:"30s"`

	// EagerSession mints a local session id at start-up instead of waiting
	// for the backend to issue one.
	EagerSession bool `env:"CONTENTIQ_EAGER_SESSION" envDefault:"false"`

	Store     string `env:"CONTENTIQ_STORE" envDefault:"file"`
	StorePath string `env:"CONTENTIQ_STORE_PATH" envDefault:"./data/contentiq-sessions.json"`

	Log LogConfig
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// Parse reads configuration from the process environment without
// validating it, so callers can apply flag overrides first.
func Parse() (*Config, error) {
	return parse(env.Options{})
}

// ParseFrom reads configuration from environ instead of the process
// environment.
func ParseFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads and validates configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AgentID) == "" {
		return fmt.Errorf("CONTENTIQ_AGENT_ID cannot be empty")
	}
	if c.Token == "" {
		return fmt.Errorf("CONTENTIQ_TOKEN cannot be empty")
	}
	if err := signer.ValidateSecret(c.Token); err != nil {
		return fmt.Errorf("CONTENTIQ_TOKEN: %w", err)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CONTENTIQ_BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	switch c.Store {
	case store.DriverFile, store.DriverSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("CONTENTIQ_STORE_PATH cannot be empty for %s storage", c.Store)
		}
	case store.DriverMemory:
	default:
		return fmt.Errorf("CONTENTIQ_STORE must be file, sqlite or memory, got %q", c.Store)
	}
	if c.FeedbackDelay <= 0 {
		return fmt.Errorf("CONTENTIQ_FEEDBACK_DELAY must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("CONTENTIQ_REQUEST_TIMEOUT must be > 0")
	}
	return nil
}

// ThreadTimeout returns the inactivity window after which a thread is
// considered over. Non-positive minutes fall back to the default.
func (c *Config) ThreadTimeout() time.Duration {
	return session.TimeoutFromMinutes(c.ThreadTimeoutMinutes)
}
