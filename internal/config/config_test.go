package config

import (
	"strings"
	"testing"
	"time"
)

const validToken = "00112233445566778899aabbccddeeff"

func TestParseFromDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := ParseFrom(map[string]string{
		"CONTENTIQ_AGENT_ID": "agent-1",
		"CONTENTIQ_TOKEN":    validToken,
	})
	if err != nil {
		t.Fatalf("ParseFrom() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.BackendURL != "http://localhost:1234" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.ThreadTimeout() != 5*time.Minute {
		t.Errorf("ThreadTimeout() = %v, want 5m", cfg.ThreadTimeout())
	}
	if cfg.FeedbackDelay != 30*time.Second {
		t.Errorf("FeedbackDelay = %v, want 30s", cfg.FeedbackDelay)
	}
	if cfg.Store != "file" || cfg.StorePath != "./data/contentiq-sessions.json" {
		t.Errorf("store = %q %q", cfg.Store, cfg.StorePath)
	}
	if cfg.Log.Format != "console" || cfg.Log.Level != "info" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestThreadTimeoutFallsBackForNonPositive(t *testing.T) {
	t.Parallel()

	for _, minutes := range []string{"0", "-3"} {
		cfg, err := ParseFrom(map[string]string{"CONTENTIQ_THREAD_TIMEOUT_MINUTES": minutes})
		if err != nil {
			t.Fatalf("ParseFrom(%s) error = %v", minutes, err)
		}
		if got := cfg.ThreadTimeout(); got != 5*time.Minute {
			t.Errorf("ThreadTimeout() with %s = %v, want 5m", minutes, got)
		}
	}

	cfg, err := ParseFrom(map[string]string{"CONTENTIQ_THREAD_TIMEOUT_MINUTES": "12"})
	if err != nil {
		t.Fatalf("ParseFrom() error = %v", err)
	}
	if got := cfg.ThreadTimeout(); got != 12*time.Minute {
		t.Errorf("ThreadTimeout() = %v, want 12m", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			AgentID:        "agent-1",
			Token:          validToken,
			BackendURL:     "http://localhost:1234",
			FeedbackDelay:  time.Second,
			RequestTimeout: time.Second,
			Store:          "memory",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing agent", mutate: func(c *Config) { c.AgentID = " " }, wantErr: "CONTENTIQ_AGENT_ID"},
		{name: "missing token", mutate: func(c *Config) { c.Token = "" }, wantErr: "CONTENTIQ_TOKEN"},
		{name: "malformed token", mutate: func(c *Config) { c.Token = "xyz" }, wantErr: "CONTENTIQ_TOKEN"},
		{name: "relative url", mutate: func(c *Config) { c.BackendURL = "/api" }, wantErr: "CONTENTIQ_BACKEND_URL"},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "redis" }, wantErr: "CONTENTIQ_STORE"},
		{name: "file without path", mutate: func(c *Config) { c.Store = "file" }, wantErr: "CONTENTIQ_STORE_PATH"},
		{name: "zero delay", mutate: func(c *Config) { c.FeedbackDelay = 0 }, wantErr: "CONTENTIQ_FEEDBACK_DELAY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDevServerFrom(t *testing.T) {
	t.Parallel()

	cfg, err := LoadDevServerFrom(map[string]string{
		"DEV_AGENTS":       "agent-1:" + validToken + ",agent-2:abcd",
		"DEV_STYLING_JSON": `{"primary_color":"#ff0000"}`,
	})
	if err != nil {
		t.Fatalf("LoadDevServerFrom() error = %v", err)
	}
	if len(cfg.Agents) != 2 || cfg.Agents["agent-2"] != "abcd" {
		t.Errorf("Agents = %v", cfg.Agents)
	}
	if cfg.Port != "1234" || cfg.MaxSkew != 5*time.Minute || cfg.ThreadTimeout != 5*time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.TranscriptDir != "" || cfg.TranscriptQueueSize != 1000 {
		t.Errorf("transcript defaults = %q, %d", cfg.TranscriptDir, cfg.TranscriptQueueSize)
	}
	if cfg.Log().Format != "json" {
		t.Errorf("Log().Format = %q, want json", cfg.Log().Format)
	}
	styling, err := cfg.Styling()
	if err != nil || styling["primary_color"] != "#ff0000" {
		t.Errorf("Styling() = %v, %v", styling, err)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false without FRONTEND_URL")
	}
}

func TestLoadDevServerRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"no agents":   {},
		"bad secret":  {"DEV_AGENTS": "agent-1:zz"},
		"bad styling": {"DEV_AGENTS": "agent-1:" + validToken, "DEV_STYLING_JSON": "{"},
		"bad queue":   {"DEV_AGENTS": "agent-1:" + validToken, "DEV_TRANSCRIPT_QUEUE_SIZE": "0"},
	}
	for name, environ := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadDevServerFrom(environ); err == nil {
				t.Fatal("LoadDevServerFrom() error = nil")
			}
		})
	}
}
