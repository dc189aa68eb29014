package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
feed:
  url: wss://feed.example.com/ws
  max_reconnect_attempts: 7
  reconnect_delay: 500ms
log:
  level: debug
  format: json
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "wss://feed.example.com/ws" {
		t.Errorf("Feed.URL = %q, want %q", cfg.Feed.URL, "wss://feed.example.com/ws")
	}
	if cfg.Feed.Attempts() != 7 {
		t.Errorf("Feed.Attempts() = %d, want 7", cfg.Feed.Attempts())
	}
	if cfg.Feed.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("Feed.ReconnectDelay = %v, want 500ms", cfg.Feed.ReconnectDelay)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_URL", "wss://env.example.com/ws")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
feed:
  url: ${TEST_FEED_URL}
database:
  host: localhost
  name: feed
  user: feed
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "wss://env.example.com/ws" {
		t.Errorf("Feed.URL = %q, want env value", cfg.Feed.URL)
	}
	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "log:\n  level: warn\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Feed.URL != DefaultFeedURL {
		t.Errorf("Feed.URL = %q, want default %q", cfg.Feed.URL, DefaultFeedURL)
	}
	if cfg.Feed.Attempts() != DefaultMaxReconnectAttempts {
		t.Errorf("Feed.Attempts() = %d, want default %d", cfg.Feed.Attempts(), DefaultMaxReconnectAttempts)
	}
	if cfg.Feed.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Feed.ReconnectDelay = %v, want default %v", cfg.Feed.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, DefaultLogFormat)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("Recorder.BatchSize = %d, want default %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
	if cfg.Relay.SubjectPrefix != DefaultSubjectPrefix {
		t.Errorf("Relay.SubjectPrefix = %q, want default %q", cfg.Relay.SubjectPrefix, DefaultSubjectPrefix)
	}
}

func TestLoadWithDefaults_ExplicitZeroAttempts(t *testing.T) {
	path := writeTempFile(t, "feed:\n  max_reconnect_attempts: 0\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Feed.Attempts() != 0 {
		t.Errorf("Feed.Attempts() = %d, want explicit 0 kept", cfg.Feed.Attempts())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "feed: [unclosed")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load(bad yaml) = %v, want parse error", err)
	}
}

func TestValidate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "http url",
			mutate:  func(c *Config) { c.Feed.URL = "https://example.com" },
			wantErr: "ws or wss",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Feed.MaxReconnectAttempts = &negative },
			wantErr: "max_reconnect_attempts",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Feed.ReconnectDelay = -time.Second },
			wantErr: "reconnect_delay",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:    "recorder without database",
			mutate:  func(c *Config) { c.Recorder.Enabled = true },
			wantErr: "database.host",
		},
		{
			name: "recorder with database",
			mutate: func(c *Config) {
				c.Recorder.Enabled = true
				c.Database.Host = "localhost"
				c.Database.Name = "feed"
				c.Database.User = "feed"
			},
		},
		{
			name: "min conns above max",
			mutate: func(c *Config) {
				c.Recorder.Enabled = true
				c.Database.Host = "localhost"
				c.Database.Name = "feed"
				c.Database.User = "feed"
				c.Database.MinConns = 10
			},
			wantErr: "min_conns",
		},
		{
			name: "relay wildcard prefix",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.SubjectPrefix = "feed.>"
			},
			wantErr: "subject_prefix",
		},
		{
			name: "relay prefix with tab",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.SubjectPrefix = "feed\tprod"
			},
			wantErr: "subject_prefix",
		},
		{
			name: "relay prefix with empty token",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.SubjectPrefix = "a..b"
			},
			wantErr: "empty token",
		},
		{
			name: "relay dotted prefix",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.SubjectPrefix = "feeds.prod"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "feed:\n  url: http://wrong\n")

	if _, err := LoadAndValidate(path); err == nil || !strings.Contains(err.Error(), "validate config") {
		t.Errorf("LoadAndValidate = %v, want validation error", err)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
