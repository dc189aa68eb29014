package config

import "time"

// Config is the root configuration for a feed client process.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Log      LogConfig      `yaml:"log"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Relay    RelayConfig    `yaml:"relay"`
}

// FeedConfig holds the streaming endpoint and reconnect policy.
type FeedConfig struct {
	URL                       string        `yaml:"url"`
	MaxReconnectAttempts      *int          `yaml:"max_reconnect_attempts"` // nil = default; 0 disables reconnects
	ReconnectDelay            time.Duration `yaml:"reconnect_delay"`
	KeepReconnectOnDisconnect bool          `yaml:"keep_reconnect_on_disconnect"`
	HandshakeTimeout          time.Duration `yaml:"handshake_timeout"`
	PingInterval              time.Duration `yaml:"ping_interval"`
	PingTimeout               time.Duration `yaml:"ping_timeout"`
	BufferSize                int           `yaml:"buffer_size"`
}

// Attempts returns the configured maximum reconnect attempts.
func (f FeedConfig) Attempts() int {
	if f.MaxReconnectAttempts == nil {
		return DefaultMaxReconnectAttempts
	}
	return *f.MaxReconnectAttempts
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DBConfig holds the optional Postgres connection used by the recorder.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds event recorder settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// RelayConfig holds NATS relay settings.
type RelayConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}
