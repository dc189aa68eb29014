package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Feed.validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Recorder.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < 1 {
			return errors.New("recorder.buffer_size must be >= 1")
		}
		if c.Recorder.FlushInterval <= 0 {
			return errors.New("recorder.flush_interval must be > 0")
		}
	}

	if c.Relay.Enabled {
		if c.Relay.URL == "" {
			return errors.New("relay.url is required")
		}
		if err := ValidateSubjectPrefix(c.Relay.SubjectPrefix); err != nil {
			return fmt.Errorf("relay.subject_prefix: %w", err)
		}
	}

	return nil
}

func (f *FeedConfig) validate() error {
	if f.URL == "" {
		return errors.New("feed.url is required")
	}
	u, err := url.Parse(f.URL)
	if err != nil {
		return fmt.Errorf("feed.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("feed.url must use ws or wss, got %q", u.Scheme)
	}
	if f.Attempts() < 0 {
		return fmt.Errorf("feed.max_reconnect_attempts must be >= 0, got %d", f.Attempts())
	}
	if f.ReconnectDelay < 0 {
		return errors.New("feed.reconnect_delay must be >= 0")
	}
	if f.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ErrInvalidSubjectPrefix is returned for subject prefixes NATS would reject.
var ErrInvalidSubjectPrefix = errors.New("invalid subject prefix")

// ValidateSubjectPrefix checks that prefix is a literal NATS subject: no
// whitespace, no wildcards, no empty tokens.
func ValidateSubjectPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSubjectPrefix)
	}
	if strings.ContainsAny(prefix, " \t\r\n*>") {
		return fmt.Errorf("%w: %q contains whitespace or wildcards", ErrInvalidSubjectPrefix, prefix)
	}
	for _, tok := range strings.Split(prefix, ".") {
		if tok == "" {
			return fmt.Errorf("%w: %q has an empty token", ErrInvalidSubjectPrefix, prefix)
		}
	}
	return nil
}
