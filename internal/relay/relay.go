// Package relay republishes decoded feed events to NATS.
//
// Each event goes to <prefix>.<symbol>, or <prefix>.event when the frame has
// no symbol. The payload is the original frame bytes. Publishing is core NATS
// (fire and forget); delivery failures are counted and logged, never retried.
package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/rickgao/livefeed/internal/config"
	"github.com/rickgao/livefeed/internal/decode"
)

// ErrInvalidPrefix is returned for subject prefixes NATS would reject.
var ErrInvalidPrefix = config.ErrInvalidSubjectPrefix

// Publisher is the subset of *nats.Conn the relay uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Stats counts relay activity.
type Stats struct {
	Published int64
	Failed    int64
}

// Relay is a listener that publishes every event it receives.
type Relay struct {
	pub    Publisher
	conn   *nats.Conn // nil when constructed with New
	prefix string
	logger *slog.Logger

	published atomic.Int64
	failed    atomic.Int64
}

// New creates a Relay on an existing publisher.
func New(pub Publisher, prefix string, logger *slog.Logger) (*Relay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Relay{
		pub:    pub,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Connect dials NATS and returns a Relay that owns the connection.
func Connect(cfg config.RelayConfig, logger *slog.Logger) (*Relay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ValidatePrefix(cfg.SubjectPrefix); err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("livefeed-relay"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("relay disconnected from nats", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("relay reconnected to nats", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %q: %w", cfg.URL, err)
	}

	r, err := New(nc, cfg.SubjectPrefix, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	r.conn = nc
	logger.Info("relay connected", "url", nc.ConnectedUrl(), "prefix", cfg.SubjectPrefix)
	return r, nil
}

// HandleEvent publishes the event's raw frame.
func (r *Relay) HandleEvent(ev decode.Event) {
	subject := r.Subject(ev)
	if err := r.pub.Publish(subject, ev.Raw); err != nil {
		r.failed.Add(1)
		r.logger.Warn("relay publish failed", "subject", subject, "error", err)
		return
	}
	r.published.Add(1)
}

// Subject returns the subject an event is published on.
func (r *Relay) Subject(ev decode.Event) string {
	token := sanitizeToken(ev.Symbol())
	if token == "" {
		token = "event"
	}
	return r.prefix + "." + token
}

// Stats returns publish counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Published: r.published.Load(),
		Failed:    r.failed.Load(),
	}
}

// Close drains and closes the NATS connection if the relay owns one.
func (r *Relay) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

// ValidatePrefix checks that prefix is a usable literal subject.
func ValidatePrefix(prefix string) error {
	return config.ValidateSubjectPrefix(prefix)
}

// sanitizeToken makes s safe as a single subject token.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
