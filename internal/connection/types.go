package connection

import (
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/livefeed/internal/decode"
	"github.com/rickgao/livefeed/internal/reconnect"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrClosed          = errors.New("connection closed locally")
	ErrManagerClosed   = errors.New("connection manager closed")
)

// DefaultURL is the production feed endpoint.
const DefaultURL = "wss://www.100xlabs.top/ws"

// State is the lifecycle state of the feed connection.
type State uint8

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://www.100xlabs.top/ws)
	HandshakeTimeout time.Duration // Dial + upgrade timeout
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for control frames
	BufferSize       int           // Frame channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              DefaultURL,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// Config configures the Manager.
type Config struct {
	Client ClientConfig
	Policy reconnect.Policy

	// KeepReconnectOnDisconnect leaves an already armed reconnect timer
	// running when Disconnect is called. By default Disconnect cancels it.
	KeepReconnectOnDisconnect bool
}

// DefaultConfig returns the default endpoint with 5 attempts, 3 seconds apart.
func DefaultConfig() Config {
	return Config{
		Client: DefaultClientConfig(),
		Policy: reconnect.DefaultPolicy(),
	}
}

// ClientFactory creates a fresh client for each connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// Stats is a point-in-time view of the manager.
type Stats struct {
	State          State
	Attempts       int   // Current reconnect attempt counter
	Subscribers    int   // Registered listeners
	Opens          int64 // Successful opens
	OpenFailures   int64 // Failed connection attempts
	Closures       int64 // Open connections lost (remote close or transport error)
	Frames         int64 // Frames received
	DecodeFailures int64 // Frames dropped because they could not be decoded
	Events         int64 // Events broadcast
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		m.newClient = f
	}
}

// WithDecoder replaces the frame decoder.
func WithDecoder(d *decode.Decoder) Option {
	return func(m *Manager) {
		m.decoder = d
	}
}

// WithAfterFunc replaces the reconnect timer implementation.
func WithAfterFunc(fn reconnect.AfterFunc) Option {
	return func(m *Manager) {
		m.afterFunc = fn
	}
}

// WithOnStateChange registers a callback for every state transition.
// Callbacks run in transition order and must not call Connect, Disconnect
// or Close synchronously.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(m *Manager) {
		m.onStateChange = fn
	}
}

// WithOnExhausted registers a callback invoked when the reconnect budget is
// spent and real-time updates have stopped.
func WithOnExhausted(fn func(attempts int)) Option {
	return func(m *Manager) {
		m.onExhausted = fn
	}
}
