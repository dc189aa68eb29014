package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/livefeed/internal/decode"
	"github.com/rickgao/livefeed/internal/reconnect"
	"github.com/rickgao/livefeed/internal/subscriber"
)

// Manager owns the feed connection and fans decoded events out to listeners.
//
// Transport callbacks from a client released by Disconnect or Close are
// discarded; each connection attempt gets a new generation number and only
// the current generation may change state.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	decoder   *decode.Decoder
	registry  *subscriber.Registry
	scheduler *reconnect.Scheduler
	newClient ClientFactory
	afterFunc reconnect.AfterFunc

	onStateChange func(from, to State)
	onExhausted   func(attempts int)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Connection state
	mu     sync.Mutex
	state  State
	client Client
	gen    uint64
	closed bool

	// Serializes observer callbacks in transition order
	notifyMu sync.Mutex

	// Lock-free copy of state for readers (observers may call State)
	stateView atomic.Uint32

	// Counters
	opens          atomic.Int64
	openFailures   atomic.Int64
	closures       atomic.Int64
	frames         atomic.Int64
	decodeFailures atomic.Int64
	events         atomic.Int64
}

// NewManager creates a Manager in the Idle state. Nothing is dialed until
// Connect is called.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		logger:    slog.Default(),
		newClient: NewClient,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.decoder == nil {
		m.decoder = decode.NewDecoder()
	}

	var schedOpts []reconnect.Option
	if m.afterFunc != nil {
		schedOpts = append(schedOpts, reconnect.WithAfterFunc(m.afterFunc))
	}
	m.scheduler = reconnect.NewScheduler(cfg.Policy, schedOpts...)
	m.registry = subscriber.NewRegistry(m.logger)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	return m
}

// Connect opens the feed connection in the background. It is a no-op unless
// the manager is Idle or Closed. A pending reconnect timer is superseded.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.connectAndUnlock()
	return nil
}

// connectAndUnlock starts an attempt if the manager is Idle or Closed and
// releases m.mu. Must be called with m.mu held.
func (m *Manager) connectAndUnlock() {
	if m.state != StateIdle && m.state != StateClosed {
		m.mu.Unlock()
		return
	}

	m.scheduler.Cancel()

	m.gen++
	gen := m.gen
	client := m.newClient(m.cfg.Client, m.logger.With("gen", gen))
	m.client = client

	m.wg.Add(1)
	go m.open(gen, client)

	m.setStateAndUnlock(StateConnecting)
}

// Disconnect closes the current connection, if any. Unless
// Config.KeepReconnectOnDisconnect is set, a pending reconnect is cancelled.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancelReconnect := !m.cfg.KeepReconnectOnDisconnect
	if cancelReconnect && m.scheduler.Cancel() {
		m.logger.Info("pending reconnect cancelled")
	}

	client := m.client
	if client == nil {
		if cancelReconnect {
			m.gen++ // A timer that already fired must not reconnect
		}
		m.mu.Unlock()
		return
	}
	m.gen++ // Release the client: its callbacks are now stale
	m.client = nil
	m.setStateAndUnlock(StateClosing)

	if err := client.Close(); err != nil {
		m.logger.Debug("close failed", "error", err)
	}

	m.mu.Lock()
	if m.state != StateClosing {
		m.mu.Unlock()
		return
	}
	m.setStateAndUnlock(StateClosed)
	m.logger.Info("feed disconnected", "url", m.cfg.Client.URL)
}

// Close disconnects, cancels any pending reconnect, and waits for background
// goroutines. The manager cannot be reused. Close must not be called from a
// listener.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.scheduler.Cancel()
	m.Disconnect()
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	if m.state == StateIdle {
		m.setStateAndUnlock(StateClosed)
	} else {
		m.mu.Unlock()
	}
	return nil
}

// Subscribe registers a listener for decoded events.
func (m *Manager) Subscribe(l subscriber.Listener) error {
	return m.registry.Subscribe(l)
}

// Unsubscribe removes a listener.
func (m *Manager) Unsubscribe(l subscriber.Listener) {
	m.registry.Unsubscribe(l)
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.stateView.Load())
}

// Attempts returns the reconnect attempt counter.
func (m *Manager) Attempts() int {
	return m.scheduler.Attempts()
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	return Stats{
		State:          m.State(),
		Attempts:       m.scheduler.Attempts(),
		Subscribers:    m.registry.Len(),
		Opens:          m.opens.Load(),
		OpenFailures:   m.openFailures.Load(),
		Closures:       m.closures.Load(),
		Frames:         m.frames.Load(),
		DecodeFailures: m.decodeFailures.Load(),
		Events:         m.events.Load(),
	}
}

// setStateAndUnlock records a transition and releases m.mu. Observers are
// notified after m.mu is released but before any later transition.
func (m *Manager) setStateAndUnlock(to State) {
	from := m.state
	m.state = to
	m.stateView.Store(uint32(to))

	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	if from == to {
		return
	}
	m.logger.Debug("state change", "from", from, "to", to)
	if m.onStateChange != nil {
		m.onStateChange(from, to)
	}
}

// open dials the client and, on success, pumps its frames.
func (m *Manager) open(gen uint64, client Client) {
	defer m.wg.Done()

	err := client.Connect(m.ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		client.Close()
		return
	}

	if err != nil {
		m.client = nil
		m.openFailures.Add(1)
		attempt, schedErr := m.armReconnect(gen)
		m.setStateAndUnlock(StateClosed)
		m.logger.Warn("connect failed", "url", m.cfg.Client.URL, "error", err)
		m.reportReconnect(attempt, schedErr)
		return
	}

	m.scheduler.OnSuccess()
	m.opens.Add(1)
	m.setStateAndUnlock(StateOpen)
	m.logger.Info("feed connected", "url", m.cfg.Client.URL)

	m.pump(gen, client)
}

// pump delivers frames in arrival order, then handles the closure.
func (m *Manager) pump(gen uint64, client Client) {
	for frame := range client.Messages() {
		if !m.isCurrent(gen) {
			return
		}
		m.handleFrame(frame)
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.client = nil
	m.closures.Add(1)
	attempt, schedErr := m.armReconnect(gen)
	m.setStateAndUnlock(StateClosed)
	m.logger.Warn("feed connection lost", "url", m.cfg.Client.URL, "error", client.Err())

	client.Close()
	m.reportReconnect(attempt, schedErr)
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// handleFrame decodes one frame and broadcasts it. Undecodable frames are
// dropped without touching the connection.
func (m *Manager) handleFrame(frame decode.Frame) {
	m.frames.Add(1)

	ev, err := m.decoder.Decode(frame)
	if err != nil {
		m.decodeFailures.Add(1)
		m.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	m.events.Add(1)
	m.registry.Broadcast(ev)
}

// armReconnect records the failure of generation gen with the scheduler.
// Must be called with m.mu held, so the closure and the arming are one step
// as far as Connect, Disconnect and Close are concerned.
func (m *Manager) armReconnect(gen uint64) (int, error) {
	if m.closed {
		return m.scheduler.Attempts(), ErrManagerClosed
	}
	return m.scheduler.OnFailure(func() { m.reconnect(gen) })
}

// reportReconnect logs the scheduling outcome and reports exhaustion.
func (m *Manager) reportReconnect(attempt int, err error) {
	switch {
	case errors.Is(err, reconnect.ErrExhausted):
		m.logger.Error("reconnect attempts exhausted, real-time updates stopped",
			"url", m.cfg.Client.URL,
			"attempts", attempt,
		)
		if m.onExhausted != nil {
			m.onExhausted(attempt)
		}
	case errors.Is(err, ErrManagerClosed):
	case err != nil:
		m.logger.Warn("reconnect not scheduled", "error", err)
	default:
		m.logger.Info("reconnect scheduled",
			"attempt", attempt,
			"max_attempts", m.cfg.Policy.MaxAttempts,
			"delay", m.cfg.Policy.Delay,
		)
	}
}

// reconnect runs when the scheduler's timer fires. It is skipped if anything
// (Connect, Disconnect, Close) happened since the timer was armed.
func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("scheduled reconnect skipped", "armed_gen", gen)
		return
	}
	m.connectAndUnlock()
}
