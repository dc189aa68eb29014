package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/livefeed/internal/config"
	"github.com/rickgao/livefeed/internal/decode"
)

// ErrNotStarted is returned by Stop when Start was never called.
var ErrNotStarted = errors.New("recorder not started")

// Schema creates the events table. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS feed_events (
	id          UUID PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL,
	symbol      TEXT,
	price       DOUBLE PRECISION,
	payload     JSONB NOT NULL
)`

const insertEvent = `
	INSERT INTO feed_events (id, received_at, symbol, price, payload)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING`

// DB is the subset of *pgxpool.Pool the recorder uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config controls batching.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns the recorder defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     config.DefaultBatchSize,
		FlushInterval: config.DefaultFlushInterval,
		BufferSize:    config.DefaultRecorderBufferSize,
	}
}

// FromConfig converts the file-level recorder section.
func FromConfig(c config.RecorderConfig) Config {
	return Config{
		BatchSize:     c.BatchSize,
		FlushInterval: c.FlushInterval,
		BufferSize:    c.BufferSize,
	}
}

// Metrics counts recorder activity.
type Metrics struct {
	Enqueued  int64
	Dropped   int64
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64

	Queue QueueStats // Pending events and buffer growth
}

type eventRow struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	Symbol     *string
	Price      *float64
	Payload    []byte
}

// Recorder batches events into the feed_events table.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	input *Queue[eventRow]
	db    DB

	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a Recorder. Events are accepted immediately and buffered
// until Start.
func New(cfg Config, db DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	initial := cfg.BatchSize
	if initial > cfg.BufferSize {
		initial = cfg.BufferSize
	}
	return &Recorder{
		cfg:    cfg,
		logger: logger,
		db:     db,
		input:  NewQueue[eventRow](initial, cfg.BufferSize),
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// EnsureSchema creates the events table if it does not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return err
	}
	return nil
}

// HandleEvent enqueues an event. It never blocks; when the buffer is full
// the event is dropped and counted.
func (r *Recorder) HandleEvent(ev decode.Event) {
	if !r.input.Send(r.transform(ev)) {
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
		return
	}
	r.batchMu.Lock()
	r.metrics.Enqueued++
	r.batchMu.Unlock()
}

// Start begins consuming events and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.quit = make(chan struct{})
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains buffered events, flushes them and shuts down. ctx bounds the
// wait and the final insert.
func (r *Recorder) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return ErrNotStarted
	}
	r.logger.Info("stopping recorder")

	// Closing the queue lets consumeLoop drain what is left before exiting.
	r.once.Do(func() {
		r.input.Close()
		close(r.quit)
		r.flushTicker.Stop()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		r.logger.Info("recorder stopped")
	case <-ctx.Done():
		err = ctx.Err()
		r.logger.Warn("recorder stop timed out")
	}
	r.cancel()

	r.flush(ctx)
	return err
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	m := r.metrics
	r.batchMu.Unlock()

	m.Queue = r.input.Stats()
	return m
}

// consumeLoop moves events from the queue into the pending batch.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		row, ok := r.input.Receive()
		if !ok {
			return
		}
		r.add(row)
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.quit:
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

func (r *Recorder) add(row eventRow) {
	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	// Once the context is cancelled, rows wait for the final flush in Stop.
	if shouldFlush && r.ctx.Err() == nil {
		r.flush(r.ctx)
	}
}

// transform converts an event to a row. Missing symbol or price become NULL.
func (r *Recorder) transform(ev decode.Event) eventRow {
	row := eventRow{
		ID:         ev.ID,
		ReceivedAt: ev.ReceivedAt,
		Payload:    ev.Raw,
	}
	if len(row.Payload) == 0 {
		row.Payload = []byte("{}")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now()
	}
	if s := ev.Symbol(); s != "" {
		row.Symbol = &s
	}
	if p, ok := ev.Price(); ok {
		row.Price = &p
	}
	return row
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	batch := r.batch
	r.batch = make([]eventRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	if r.db == nil {
		return 0, errors.New("recorder has no database")
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertEvent, row.ID, row.ReceivedAt, row.Symbol, row.Price, row.Payload)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
