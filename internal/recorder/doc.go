// Package recorder persists decoded feed events to Postgres.
//
// The Recorder is a listener: HandleEvent only enqueues, so broadcast is never
// blocked on the database. A consumer goroutine batches rows and inserts them
// with pgx batches; a ticker flushes partial batches. Rows are append-only and
// keyed by event ID.
//
// Only events that were actually received are recorded; frames missed while
// disconnected are not replayed.
package recorder
