// Package eventlog buffers lifecycle events for one logical operation and
// commits them as an append-only batch. One Writer is created per request or
// job execution and committed exactly once; it is never shared across tasks.
package eventlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"courier/internal/messaging/metrics"
	"courier/internal/messaging/models"
)

// LogStore persists single event rows.
type LogStore interface {
	Insert(ctx context.Context, event models.Event) (int64, error)
}

// Syncer folds newly committed log rows into the per-message summary.
type Syncer interface {
	Sync(ctx context.Context, messageID uuid.UUID) error
}

// TxRunner executes a function inside a single database transaction carried
// in the function's context. pkg/platform/tx.Run bound to a pool satisfies
// it; tests pass a plain passthrough.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

// Entry is one event to buffer: the message it belongs to and its payload.
type Entry struct {
	MessageID uuid.UUID
	Data      models.EventData
}

// Writer owns a private event buffer and a monotonic timestamp cursor.
type Writer struct {
	store   LogStore
	syncer  Syncer
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	buffer         []models.Event
	lastInsertedAt time.Time
}

// Option configures the Writer.
type Option func(*Writer)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) {
		w.metrics = m
	}
}

// WithClock overrides the wall clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a Writer scoped to one logical operation.
func NewWriter(store LogStore, syncer Syncer, logger *slog.Logger, opts ...Option) *Writer {
	w := &Writer{
		store:  store,
		syncer: syncer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Log buffers one event per entry under the given status and key. Calling
// with zero entries is a caller bug: it is logged as a warning and otherwise
// ignored, never silently dropped and never an error.
func (w *Writer) Log(ctx context.Context, status models.EventStatus, key models.EventKey, entries ...Entry) {
	if len(entries) == 0 {
		w.logger.WarnContext(ctx, "event log called with no events",
			"event_status", string(status),
			"event_type", string(key),
		)
		return
	}

	for _, entry := range entries {
		w.buffer = append(w.buffer, models.Event{
			Status:     status,
			Key:        key,
			MessageID:  entry.MessageID,
			Data:       entry.Data,
			InsertedAt: w.nextTimestamp(),
		})
	}
}

// Pending reports how many events are buffered and not yet committed.
func (w *Writer) Pending() int {
	return len(w.buffer)
}

// Commit flushes the buffer. Each row is inserted on its own: a failing row
// is logged and skipped so one bad event cannot block the rest of the batch.
// After all inserts are attempted the buffer and timestamp cursor reset, and
// the projector runs once per distinct message id touched by the batch,
// concurrently. Projection errors propagate to the caller; insert errors do
// not.
func (w *Writer) Commit(ctx context.Context) error {
	touched := w.flush(ctx)
	return w.syncTouched(ctx, touched)
}

// CommitIn flushes the buffer inside a transaction managed by run, together
// with whatever fn does, so the event rows and fn's writes land or roll back
// as one unit. Projection sync runs only after the transaction has committed;
// it reads from the pool and must see the new rows. An fn error aborts the
// transaction and leaves the buffer intact.
func (w *Writer) CommitIn(ctx context.Context, run TxRunner, fn func(context.Context) error) error {
	var touched map[uuid.UUID]struct{}
	if err := run(ctx, func(txCtx context.Context) error {
		if err := fn(txCtx); err != nil {
			return err
		}
		touched = w.flush(txCtx)
		return nil
	}); err != nil {
		return err
	}
	return w.syncTouched(ctx, touched)
}

func (w *Writer) flush(ctx context.Context) map[uuid.UUID]struct{} {
	if len(w.buffer) == 0 {
		return nil
	}

	touched := make(map[uuid.UUID]struct{}, len(w.buffer))
	for _, event := range w.buffer {
		touched[event.MessageID] = struct{}{}

		if _, err := w.store.Insert(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "failed to persist event, continuing batch",
				"event_status", string(event.Status),
				"event_type", string(event.Key),
				"message_id", event.MessageID,
				"error", err,
			)
			if w.metrics != nil {
				w.metrics.IncrementEventInsertFailures()
			}
			continue
		}
		if w.metrics != nil {
			w.metrics.IncrementEventsCommitted()
		}
	}

	w.buffer = nil
	w.lastInsertedAt = time.Time{}
	return touched
}

// syncTouched runs the projector for every touched message. The group is
// deliberately not context-cancelling: one failing projection must not leave
// an unrelated message's summary stale, so every sync runs to completion and
// the first error is returned.
func (w *Writer) syncTouched(ctx context.Context, touched map[uuid.UUID]struct{}) error {
	var g errgroup.Group
	for messageID := range touched {
		g.Go(func() error {
			return w.syncer.Sync(ctx, messageID)
		})
	}
	return g.Wait()
}

// nextTimestamp assigns strictly increasing millisecond timestamps within
// this writer even when the wall clock stalls or moves backwards. The
// projector trusts this ordering to decide latest state.
func (w *Writer) nextTimestamp() time.Time {
	ts := w.now().Truncate(time.Millisecond)
	if !ts.After(w.lastInsertedAt) {
		ts = w.lastInsertedAt.Add(time.Millisecond)
	}
	w.lastInsertedAt = ts
	return ts
}
