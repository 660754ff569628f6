// Package projection folds the append-only event log into the denormalized
// one-row-per-message summary serving the read API.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"courier/internal/messaging/metrics"
	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

var tracer = otel.Tracer("courier/messaging/projection")

// SummaryStore reads and upserts the projection rows.
type SummaryStore interface {
	Get(ctx context.Context, messageID uuid.UUID) (*models.Summary, error)
	Upsert(ctx context.Context, summary *models.Summary) error
}

// LogStore reads committed event rows in insertion order.
type LogStore interface {
	ListByMessage(ctx context.Context, messageID uuid.UUID, newerThan time.Time) ([]models.Event, error)
}

// MessageStore provides the message fields needed to bootstrap a summary.
type MessageStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Message, error)
}

// Projector keeps summaries in sync with the log. Sync is idempotent and
// re-runnable; concurrent runs for the same message converge via the
// upsert's last-writer-wins semantics.
type Projector struct {
	summaries SummaryStore
	logs      LogStore
	messages  MessageStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Projector.
type Option func(*Projector)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Projector) {
		p.metrics = m
	}
}

// New constructs a Projector.
func New(summaries SummaryStore, logs LogStore, messages MessageStore, logger *slog.Logger, opts ...Option) *Projector {
	p := &Projector{
		summaries: summaries,
		logs:      logs,
		messages:  messages,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sync merges log rows newer than the current summary state into one
// denormalized row for the message. Calling it again with no new rows is a
// no-op; it never writes an empty summary.
func (p *Projector) Sync(ctx context.Context, messageID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "projection.Sync",
		trace.WithAttributes(attribute.String("message.id", messageID.String())))
	defer span.End()

	if p.metrics != nil {
		p.metrics.IncrementProjectorRuns()
	}

	summary, err := p.summaries.Get(ctx, messageID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return p.fail(fmt.Errorf("load summary: %w", err))
	}

	var newerThan time.Time
	if summary != nil {
		newerThan = summary.UpdatedAt
	}

	rows, err := p.logs.ListByMessage(ctx, messageID, newerThan)
	if err != nil {
		return p.fail(fmt.Errorf("load log rows: %w", err))
	}
	if len(rows) == 0 {
		return nil
	}

	if summary == nil {
		summary, err = p.bootstrap(ctx, messageID, rows[0])
		if err != nil {
			return p.fail(err)
		}
		rows = rows[1:]
	}

	for _, row := range rows {
		summary.EventStatus = row.Status
		summary.EventType = row.Key
		summary.LatestLogID = row.ID
		summary.UpdatedAt = row.InsertedAt
		summary.MergeData(row.Data)
	}

	if err := p.summaries.Upsert(ctx, summary); err != nil {
		return p.fail(fmt.Errorf("upsert summary: %w", err))
	}

	p.logger.DebugContext(ctx, "summary synced",
		"message_id", messageID,
		"latest_log_id", summary.LatestLogID,
		"event_type", string(summary.EventType),
		"event_status", string(summary.EventStatus),
	)
	return nil
}

// bootstrap builds the first summary for a message from the message row and
// the oldest unprojected event.
func (p *Projector) bootstrap(ctx context.Context, messageID uuid.UUID, first models.Event) (*models.Summary, error) {
	msg, err := p.messages.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message for bootstrap: %w", err)
	}

	summary := &models.Summary{
		LatestLogID:    first.ID,
		MessageID:      messageID,
		OrganisationID: msg.OrganisationID,
		Subject:        msg.Subject,
		EventStatus:    first.Status,
		EventType:      first.Key,
		ScheduledAt:    msg.ScheduledAt,
		CreatedAt:      first.InsertedAt,
		UpdatedAt:      first.InsertedAt,
	}
	summary.MergeData(first.Data)
	return summary, nil
}

func (p *Projector) fail(err error) error {
	if p.metrics != nil {
		p.metrics.IncrementProjectorFailures()
	}
	return err
}
