package summaries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

// Filter narrows the summary listing for the read API.
type Filter struct {
	Search         string
	Status         models.EventStatus
	OrganisationID uuid.UUID
	From           time.Time
	To             time.Time
	Limit          int
	Offset         int
}

// PostgresStore persists the per-message projection in
// message_event_summary. The unique constraint on message_id enables upsert.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed summary store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the summary for a message, or sentinel.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, messageID uuid.UUID) (*models.Summary, error) {
	query := `
		SELECT id, messaging_event_logs_id, message_id, organisation_id, subject,
		       event_status, event_type, data, scheduled_at, created_at, updated_at
		FROM message_event_summary
		WHERE message_id = $1
	`
	summary, err := scanSummary(s.db.QueryRowContext(ctx, query, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary for message %s: %w", messageID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	return summary, nil
}

// Upsert writes the summary keyed by message_id, inserting on first
// projection and overwriting all projected fields afterwards.
func (s *PostgresStore) Upsert(ctx context.Context, summary *models.Summary) error {
	data, err := json.Marshal(summary.Data)
	if err != nil {
		return fmt.Errorf("marshal summary data: %w", err)
	}

	query := `
		INSERT INTO message_event_summary (
			messaging_event_logs_id, message_id, organisation_id, subject,
			event_status, event_type, data, scheduled_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id) DO UPDATE SET
			messaging_event_logs_id = EXCLUDED.messaging_event_logs_id,
			organisation_id = EXCLUDED.organisation_id,
			subject = EXCLUDED.subject,
			event_status = EXCLUDED.event_status,
			event_type = EXCLUDED.event_type,
			data = EXCLUDED.data,
			scheduled_at = EXCLUDED.scheduled_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		summary.LatestLogID,
		summary.MessageID,
		summary.OrganisationID,
		summary.Subject,
		string(summary.EventStatus),
		string(summary.EventType),
		data,
		summary.ScheduledAt,
		summary.CreatedAt,
		summary.UpdatedAt,
	).Scan(&summary.ID)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// List returns summaries matching the filter, most recently updated first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]models.Summary, error) {
	query := `
		SELECT id, messaging_event_logs_id, message_id, organisation_id, subject,
		       event_status, event_type, data, scheduled_at, created_at, updated_at
		FROM message_event_summary
		WHERE ($1 = '' OR subject ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR event_status = $2)
		  AND ($3::uuid IS NULL OR organisation_id = $3)
		  AND ($4::timestamptz IS NULL OR updated_at >= $4)
		  AND ($5::timestamptz IS NULL OR updated_at <= $5)
		ORDER BY updated_at DESC
		LIMIT $6 OFFSET $7
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var orgID any
	if filter.OrganisationID != uuid.Nil {
		orgID = filter.OrganisationID
	}
	var from, to any
	if !filter.From.IsZero() {
		from = filter.From
	}
	if !filter.To.IsZero() {
		to = filter.To
	}

	rows, err := s.db.QueryContext(ctx, query,
		filter.Search,
		string(filter.Status),
		orgID,
		from,
		to,
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.Summary, error) {
	var (
		summary     models.Summary
		status, key string
		data        []byte
		scheduledAt sql.NullTime
	)
	err := row.Scan(
		&summary.ID,
		&summary.LatestLogID,
		&summary.MessageID,
		&summary.OrganisationID,
		&summary.Subject,
		&status,
		&key,
		&data,
		&scheduledAt,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	summary.EventStatus = models.EventStatus(status)
	summary.EventType = models.EventKey(key)
	if scheduledAt.Valid {
		summary.ScheduledAt = &scheduledAt.Time
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &summary.Data); err != nil {
			return nil, fmt.Errorf("unmarshal summary data: %w", err)
		}
	}
	return &summary, nil
}
