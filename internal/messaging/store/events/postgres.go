package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier/internal/messaging/models"
	txcontext "courier/pkg/platform/tx"
)

// PostgresStore persists lifecycle events in the append-only
// messaging_event_logs table. Rows are never updated or deleted here.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed event log store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Insert appends one event row and returns its log id.
func (s *PostgresStore) Insert(ctx context.Context, event models.Event) (int64, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return 0, fmt.Errorf("marshal event data: %w", err)
	}

	query := `
		INSERT INTO messaging_event_logs (event_status, event_type, data, message_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err = s.execer(ctx).QueryRowContext(ctx, query,
		string(event.Status),
		string(event.Key),
		data,
		event.MessageID,
		event.InsertedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event log: %w", err)
	}
	return id, nil
}

// ListByMessage returns events for a message ordered by insertion time
// ascending. A non-zero newerThan restricts the result to rows strictly
// newer than that instant.
func (s *PostgresStore) ListByMessage(ctx context.Context, messageID uuid.UUID, newerThan time.Time) ([]models.Event, error) {
	query := `
		SELECT id, event_status, event_type, data, message_id, created_at
		FROM messaging_event_logs
		WHERE message_id = $1 AND created_at > $2
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, messageID, newerThan)
	if err != nil {
		return nil, fmt.Errorf("query event logs: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByMessageDesc returns all events for a message, newest first. Serves
// the raw-log read API.
func (s *PostgresStore) ListByMessageDesc(ctx context.Context, messageID uuid.UUID) ([]models.Event, error) {
	query := `
		SELECT id, event_status, event_type, data, message_id, created_at
		FROM messaging_event_logs
		WHERE message_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("query event logs: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event

	for rows.Next() {
		var (
			event  models.Event
			status string
			key    string
			data   []byte
		)
		if err := rows.Scan(&event.ID, &status, &key, &data, &event.MessageID, &event.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		event.Status = models.EventStatus(status)
		event.Key = models.EventKey(key)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &event.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event logs: %w", err)
	}
	return events, nil
}
