package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
	txcontext "courier/pkg/platform/tx"
)

// PostgresStore reads messages owned by the CRUD layer and writes the narrow
// delivery-relevant fields the pipeline is allowed to touch.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed message store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Get returns a message by id, or sentinel.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `
		SELECT id, subject, body, rich_body, excerpt, organisation_id, user_id,
		       security_level, attachment_ids, transports, scheduled_at,
		       is_seen, is_delivered, created_at, updated_at
		FROM messages
		WHERE id = $1
	`

	var (
		msg           models.Message
		securityLevel string
		attachmentIDs []uuid.UUID
		transports    []string
		scheduledAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.Subject,
		&msg.Body,
		&msg.RichBody,
		&msg.Excerpt,
		&msg.OrganisationID,
		&msg.UserID,
		&securityLevel,
		pq.Array(&attachmentIDs),
		pq.Array(&transports),
		&scheduledAt,
		&msg.IsSeen,
		&msg.IsDelivered,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}

	msg.SecurityLevel = models.SecurityLevel(securityLevel)
	msg.AttachmentIDs = attachmentIDs
	for _, t := range transports {
		msg.Transports = append(msg.Transports, models.ChannelType(t))
	}
	if scheduledAt.Valid {
		msg.ScheduledAt = &scheduledAt.Time
	}
	return &msg, nil
}

// SetSeen flips the is_seen flag. Part of the narrow update path; everything
// else on messages belongs to the CRUD layer.
func (s *PostgresStore) SetSeen(ctx context.Context, id uuid.UUID, seen bool) error {
	return s.setFlag(ctx, id, "is_seen", seen)
}

// SetDelivered flips the is_delivered flag after a successful send.
func (s *PostgresStore) SetDelivered(ctx context.Context, id uuid.UUID, delivered bool) error {
	return s.setFlag(ctx, id, "is_delivered", delivered)
}

func (s *PostgresStore) setFlag(ctx context.Context, id uuid.UUID, column string, value bool) error {
	query := fmt.Sprintf(`UPDATE messages SET %s = $1, updated_at = now() WHERE id = $2`, column)
	res, err := s.execer(ctx).ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update message %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message %s: %w", column, err)
	}
	if affected == 0 {
		return fmt.Errorf("message %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
