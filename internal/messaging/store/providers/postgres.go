package providers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

// PostgresStore persists per-organisation channel providers. The partial
// unique index on (organisation_id, channel_type) WHERE is_primary enforces
// the single-primary invariant the pipeline relies on.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed provider store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Provider) error {
	credentials, err := json.Marshal(p.Credentials)
	if err != nil {
		return fmt.Errorf("marshal provider credentials: %w", err)
	}

	query := `
		INSERT INTO message_providers (id, organisation_id, channel_type, name, credentials, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.OrganisationID, string(p.ChannelType), p.Name, credentials, p.IsPrimary, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("primary provider for %s/%s: %w", p.OrganisationID, p.ChannelType, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Provider) error {
	credentials, err := json.Marshal(p.Credentials)
	if err != nil {
		return fmt.Errorf("marshal provider credentials: %w", err)
	}

	query := `
		UPDATE message_providers
		SET name = $1, credentials = $2, is_primary = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := s.db.ExecContext(ctx, query, p.Name, credentials, p.IsPrimary, p.UpdatedAt, p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("primary provider for %s/%s: %w", p.OrganisationID, p.ChannelType, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("provider %s: %w", p.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM message_providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("provider %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	query := selectProviders + ` WHERE id = $1`
	provider, err := scanProvider(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("provider %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query provider: %w", err)
	}
	return provider, nil
}

func (s *PostgresStore) List(ctx context.Context, organisationID uuid.UUID, channel models.ChannelType) ([]models.Provider, error) {
	query := selectProviders + `
		WHERE organisation_id = $1 AND channel_type = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, organisationID, string(channel))
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var out []models.Provider
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, *provider)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return out, nil
}

// GetPrimaryOrDefault returns the primary provider for the organisation and
// channel, falling back to the oldest configured one. sentinel.ErrNotFound
// when the organisation has none for the channel.
func (s *PostgresStore) GetPrimaryOrDefault(ctx context.Context, organisationID uuid.UUID, channel models.ChannelType) (*models.Provider, error) {
	query := selectProviders + `
		WHERE organisation_id = $1 AND channel_type = $2
		ORDER BY is_primary DESC, created_at ASC
		LIMIT 1
	`
	provider, err := scanProvider(s.db.QueryRowContext(ctx, query, organisationID, string(channel)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("provider for %s/%s: %w", organisationID, channel, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query primary provider: %w", err)
	}
	return provider, nil
}

const selectProviders = `
	SELECT id, organisation_id, channel_type, name, credentials, is_primary, created_at, updated_at
	FROM message_providers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*models.Provider, error) {
	var (
		provider    models.Provider
		channel     string
		credentials []byte
	)
	err := row.Scan(
		&provider.ID,
		&provider.OrganisationID,
		&channel,
		&provider.Name,
		&credentials,
		&provider.IsPrimary,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	provider.ChannelType = models.ChannelType(channel)
	if len(credentials) > 0 {
		if err := json.Unmarshal(credentials, &provider.Credentials); err != nil {
			return nil, fmt.Errorf("unmarshal provider credentials: %w", err)
		}
	}
	return &provider, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
