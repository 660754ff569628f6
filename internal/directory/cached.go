package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"courier/pkg/cache"
)

// CachedOrganisations decorates an OrganisationGetter with a TTL cache.
// Cache failures degrade to a direct lookup and are logged, never surfaced.
type CachedOrganisations struct {
	next   OrganisationGetter
	cache  cache.Cache[Organisation]
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedOrganisations wraps next with the given cache and TTL.
func NewCachedOrganisations(next OrganisationGetter, c cache.Cache[Organisation], ttl time.Duration, logger *slog.Logger) *CachedOrganisations {
	return &CachedOrganisations{next: next, cache: c, ttl: ttl, logger: logger}
}

func (c *CachedOrganisations) GetOrganisation(ctx context.Context, organisationID uuid.UUID) (*Organisation, error) {
	key := "organisation:" + organisationID.String()

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("organisation cache read failed", "organisation_id", organisationID, "error", err)
	} else if ok {
		return &cached, nil
	}

	org, err := c.next.GetOrganisation(ctx, organisationID)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, *org, c.ttl); err != nil {
		c.logger.Warn("organisation cache write failed", "organisation_id", organisationID, "error", err)
	}
	return org, nil
}
