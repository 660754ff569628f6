// Package provider maps an organisation and channel type to the provider
// configuration feeding the transport layer.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

// Store is the persistence contract one channel's providers live behind.
type Store interface {
	Create(ctx context.Context, p *models.Provider) error
	Update(ctx context.Context, p *models.Provider) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	List(ctx context.Context, organisationID uuid.UUID, channel models.ChannelType) ([]models.Provider, error)
	GetPrimaryOrDefault(ctx context.Context, organisationID uuid.UUID, channel models.ChannelType) (*models.Provider, error)
}

// Resolver dispatches channel types to their registered store. Only email is
// registered today; everything else resolves to a "not allowed" error.
type Resolver struct {
	stores map[models.ChannelType]Store
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{stores: make(map[models.ChannelType]Store)}
}

// Register adds a channel's provider store.
func (r *Resolver) Register(channel models.ChannelType, store Store) {
	r.stores[channel] = store
}

// Resolve returns a handle scoped to the organisation and channel, or a
// wrapped sentinel.ErrNotAllowed for unsupported channel types.
func (r *Resolver) Resolve(channel models.ChannelType, organisationID uuid.UUID) (*Handle, error) {
	store, ok := r.stores[channel]
	if !ok {
		return nil, fmt.Errorf("provider resolution for channel %q: %w", channel, sentinel.ErrNotAllowed)
	}
	return &Handle{store: store, channel: channel, organisationID: organisationID}, nil
}

// Handle exposes provider CRUD scoped to one (organisation, channel) pair.
// The delivery pipeline only uses GetPrimaryOrDefault; the rest serves the
// admin contract.
type Handle struct {
	store          Store
	channel        models.ChannelType
	organisationID uuid.UUID
}

func (h *Handle) Get(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	return h.store.Get(ctx, id)
}

func (h *Handle) Create(ctx context.Context, p *models.Provider) error {
	now := time.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.OrganisationID = h.organisationID
	p.ChannelType = h.channel
	p.CreatedAt = now
	p.UpdatedAt = now
	return h.store.Create(ctx, p)
}

func (h *Handle) Update(ctx context.Context, p *models.Provider) error {
	p.UpdatedAt = time.Now()
	return h.store.Update(ctx, p)
}

func (h *Handle) Delete(ctx context.Context, id uuid.UUID) error {
	return h.store.Delete(ctx, id)
}

func (h *Handle) List(ctx context.Context) ([]models.Provider, error) {
	return h.store.List(ctx, h.organisationID, h.channel)
}

// GetPrimaryOrDefault returns the provider the pipeline should send with:
// the one flagged primary, else the oldest configured one.
func (h *Handle) GetPrimaryOrDefault(ctx context.Context) (*models.Provider, error) {
	return h.store.GetPrimaryOrDefault(ctx, h.organisationID, h.channel)
}
