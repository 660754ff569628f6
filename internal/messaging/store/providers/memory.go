package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

// MemoryStore is the in-memory provider store used by unit tests. It
// enforces the same single-primary invariant as the postgres partial index.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]models.Provider
}

// NewMemory creates an empty in-memory provider store.
func NewMemory() *MemoryStore {
	return &MemoryStore{providers: make(map[uuid.UUID]models.Provider)}
}

func (s *MemoryStore) Create(_ context.Context, p *models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsPrimary && s.primaryExists(p.OrganisationID, p.ChannelType, p.ID) {
		return fmt.Errorf("primary provider for %s/%s: %w", p.OrganisationID, p.ChannelType, sentinel.ErrConflict)
	}
	s.providers[p.ID] = cloneProvider(*p)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, p *models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.providers[p.ID]
	if !ok {
		return fmt.Errorf("provider %s: %w", p.ID, sentinel.ErrNotFound)
	}
	if p.IsPrimary && s.primaryExists(existing.OrganisationID, existing.ChannelType, p.ID) {
		return fmt.Errorf("primary provider for %s/%s: %w", existing.OrganisationID, existing.ChannelType, sentinel.ErrConflict)
	}

	existing.Name = p.Name
	existing.Credentials = p.Credentials
	existing.IsPrimary = p.IsPrimary
	existing.UpdatedAt = p.UpdatedAt
	s.providers[p.ID] = cloneProvider(existing)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.providers[id]; !ok {
		return fmt.Errorf("provider %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.providers, id)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", id, sentinel.ErrNotFound)
	}
	p = cloneProvider(p)
	return &p, nil
}

func (s *MemoryStore) List(_ context.Context, organisationID uuid.UUID, channel models.ChannelType) ([]models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(organisationID, channel), nil
}

func (s *MemoryStore) GetPrimaryOrDefault(_ context.Context, organisationID uuid.UUID, channel models.ChannelType) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.collect(organisationID, channel)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("provider for %s/%s: %w", organisationID, channel, sentinel.ErrNotFound)
	}
	for _, p := range candidates {
		if p.IsPrimary {
			return &p, nil
		}
	}
	return &candidates[0], nil
}

func (s *MemoryStore) collect(organisationID uuid.UUID, channel models.ChannelType) []models.Provider {
	var out []models.Provider
	for _, p := range s.providers {
		if p.OrganisationID == organisationID && p.ChannelType == channel {
			out = append(out, cloneProvider(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) primaryExists(organisationID uuid.UUID, channel models.ChannelType, exclude uuid.UUID) bool {
	for _, p := range s.providers {
		if p.ID != exclude && p.OrganisationID == organisationID && p.ChannelType == channel && p.IsPrimary {
			return true
		}
	}
	return false
}

func cloneProvider(p models.Provider) models.Provider {
	if p.Credentials != nil {
		creds := make(map[string]string, len(p.Credentials))
		for k, v := range p.Credentials {
			creds[k] = v
		}
		p.Credentials = creds
	}
	return p
}
