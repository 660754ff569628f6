package summaries

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

// MemoryStore is the in-memory summary store used by unit tests. Upsert
// semantics match the postgres implementation, including last-writer-wins on
// a conflicting first insert.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	summaries map[uuid.UUID]models.Summary
}

// NewMemory creates an empty in-memory summary store.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1, summaries: make(map[uuid.UUID]models.Summary)}
}

func (s *MemoryStore) Get(_ context.Context, messageID uuid.UUID) (*models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[messageID]
	if !ok {
		return nil, fmt.Errorf("summary for message %s: %w", messageID, sentinel.ErrNotFound)
	}
	summary.Data = cloneData(summary.Data)
	return &summary, nil
}

func (s *MemoryStore) Upsert(_ context.Context, summary *models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.summaries[summary.MessageID]
	if ok {
		summary.ID = existing.ID
	} else {
		summary.ID = s.nextID
		s.nextID++
	}

	stored := *summary
	stored.Data = cloneData(summary.Data)
	s.summaries[summary.MessageID] = stored
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Summary
	for _, summary := range s.summaries {
		if filter.Search != "" && !strings.Contains(strings.ToLower(summary.Subject), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Status != "" && summary.EventStatus != filter.Status {
			continue
		}
		if filter.OrganisationID != uuid.Nil && summary.OrganisationID != filter.OrganisationID {
			continue
		}
		if !filter.From.IsZero() && summary.UpdatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && summary.UpdatedAt.After(filter.To) {
			continue
		}
		summary.Data = cloneData(summary.Data)
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneData(data models.EventData) models.EventData {
	if data == nil {
		return nil
	}
	out := make(models.EventData, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
