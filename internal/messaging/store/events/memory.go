package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier/internal/messaging/models"
)

// MemoryStore is the in-memory event log used by unit tests and local
// development. It mirrors the postgres ordering semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	events []models.Event
}

// NewMemory creates an empty in-memory event log store.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Insert(_ context.Context, event models.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextID
	s.nextID++
	event.Data = cloneData(event.Data)
	s.events = append(s.events, event)
	return event.ID, nil
}

func (s *MemoryStore) ListByMessage(_ context.Context, messageID uuid.UUID, newerThan time.Time) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Event
	for _, e := range s.events {
		if e.MessageID != messageID || !e.InsertedAt.After(newerThan) {
			continue
		}
		e.Data = cloneData(e.Data)
		out = append(out, e)
	}
	sortEvents(out, false)
	return out, nil
}

func (s *MemoryStore) ListByMessageDesc(_ context.Context, messageID uuid.UUID) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Event
	for _, e := range s.events {
		if e.MessageID != messageID {
			continue
		}
		e.Data = cloneData(e.Data)
		out = append(out, e)
	}
	sortEvents(out, true)
	return out, nil
}

// All returns every stored event in insertion order. Test helper.
func (s *MemoryStore) All() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

func sortEvents(events []models.Event, desc bool) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if desc {
			a, b = b, a
		}
		if !a.InsertedAt.Equal(b.InsertedAt) {
			return a.InsertedAt.Before(b.InsertedAt)
		}
		return a.ID < b.ID
	})
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
