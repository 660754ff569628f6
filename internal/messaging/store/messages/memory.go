package messages

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

// MemoryStore is the in-memory message store used by unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]models.Message
}

// NewMemory creates an empty in-memory message store.
func NewMemory() *MemoryStore {
	return &MemoryStore{messages: make(map[uuid.UUID]models.Message)}
}

// Put seeds a message. Test helper; production messages are created by the
// CRUD layer.
func (s *MemoryStore) Put(msg models.Message) {
	s.mu.Lock()
	s.messages[msg.ID] = msg
	s.mu.Unlock()
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, sentinel.ErrNotFound)
	}
	return &msg, nil
}

func (s *MemoryStore) SetSeen(_ context.Context, id uuid.UUID, seen bool) error {
	return s.setFlag(id, func(msg *models.Message) { msg.IsSeen = seen })
}

func (s *MemoryStore) SetDelivered(_ context.Context, id uuid.UUID, delivered bool) error {
	return s.setFlag(id, func(msg *models.Message) { msg.IsDelivered = delivered })
}

func (s *MemoryStore) setFlag(id uuid.UUID, apply func(*models.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("message %s: %w", id, sentinel.ErrNotFound)
	}
	apply(&msg)
	s.messages[id] = msg
	return nil
}
