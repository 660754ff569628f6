package models

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the denormalized one-row-per-message projection folded from the
// event log. EventStatus and EventType reflect the most recently observed
// event by log order; Data is the shallow union of all event payloads so far,
// later keys overwriting earlier ones on conflict.
type Summary struct {
	ID             int64
	LatestLogID    int64
	MessageID      uuid.UUID
	OrganisationID uuid.UUID
	Subject        string
	EventStatus    EventStatus
	EventType      EventKey
	Data           EventData
	ScheduledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MergeData folds an event payload into the summary, key-wise. Keys absent
// from the incoming payload survive untouched.
func (s *Summary) MergeData(data EventData) {
	if len(data) == 0 {
		return
	}
	if s.Data == nil {
		s.Data = make(EventData, len(data))
	}
	for k, v := range data {
		s.Data[k] = v
	}
}
