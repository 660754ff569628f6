package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the outcome recorded on a lifecycle event.
type EventStatus string

const (
	StatusSuccessful EventStatus = "successful"
	StatusFailed     EventStatus = "failed"
	StatusPending    EventStatus = "pending"
	StatusDelivered  EventStatus = "delivered"
	StatusRetried    EventStatus = "retried"
	StatusDeleted    EventStatus = "deleted"
)

// EventKey names the lifecycle transition an event records.
type EventKey string

const (
	KeyMessageCreate         EventKey = "message_create"
	KeyMessageJobCreate      EventKey = "message_job_create"
	KeyMessageSchedule       EventKey = "message_schedule"
	KeyTemplateMessageCreate EventKey = "template_message_create"
	KeyMessageDelivery       EventKey = "message_delivery"
	KeyEmailDelivery         EventKey = "email_delivery"
	KeyMessageOptionSeen     EventKey = "message_option_seen"
	KeyMessageOptionUnseen   EventKey = "message_option_unseen"
)

// EventData is the variant payload carried by an event: a creation payload,
// a schedule payload, or an error payload. Projection merges these shallowly.
type EventData map[string]any

// Event is the immutable record of one lifecycle transition for a message.
// Persisted rows are append-only; nothing in the normal flow updates or
// deletes them.
type Event struct {
	ID         int64
	Status     EventStatus
	Key        EventKey
	MessageID  uuid.UUID
	Data       EventData
	InsertedAt time.Time
}

// Failure reasons recorded in the data payload of typed precondition events.
const (
	ReasonNoEmail      = "noEmail"
	ReasonNoSubject    = "noSubject"
	ReasonNoConnection = "noConnection"
)
