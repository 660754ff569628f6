package models

import (
	"time"

	"github.com/google/uuid"
)

// SecurityLevel decides whether message content may leave the system through
// a transport channel.
type SecurityLevel string

const (
	// SecurityPublic sends the content directly.
	SecurityPublic SecurityLevel = "public"
	// SecurityConfidential withholds the content; only a localized notice
	// and a view-message link are sent.
	SecurityConfidential SecurityLevel = "confidential"
)

// Message is the CRUD layer's entity. The core reads subject, organisation
// and schedule for summary bootstrap, and reads/writes delivery-relevant
// fields through narrow store paths.
type Message struct {
	ID             uuid.UUID
	Subject        string
	Body           string
	RichBody       string
	Excerpt        string
	OrganisationID uuid.UUID
	UserID         uuid.UUID
	SecurityLevel  SecurityLevel
	AttachmentIDs  []uuid.UUID
	Transports     []ChannelType
	ScheduledAt    *time.Time
	IsSeen         bool
	IsDelivered    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeliverableMessage is what actually goes to a transport: the message after
// security-level transformation plus the transports it should travel on.
type DeliverableMessage struct {
	Message    Message
	Transports []ChannelType
}
