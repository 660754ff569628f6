package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelType identifies a delivery channel. Only email ships today; the
// resolver fails closed for anything unregistered.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSMS   ChannelType = "sms"
)

// Provider is one organisation's configuration for a channel. At most one
// provider per (organisation, channel) may be primary; the provider store
// enforces that with a partial unique index, the pipeline only relies on it.
type Provider struct {
	ID             uuid.UUID
	OrganisationID uuid.UUID
	ChannelType    ChannelType
	Name           string
	Credentials    map[string]string
	IsPrimary      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
