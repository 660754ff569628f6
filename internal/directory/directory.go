// Package directory looks up recipient profiles and organisations from the
// identity collaborator. Organisation translations change rarely, so reads
// go through a TTL cache.
package directory

import (
	"context"

	"github.com/google/uuid"
)

// Profile is the recipient side of a delivery: where to send and how to
// address the citizen.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	PublicName string    `json:"public_name"`
	Language   string    `json:"language"`
}

// Organisation is the sender side. Translations map a language tag to the
// organisation's localized display name.
type Organisation struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Translations map[string]string `json:"translations"`
}

// LocalizedName returns the organisation name for the language, falling back
// to the untranslated name.
func (o Organisation) LocalizedName(language string) string {
	if name, ok := o.Translations[language]; ok && name != "" {
		return name
	}
	return o.Name
}

// ProfileGetter resolves a user id to a profile.
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// OrganisationGetter resolves an organisation id to an organisation.
type OrganisationGetter interface {
	GetOrganisation(ctx context.Context, organisationID uuid.UUID) (*Organisation, error)
}
