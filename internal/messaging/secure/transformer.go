// Package secure enforces the security level of a message before it reaches
// any transport. Confidential content never leaves the system; recipients get
// a localized notice with a link into the portal instead.
package secure

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"courier/internal/platform/config"
	"courier/pkg/platform/sentinel"

	"courier/internal/directory"
	"courier/internal/messaging/models"
)

// supported lists the locales notices exist for. The first entry is the
// matcher's fallback.
var supported = []language.Tag{
	language.English,
	language.MustParse("nb"),
	language.MustParse("nn"),
}

// notice holds one locale's replacement strings. %[1]s is the recipient's
// public name, %[2]s the organisation's localized name, %[3]s the view URL.
type notice struct {
	subject  string
	body     string
	richBody string
	excerpt  string
}

var notices = map[language.Tag]notice{
	language.English: {
		subject:  "You have received a new message from %[2]s",
		body:     "Hello %[1]s,\n\n%[2]s has sent you a message. Sign in to read it:\n%[3]s",
		richBody: `<p>Hello %[1]s,</p><p>%[2]s has sent you a message. <a href="%[3]s">Sign in to read it</a>.</p>`,
		excerpt:  "New message from %[2]s",
	},
	language.MustParse("nb"): {
		subject:  "Du har fått en ny melding fra %[2]s",
		body:     "Hei %[1]s,\n\n%[2]s har sendt deg en melding. Logg inn for å lese den:\n%[3]s",
		richBody: `<p>Hei %[1]s,</p><p>%[2]s har sendt deg en melding. <a href="%[3]s">Logg inn for å lese den</a>.</p>`,
		excerpt:  "Ny melding fra %[2]s",
	},
	language.MustParse("nn"): {
		subject:  "Du har fått ei ny melding frå %[2]s",
		body:     "Hei %[1]s,\n\n%[2]s har sendt deg ei melding. Logg inn for å lese henne:\n%[3]s",
		richBody: `<p>Hei %[1]s,</p><p>%[2]s har sendt deg ei melding. <a href="%[3]s">Logg inn for å lese henne</a>.</p>`,
		excerpt:  "Ny melding frå %[2]s",
	},
}

// Transformer prepares a message for delivery according to its security
// level. One instance is shared; it holds no per-message state.
type Transformer struct {
	viewMessageURL string
	matcher        language.Matcher
}

// New builds a transformer from the secure-content configuration.
func New(cfg config.SecureConfig) *Transformer {
	return &Transformer{
		viewMessageURL: cfg.ViewMessageURL,
		matcher:        language.NewMatcher(supported),
	}
}

// Prepare returns the deliverable form of the message. Public messages pass
// through unchanged. Confidential messages have their attachments stripped
// and their content replaced with a localized notice naming the recipient,
// the organisation, and a view-message link.
func (t *Transformer) Prepare(msg models.Message, profile *directory.Profile, org *directory.Organisation) (models.DeliverableMessage, error) {
	if msg.SecurityLevel != models.SecurityConfidential {
		return models.DeliverableMessage{Message: msg, Transports: msg.Transports}, nil
	}

	if t.viewMessageURL == "" {
		return models.DeliverableMessage{}, fmt.Errorf("view-message url template: %w", sentinel.ErrNotConfigured)
	}

	tag := t.resolveLanguage(profile.Language)
	n := notices[tag]
	url := t.buildURL(tag.String(), msg.ID.String())
	orgName := org.LocalizedName(tag.String())

	msg.AttachmentIDs = nil
	msg.Subject = fmt.Sprintf(n.subject, profile.PublicName, orgName, url)
	msg.Body = fmt.Sprintf(n.body, profile.PublicName, orgName, url)
	msg.RichBody = fmt.Sprintf(n.richBody, profile.PublicName, orgName, url)
	msg.Excerpt = fmt.Sprintf(n.excerpt, profile.PublicName, orgName, url)

	return models.DeliverableMessage{Message: msg, Transports: msg.Transports}, nil
}

// resolveLanguage matches the preferred language against the supported
// locales, falling back to English for unknown or empty tags.
func (t *Transformer) resolveLanguage(preferred string) language.Tag {
	desired, err := language.Parse(preferred)
	if err != nil {
		return supported[0]
	}
	_, idx, _ := t.matcher.Match(desired)
	return supported[idx]
}

func (t *Transformer) buildURL(lang, messageID string) string {
	return strings.NewReplacer(
		"{language}", lang,
		"{messageId}", messageID,
	).Replace(t.viewMessageURL)
}
