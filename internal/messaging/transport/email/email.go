// Package email implements the SMTP transport. The connection settings are
// resolved lazily on first use and cached per instance, so a misconfigured
// provider surfaces as a per-message precondition failure rather than a
// startup error.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"courier/internal/platform/config"

	"courier/internal/messaging/models"
)

// connection holds the resolved SMTP settings cached after first resolution.
type connection struct {
	addr string
	auth smtp.Auth
	from string
}

// Transport sends messages over SMTP. Provider credentials override the
// service-wide SMTP defaults, so each organisation can bring its own relay.
type Transport struct {
	cfg      config.SMTPConfig
	provider *models.Provider

	conn *connection
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// New builds an email transport for the given provider. A nil provider uses
// the service-wide SMTP configuration alone.
func New(cfg config.SMTPConfig, provider *models.Provider) *Transport {
	return &Transport{
		cfg:      cfg,
		provider: provider,
		send:     smtp.SendMail,
	}
}

func (t *Transport) Channel() models.ChannelType {
	return models.ChannelEmail
}

// CanSend reports whether the message can go out: a recipient address, a
// subject, and resolvable connection settings are required. Failures come
// back as typed reasons, never as errors.
func (t *Transport) CanSend(msg models.Message, recipientAddress string) (bool, string) {
	if strings.TrimSpace(recipientAddress) == "" {
		return false, models.ReasonNoEmail
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return false, models.ReasonNoSubject
	}
	if _, ok := t.connection(); !ok {
		return false, models.ReasonNoConnection
	}
	return true, ""
}

// Send delivers the message to the recipient address over SMTP.
func (t *Transport) Send(ctx context.Context, msg models.Message, recipientAddress string) error {
	conn, ok := t.connection()
	if !ok {
		return fmt.Errorf("smtp connection not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := t.compose(msg, conn.from, recipientAddress)
	if err := t.send(conn.addr, conn.auth, conn.from, []string{recipientAddress}, payload); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// connection resolves and caches the SMTP settings. Provider credentials
// take precedence over the service-wide config.
func (t *Transport) connection() (*connection, bool) {
	if t.conn != nil {
		return t.conn, true
	}

	host := t.cfg.Host
	port := t.cfg.Port
	username := t.cfg.Username
	password := t.cfg.Password
	from := t.cfg.From

	if t.provider != nil {
		creds := t.provider.Credentials
		if v := creds["host"]; v != "" {
			host = v
		}
		if v := creds["port"]; v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				port = p
			}
		}
		if v := creds["username"]; v != "" {
			username = v
		}
		if v := creds["password"]; v != "" {
			password = v
		}
		if v := creds["from"]; v != "" {
			from = v
		}
	}

	if host == "" || from == "" {
		return nil, false
	}

	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	t.conn = &connection{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
	return t.conn, true
}

func (t *Transport) compose(msg models.Message, from, to string) []byte {
	body := msg.Body
	contentType := "text/plain; charset=utf-8"
	if msg.RichBody != "" {
		body = msg.RichBody
		contentType = "text/html; charset=utf-8"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
