package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/platform/config"

	"courier/internal/messaging/models"
)

var testConfig = config.SMTPConfig{
	Host:     "smtp.example.gov",
	Port:     587,
	Username: "courier",
	Password: "secret",
	From:     "no-reply@example.gov",
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func captureSend(t *Transport) *[]sentMail {
	var sent []sentMail
	t.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: msg})
		return nil
	}
	return &sent
}

func TestCanSendRejectsBlankAddress(t *testing.T) {
	tr := New(testConfig, nil)

	ok, reason := tr.CanSend(models.Message{Subject: "Hello"}, "")
	assert.False(t, ok)
	assert.Equal(t, models.ReasonNoEmail, reason)

	ok, reason = tr.CanSend(models.Message{Subject: "Hello"}, "   ")
	assert.False(t, ok)
	assert.Equal(t, models.ReasonNoEmail, reason)
}

func TestCanSendRejectsBlankSubject(t *testing.T) {
	tr := New(testConfig, nil)

	ok, reason := tr.CanSend(models.Message{Subject: ""}, "citizen@example.com")
	assert.False(t, ok)
	assert.Equal(t, models.ReasonNoSubject, reason)
}

func TestCanSendRequiresConnectionSettings(t *testing.T) {
	tr := New(config.SMTPConfig{}, nil)

	ok, reason := tr.CanSend(models.Message{Subject: "Hello"}, "citizen@example.com")
	assert.False(t, ok)
	assert.Equal(t, models.ReasonNoConnection, reason)
}

func TestCanSendPasses(t *testing.T) {
	tr := New(testConfig, nil)

	ok, reason := tr.CanSend(models.Message{Subject: "Hello"}, "citizen@example.com")
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestSendComposesMessage(t *testing.T) {
	tr := New(testConfig, nil)
	sent := captureSend(tr)

	msg := models.Message{Subject: "Tax assessment", Body: "Your assessment is ready."}
	require.NoError(t, tr.Send(context.Background(), msg, "citizen@example.com"))

	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.gov:587", mail.addr)
	assert.Equal(t, "no-reply@example.gov", mail.from)
	assert.Equal(t, []string{"citizen@example.com"}, mail.to)
	assert.Contains(t, string(mail.msg), "Subject: Tax assessment")
	assert.Contains(t, string(mail.msg), "Content-Type: text/plain")
	assert.Contains(t, string(mail.msg), "Your assessment is ready.")
}

func TestSendPrefersRichBodyAsHTML(t *testing.T) {
	tr := New(testConfig, nil)
	sent := captureSend(tr)

	msg := models.Message{
		Subject:  "Notice",
		Body:     "plain",
		RichBody: "<p>rich</p>",
	}
	require.NoError(t, tr.Send(context.Background(), msg, "citizen@example.com"))

	require.Len(t, *sent, 1)
	assert.Contains(t, string((*sent)[0].msg), "Content-Type: text/html")
	assert.Contains(t, string((*sent)[0].msg), "<p>rich</p>")
}

func TestProviderCredentialsOverrideDefaults(t *testing.T) {
	provider := &models.Provider{
		ChannelType: models.ChannelEmail,
		Credentials: map[string]string{
			"host": "relay.municipality.gov",
			"port": "2525",
			"from": "post@municipality.gov",
		},
	}
	tr := New(testConfig, provider)
	sent := captureSend(tr)

	msg := models.Message{Subject: "Notice", Body: "body"}
	require.NoError(t, tr.Send(context.Background(), msg, "citizen@example.com"))

	require.Len(t, *sent, 1)
	assert.Equal(t, "relay.municipality.gov:2525", (*sent)[0].addr)
	assert.Equal(t, "post@municipality.gov", (*sent)[0].from)
}

func TestConnectionIsCachedAfterFirstResolution(t *testing.T) {
	tr := New(testConfig, nil)
	captureSend(tr)

	first, ok := tr.connection()
	require.True(t, ok)
	second, ok := tr.connection()
	require.True(t, ok)
	assert.Same(t, first, second)
}
