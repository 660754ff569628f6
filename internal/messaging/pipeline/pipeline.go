// Package pipeline orchestrates one delivery job: validate the job token,
// load the message and recipient context, transform for security level,
// fan the message across its transports, and record every outcome in the
// event log. The log commits exactly once per job, whatever happens.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"courier/pkg/platform/sentinel"

	"courier/internal/directory"
	"courier/internal/messaging/eventlog"
	"courier/internal/messaging/metrics"
	"courier/internal/messaging/models"
	"courier/internal/messaging/provider"
	"courier/internal/messaging/transport"
)

var tracer = otel.Tracer("courier/messaging/pipeline")

// MessageStore is the narrow message access the executor needs.
type MessageStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Message, error)
	SetDelivered(ctx context.Context, id uuid.UUID, delivered bool) error
}

// ContentPreparer applies the security-level transformation.
type ContentPreparer interface {
	Prepare(msg models.Message, profile *directory.Profile, org *directory.Organisation) (models.DeliverableMessage, error)
}

// Deps collects the executor's collaborators.
type Deps struct {
	Messages      MessageStore
	Profiles      directory.ProfileGetter
	Organisations directory.OrganisationGetter
	Providers     *provider.Resolver
	Transports    *transport.Registry
	Preparer      ContentPreparer
	// NewWriter builds the per-job event log writer. One writer per job,
	// committed exactly once.
	NewWriter func() *eventlog.Writer
}

// Executor runs delivery jobs. It is safe for concurrent use; all per-job
// state lives in the writer each execution creates.
type Executor struct {
	secret  string
	deps    Deps
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Executor.
type Option func(*Executor)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates a job executor.
func NewExecutor(secret string, deps Deps, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{secret: secret, deps: deps, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one delivery job to completion. The token must authorize the
// job id. Events buffered along the way are committed in a deferred step so
// partial progress is recorded even when an early stage fails.
func (e *Executor) Execute(ctx context.Context, jobID, token string) (err error) {
	ctx, span := tracer.Start(ctx, "pipeline.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	messageID, err := parseJobToken(e.secret, jobID, token)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("message.id", messageID.String()))

	writer := e.deps.NewWriter()
	defer func() {
		if commitErr := writer.Commit(ctx); commitErr != nil {
			err = errors.Join(err, fmt.Errorf("commit event log: %w", commitErr))
		}
	}()

	msg, err := e.deps.Messages.Get(ctx, messageID)
	if err != nil {
		e.logFailure(ctx, writer, messageID, jobID, fmt.Errorf("load message: %w", err))
		return fmt.Errorf("load message %s: %w", messageID, err)
	}

	profile, err := e.deps.Profiles.GetProfile(ctx, msg.UserID)
	if err != nil {
		e.logFailure(ctx, writer, messageID, jobID, fmt.Errorf("resolve profile: %w", err))
		return fmt.Errorf("resolve profile %s: %w", msg.UserID, err)
	}
	org, err := e.deps.Organisations.GetOrganisation(ctx, msg.OrganisationID)
	if err != nil {
		e.logFailure(ctx, writer, messageID, jobID, fmt.Errorf("resolve organisation: %w", err))
		return fmt.Errorf("resolve organisation %s: %w", msg.OrganisationID, err)
	}

	deliverable, err := e.deps.Preparer.Prepare(*msg, profile, org)
	if err != nil {
		e.logFailure(ctx, writer, messageID, jobID, fmt.Errorf("prepare content: %w", err))
		return fmt.Errorf("prepare content: %w", err)
	}

	delivered := false
	for _, channel := range deliverable.Transports {
		if e.deliverOn(ctx, writer, channel, deliverable.Message, msg.OrganisationID, profile) {
			delivered = true
		}
	}

	if delivered {
		writer.Log(ctx, models.StatusSuccessful, models.KeyMessageDelivery, eventlog.Entry{
			MessageID: messageID,
			Data:      models.EventData{"job_id": jobID},
		})
		if err := e.deps.Messages.SetDelivered(ctx, messageID, true); err != nil {
			e.logger.ErrorContext(ctx, "failed to flag message delivered",
				"message_id", messageID, "error", err)
		}
	} else {
		writer.Log(ctx, models.StatusFailed, models.KeyMessageDelivery, eventlog.Entry{
			MessageID: messageID,
			Data:      models.EventData{"job_id": jobID, "error": "no transport delivered"},
		})
	}
	return nil
}

// deliverOn attempts one transport and reports whether it delivered. Every
// outcome lands in the event log; precondition failures are typed events,
// never errors.
func (e *Executor) deliverOn(ctx context.Context, writer *eventlog.Writer, channel models.ChannelType, msg models.Message, organisationID uuid.UUID, profile *directory.Profile) bool {
	key := deliveryKey(channel)

	prov, err := e.resolveProvider(ctx, channel, organisationID)
	if err != nil {
		writer.Log(ctx, models.StatusFailed, key, eventlog.Entry{
			MessageID: msg.ID,
			Data:      models.EventData{"error": err.Error()},
		})
		e.observe(channel, "failed")
		return false
	}

	tr, err := e.deps.Transports.New(channel, prov)
	if err != nil {
		writer.Log(ctx, models.StatusFailed, key, eventlog.Entry{
			MessageID: msg.ID,
			Data:      models.EventData{"error": err.Error()},
		})
		e.observe(channel, "failed")
		return false
	}

	address := recipientAddress(channel, profile)
	if ok, reason := tr.CanSend(msg, address); !ok {
		writer.Log(ctx, models.StatusFailed, key, eventlog.Entry{
			MessageID: msg.ID,
			Data:      models.EventData{"reason": reason},
		})
		e.observe(channel, "precondition_failed")
		e.logger.InfoContext(ctx, "delivery precondition failed",
			"message_id", msg.ID, "channel", string(channel), "reason", reason)
		return false
	}

	if err := tr.Send(ctx, msg, address); err != nil {
		writer.Log(ctx, models.StatusFailed, key, eventlog.Entry{
			MessageID: msg.ID,
			Data:      models.EventData{"error": err.Error()},
		})
		e.observe(channel, "failed")
		e.logger.ErrorContext(ctx, "transport send failed",
			"message_id", msg.ID, "channel", string(channel), "error", err)
		return false
	}

	writer.Log(ctx, models.StatusSuccessful, key, eventlog.Entry{
		MessageID: msg.ID,
		Data:      models.EventData{"recipient": address},
	})
	e.observe(channel, "delivered")
	return true
}

// resolveProvider returns the primary or default provider for the channel.
// No configured provider is not an error: transports fall back to the
// service-wide defaults.
func (e *Executor) resolveProvider(ctx context.Context, channel models.ChannelType, organisationID uuid.UUID) (*models.Provider, error) {
	handle, err := e.deps.Providers.Resolve(channel, organisationID)
	if err != nil {
		return nil, err
	}
	prov, err := handle.GetPrimaryOrDefault(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return prov, nil
}

func (e *Executor) logFailure(ctx context.Context, writer *eventlog.Writer, messageID uuid.UUID, jobID string, cause error) {
	writer.Log(ctx, models.StatusFailed, models.KeyMessageDelivery, eventlog.Entry{
		MessageID: messageID,
		Data:      models.EventData{"job_id": jobID, "error": cause.Error()},
	})
}

func (e *Executor) observe(channel models.ChannelType, outcome string) {
	if e.metrics != nil {
		e.metrics.ObserveDelivery(string(channel), outcome)
	}
}

// deliveryKey maps a channel to its delivery event key.
func deliveryKey(channel models.ChannelType) models.EventKey {
	if channel == models.ChannelEmail {
		return models.KeyEmailDelivery
	}
	return models.KeyMessageDelivery
}

// recipientAddress picks the profile field a channel delivers to.
func recipientAddress(channel models.ChannelType, profile *directory.Profile) string {
	if channel == models.ChannelEmail {
		return profile.Email
	}
	return ""
}
