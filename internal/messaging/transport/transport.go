// Package transport defines the polymorphic send operation behind each
// delivery channel. Precondition checks are separated from the send itself
// so the pipeline can log structured, typed failure events instead of
// catching transport exceptions for expected conditions.
package transport

import (
	"context"
	"fmt"

	"courier/internal/messaging/models"
	"courier/pkg/platform/sentinel"
)

// Transport is one concrete send mechanism. Implementations may cache an
// expensive connection object per instance; instances are never shared
// across channel types.
type Transport interface {
	Channel() models.ChannelType

	// CanSend is the pure precondition check. It never errors: a failed
	// precondition returns false plus a typed reason for the failure event.
	CanSend(msg models.Message, recipientAddress string) (bool, string)

	// Send delivers the message. Only called after CanSend returned true.
	Send(ctx context.Context, msg models.Message, recipientAddress string) error
}

// Factory builds a transport instance from a resolved provider.
type Factory func(provider *models.Provider) Transport

// Registry dispatches channel types to their registered factory. Unknown
// channel types fail closed rather than falling back to a default.
type Registry struct {
	factories map[models.ChannelType]Factory
}

// NewRegistry creates an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.ChannelType]Factory)}
}

// Register adds a factory for a channel type, replacing any previous one.
func (r *Registry) Register(channel models.ChannelType, factory Factory) {
	r.factories[channel] = factory
}

// New builds a transport for the channel, or a wrapped sentinel.ErrNotAllowed
// when no implementation is registered.
func (r *Registry) New(channel models.ChannelType, provider *models.Provider) (Transport, error) {
	factory, ok := r.factories[channel]
	if !ok {
		return nil, fmt.Errorf("channel type %q: %w", channel, sentinel.ErrNotAllowed)
	}
	return factory(provider), nil
}
