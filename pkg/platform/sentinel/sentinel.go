package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator clients
// return these (optionally wrapped) so services can translate them into HTTP
// responses without string matching.
//
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: uniqueness or state conflict on write
// - ErrNotAllowed: operation requested for an unsupported variant
//   (e.g. resolving a channel type with no registered implementation)
// - ErrNotConfigured: a required piece of configuration is absent
// - ErrUnavailable: collaborator or resource temporarily unavailable
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrNotAllowed    = errors.New("not allowed")
	ErrNotConfigured = errors.New("not configured")
	ErrUnavailable   = errors.New("unavailable")
)
