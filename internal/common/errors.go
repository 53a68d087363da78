// Package common defines shared constants and sentinel errors used across
// the FrameVault server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Admission errors: storage limit, member cap, workspace count cap.
	ErrorQuotaExceeded = errors.New("quota exceeded")

	// Validation errors (malformed size, empty name, unknown plan tier).
	ErrorInvalid = errors.New("invalid input")

	// Invite lifecycle errors.
	ErrorExpired       = errors.New("expired")
	ErrorEmailMismatch = errors.New("email mismatch")

	// Auth errors (invalid or malformed token).
	ErrorInvalidToken = errors.New("invalid token")

	// Object-store errors. Only meaningful during a synchronous upload;
	// failures during deferred deletion are logged and swallowed.
	ErrorExternalStore = errors.New("external store failure")
)
