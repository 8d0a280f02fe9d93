package services

import "errors"

// Failure classes shared across services. Handlers map these onto the HTTP
// taxonomy; services never touch status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotOwner          = errors.New("not owner")
	ErrNoChanges         = errors.New("no fields to update")
	ErrAlreadyRegistered = errors.New("already registered")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenLegacy marks refresh tokens minted before jti-based sessions
	// existed. They are rejected with a re-login instruction rather than
	// silently accepted.
	ErrTokenLegacy = errors.New("unsupported legacy token")

	ErrSessionRevoked = errors.New("session revoked")
	ErrSessionExpired = errors.New("session expired")

	ErrIdentityInvalid = errors.New("identity assertion invalid")

	ErrNoRecords         = errors.New("no records for the specified date")
	ErrEmptyPayload      = errors.New("records contain no usable content")
	ErrGenerationFailed  = errors.New("diary generation failed")
	ErrEmptyTranscript   = errors.New("empty transcript")
	ErrUnsupportedUpload = errors.New("unsupported file type")
)
