// Package common defines shared constants and sentinel errors used across
// the server and client layers of ScanPass. Callers should use errors.Is to
// match these values; call sites wrap them with fmt.Errorf("%w: ...") to add
// detail.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// The session is valid but has not passed visual authentication.
	ErrSecondFactorRequired = errors.New("second factor required")

	// Validation errors: malformed input, surfaced to the caller as is.
	ErrValidation       = errors.New("validation error")
	ErrNoObjectEnrolled = errors.New("no object enrolled")
	ErrVideoReplayed    = errors.New("video already submitted")

	// Unusable video: the caller should recapture and retry.
	ErrDecode             = errors.New("video decode failed")
	ErrInsufficientFrames = errors.New("insufficient frames")

	// Stale or unknown challenge reference: the caller must fetch a new one.
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Analysis could not complete within the configured budget.
	ErrAnalysisTimeout = errors.New("analysis timed out")
)
