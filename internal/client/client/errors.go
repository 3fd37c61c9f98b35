package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/dmitrijs2005/scanpass/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// APIError is a failed response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

var codeErrors = map[string]error{
	api.CodeValidation:           common.ErrValidation,
	api.CodeAlreadyExists:        common.ErrorAlreadyExists,
	api.CodeNoObjectEnrolled:     common.ErrNoObjectEnrolled,
	api.CodeVideoReplayed:        common.ErrVideoReplayed,
	api.CodeDecode:               common.ErrDecode,
	api.CodeInsufficientFrames:   common.ErrInsufficientFrames,
	api.CodeChallengeNotFound:    common.ErrChallengeNotFound,
	api.CodeChallengeExpired:     common.ErrChallengeExpired,
	api.CodeUnauthorized:         ErrUnauthorized,
	api.CodeSecondFactorRequired: common.ErrSecondFactorRequired,
	api.CodeAnalysisTimeout:      common.ErrAnalysisTimeout,
	api.CodeNotFound:             common.ErrorNotFound,
	api.CodeInternal:             common.ErrorInternal,
}

// Unwrap lets callers match API failures with errors.Is against the shared
// sentinels.
func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}
