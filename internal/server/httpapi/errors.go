package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{common.ErrValidation, http.StatusBadRequest, api.CodeValidation},
	{common.ErrNoObjectEnrolled, http.StatusBadRequest, api.CodeNoObjectEnrolled},
	{common.ErrorAlreadyExists, http.StatusConflict, api.CodeAlreadyExists},
	{common.ErrVideoReplayed, http.StatusConflict, api.CodeVideoReplayed},
	{common.ErrDecode, http.StatusUnprocessableEntity, api.CodeDecode},
	{common.ErrInsufficientFrames, http.StatusUnprocessableEntity, api.CodeInsufficientFrames},
	{common.ErrChallengeNotFound, http.StatusNotFound, api.CodeChallengeNotFound},
	{common.ErrChallengeExpired, http.StatusGone, api.CodeChallengeExpired},
	{common.ErrorUnauthorized, http.StatusUnauthorized, api.CodeUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized, api.CodeUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized, api.CodeUnauthorized},
	{common.ErrSecondFactorRequired, http.StatusForbidden, api.CodeSecondFactorRequired},
	{common.ErrAnalysisTimeout, http.StatusServiceUnavailable, api.CodeAnalysisTimeout},
	{common.ErrorNotFound, http.StatusNotFound, api.CodeNotFound},
}

// StatusFor maps err to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, api.CodeInternal
}

// writeError aborts the request with the mapped status. Internal errors are
// logged and replaced by a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, api.ErrorResponse{Success: false, Error: code, Message: msg})
}
