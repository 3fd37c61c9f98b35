// Package httpapi exposes the ScanPass services as a JSON HTTP API built on
// gin. Videos are uploaded as the multipart field "video".
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"github.com/dmitrijs2005/scanpass/internal/server/challenges"
	"github.com/dmitrijs2005/scanpass/internal/server/services"
	"github.com/gin-gonic/gin"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "ScanPass API"

// SecurePayload is returned by the protected demo resource.
const SecurePayload = "SECRET_PAYLOAD_8823: ScanPass has verified your physical presence."

// Accounts is the subset of services.UserService used by the API.
type Accounts interface {
	Register(ctx context.Context, userName, password string) (*services.AuthToken, error)
	Login(ctx context.Context, userName, password string) (*services.LoginResult, error)
	Validate(ctx context.Context, token string) (*services.Principal, error)
	Logout(ctx context.Context, sessionID string) error
	Revoke(ctx context.Context, userID string) error
}

// Verifier is the subset of services.VerificationService used by the API.
type Verifier interface {
	IssueChallenge(ctx context.Context, userID string) (*challenges.Challenge, error)
	Enroll(ctx context.Context, userID string, data []byte) (*services.EnrollResult, error)
	RegisterVisual(ctx context.Context, userName string, data []byte) (*services.VisualRegisterResult, error)
	Authenticate(ctx context.Context, p *services.Principal, challengeID string, data []byte) (*services.AuthResult, error)
	IssueLoginChallenge(ctx context.Context, userName string) (*challenges.Challenge, error)
	LoginVisual(ctx context.Context, userName, challengeID string, data []byte) (*services.VisualLoginResult, error)
}

// Options are the tunables of a Handler.
type Options struct {
	MaxVideoBytes       int64
	RequireSecondFactor bool
}

// Handler implements the API routes.
type Handler struct {
	accounts Accounts
	verifier Verifier
	opts     Options
	now      func() time.Time
	logger   logging.Logger
}

func NewHandler(accounts Accounts, verifier Verifier, opts Options, logger logging.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		verifier: verifier,
		opts:     opts,
		now:      time.Now,
		logger:   logger.With("module", "http_api"),
	}
}

// readVideo reads the multipart "video" field, bounded by MaxVideoBytes.
func (h *Handler) readVideo(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", common.ErrValidation, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: video file is required", common.ErrValidation)
	}
	if h.opts.MaxVideoBytes > 0 && fh.Size > h.opts.MaxVideoBytes {
		return nil, fmt.Errorf("%w: video exceeds %d bytes", common.ErrValidation, h.opts.MaxVideoBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening upload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if h.opts.MaxVideoBytes > 0 {
		r = io.LimitReader(f, h.opts.MaxVideoBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	if h.opts.MaxVideoBytes > 0 && int64(len(data)) > h.opts.MaxVideoBytes {
		return nil, fmt.Errorf("%w: video exceeds %d bytes", common.ErrValidation, h.opts.MaxVideoBytes)
	}
	return data, nil
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) Register(c *gin.Context) {
	var req api.CredentialsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	token, err := h.accounts.Register(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.RegisterResponse{
		Success:   true,
		Message:   fmt.Sprintf("User '%s' registered successfully", req.UserName),
		Token:     token.Token,
		UserID:    token.UserID,
		ExpiresAt: token.ExpiresAt,
	})
}

func (h *Handler) RegisterVisual(c *gin.Context) {
	userName := c.PostForm("username")
	data, err := h.readVideo(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.verifier.RegisterVisual(c.Request.Context(), userName, data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.VisualRegisterResponse{
		RegisterResponse: api.RegisterResponse{
			Success:   true,
			Message:   fmt.Sprintf("User '%s' registered with a visual key", userName),
			Token:     res.Token,
			UserID:    res.UserID,
			ExpiresAt: res.ExpiresAt,
		},
		Details: enrollDetails(res.EnrollResult),
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req api.CredentialsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	msg := "Password verified."
	if res.NeedsVisualAuth {
		msg = "Password verified. Proceed to visual authentication."
	}
	c.JSON(http.StatusOK, api.LoginResponse{
		Success:         true,
		Message:         msg,
		Token:           res.Token,
		ExpiresAt:       res.ExpiresAt,
		HasObject:       res.HasObject,
		NeedsVisualAuth: res.NeedsVisualAuth,
	})
}

func (h *Handler) LoginChallenge(c *gin.Context) {
	var req api.LoginChallengeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ch, err := h.verifier.IssueLoginChallenge(c.Request.Context(), req.UserName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ChallengeResponse{Success: true, Challenge: challengeBody(ch)})
}

func (h *Handler) LoginVisual(c *gin.Context) {
	userName := c.PostForm("username")
	challengeID := c.PostForm("challenge_id")
	data, err := h.readVideo(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.verifier.LoginVisual(c.Request.Context(), userName, challengeID, data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := api.VisualLoginResponse{
		Success: res.Token != nil,
		Message: "Visual authentication failed",
		Details: authDetails(&res.AuthResult),
		AuthLog: res.Decision.Log,
	}
	if res.Token != nil {
		out.Message = "Visual login successful"
		out.Token = res.Token.Token
		out.UserID = res.Token.UserID
		out.ExpiresAt = &res.Token.ExpiresAt
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Logout(c *gin.Context) {
	p := principal(c)
	if err := h.accounts.Logout(c.Request.Context(), p.SessionID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Success: true, Message: "Logged out"})
}

func (h *Handler) Challenge(c *gin.Context) {
	p := principal(c)
	ch, err := h.verifier.IssueChallenge(c.Request.Context(), p.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ChallengeResponse{Success: true, Challenge: challengeBody(ch)})
}

func (h *Handler) EnrollObject(c *gin.Context) {
	p := principal(c)
	data, err := h.readVideo(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.verifier.Enroll(c.Request.Context(), p.UserID, data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.EnrollResponse{
		Success: true,
		Message: "Object enrolled successfully! Your visual key is ready.",
		Details: enrollDetails(*res),
	})
}

func (h *Handler) AuthenticateObject(c *gin.Context) {
	p := principal(c)
	challengeID := c.PostForm("challenge_id")
	data, err := h.readVideo(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.verifier.Authenticate(c.Request.Context(), p, challengeID, data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.AuthenticateResponse{
		Success:       true,
		Authenticated: res.Decision.Authenticated,
		Message:       verdictMessage(res.Decision.Authenticated),
		SessionID:     res.SessionID,
		Details:       authDetails(res),
		AuthLog:       res.Decision.Log,
	})
}

func (h *Handler) Revoke(c *gin.Context) {
	p := principal(c)
	if err := h.accounts.Revoke(c.Request.Context(), p.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{
		Success: true,
		Message: "Visual key revoked successfully. You must re-enroll to authenticate.",
	})
}

// SecureData is the protected demo resource. With RequireSecondFactor set,
// users with an enrolled object must have passed visual authentication in
// the current session.
func (h *Handler) SecureData(c *gin.Context) {
	p := principal(c)
	if h.opts.RequireSecondFactor && p.HasObject && p.SecondFactorAt == nil {
		h.writeError(c, fmt.Errorf("%w: complete visual authentication first", common.ErrSecondFactorRequired))
		return
	}

	h.logger.Info(c.Request.Context(), "secure data accessed", "user_id", p.UserID)
	c.JSON(http.StatusOK, api.SecureDataResponse{
		Success:   true,
		Data:      SecurePayload,
		User:      p.UserName,
		Timestamp: h.now().UTC(),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok", Service: ServiceName})
}
