// Package api defines the JSON wire types of the ScanPass HTTP API, shared
// by the server handlers and the CLI client.
package api

import (
	"time"
)

// CredentialsRequest is the body of password register and login.
type CredentialsRequest struct {
	UserName string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginChallengeRequest starts a visual login.
type LoginChallengeRequest struct {
	UserName string `json:"username" binding:"required"`
}

type RegisterResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type EnrollDetails struct {
	FramesExtracted int    `json:"frames_extracted"`
	EmbeddingDim    int    `json:"embedding_dim"`
	Storage         string `json:"storage"`
}

type VisualRegisterResponse struct {
	RegisterResponse
	Details EnrollDetails `json:"details"`
}

type LoginResponse struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	Token           string    `json:"token"`
	ExpiresAt       time.Time `json:"expires_at"`
	HasObject       bool      `json:"has_object"`
	NeedsVisualAuth bool      `json:"needs_visual_auth"`
}

type ChallengeBody struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ChallengeResponse struct {
	Success   bool          `json:"success"`
	Challenge ChallengeBody `json:"challenge"`
}

type EnrollResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Details EnrollDetails `json:"details"`
}

type LivenessDetails struct {
	Passed      bool    `json:"passed"`
	MotionScore float64 `json:"motion_score"`
	Threshold   float64 `json:"threshold"`
}

type DirectionDetails struct {
	Passed     bool    `json:"passed"`
	Detected   string  `json:"detected"`
	Expected   string  `json:"expected"`
	Confidence float64 `json:"confidence"`
}

type SimilarityDetails struct {
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

type AuthDetails struct {
	Liveness      LivenessDetails   `json:"liveness"`
	Direction     DirectionDetails  `json:"direction"`
	Similarity    SimilarityDetails `json:"similarity"`
	FramesDecoded int               `json:"frames_decoded"`
}

type AuthenticateResponse struct {
	Success       bool        `json:"success"`
	Authenticated bool        `json:"authenticated"`
	Message       string      `json:"message"`
	SessionID     string      `json:"session_id"`
	Details       AuthDetails `json:"details"`
	AuthLog       []string    `json:"auth_log"`
}

// VisualLoginResponse reports a visual login. Success is false and Token
// empty when any check failed.
type VisualLoginResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Token     string      `json:"token,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	Details   AuthDetails `json:"details"`
	AuthLog   []string    `json:"auth_log"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SecureDataResponse struct {
	Success   bool      `json:"success"`
	Data      string    `json:"data"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Error codes returned in the "error" field of failed responses.
const (
	CodeValidation           = "validation_error"
	CodeAlreadyExists        = "already_exists"
	CodeNoObjectEnrolled     = "no_object_enrolled"
	CodeVideoReplayed        = "video_replayed"
	CodeDecode               = "decode_error"
	CodeInsufficientFrames   = "insufficient_frames"
	CodeChallengeNotFound    = "challenge_not_found"
	CodeChallengeExpired     = "challenge_expired"
	CodeUnauthorized         = "unauthorized"
	CodeSecondFactorRequired = "second_factor_required"
	CodeAnalysisTimeout      = "analysis_timeout"
	CodeNotFound             = "not_found"
	CodeInternal             = "internal"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
