package client

import (
	"context"

	"github.com/dmitrijs2005/scanpass/internal/api"
)

// Client is the CLI's view of the ScanPass API. Calls that need a session
// use the token stored by the last successful Register, Login or
// LoginVisual.
type Client interface {
	Register(ctx context.Context, userName, password string) (*api.RegisterResponse, error)
	RegisterVisual(ctx context.Context, userName string, video []byte) (*api.VisualRegisterResponse, error)
	Login(ctx context.Context, userName, password string) (*api.LoginResponse, error)
	LoginChallenge(ctx context.Context, userName string) (*api.ChallengeBody, error)
	LoginVisual(ctx context.Context, userName, challengeID string, video []byte) (*api.VisualLoginResponse, error)
	Logout(ctx context.Context) error

	Challenge(ctx context.Context) (*api.ChallengeBody, error)
	Enroll(ctx context.Context, video []byte) (*api.EnrollResponse, error)
	Authenticate(ctx context.Context, challengeID string, video []byte) (*api.AuthenticateResponse, error)
	Revoke(ctx context.Context) error
	SecureData(ctx context.Context) (*api.SecureDataResponse, error)

	Health(ctx context.Context) error
	Token() string
	SetToken(token string)
}
