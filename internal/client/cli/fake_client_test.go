package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/dmitrijs2005/scanpass/internal/client/config"
)

type fakeClient struct {
	token string

	gotUser     string
	gotPassword string
	gotVideo    []byte
	gotChID     string

	registerResp *api.RegisterResponse
	visualResp   *api.VisualRegisterResponse
	loginResp    *api.LoginResponse
	challenge    *api.ChallengeBody
	visualLogin  *api.VisualLoginResponse
	enrollResp   *api.EnrollResponse
	authResp     *api.AuthenticateResponse
	secureResp   *api.SecureDataResponse

	err        error
	challenged int
	revoked    bool
	loggedOut  bool
}

func (f *fakeClient) Register(_ context.Context, user, pass string) (*api.RegisterResponse, error) {
	f.gotUser, f.gotPassword = user, pass
	if f.err != nil {
		return nil, f.err
	}
	f.token = f.registerResp.Token
	return f.registerResp, nil
}

func (f *fakeClient) RegisterVisual(_ context.Context, user string, video []byte) (*api.VisualRegisterResponse, error) {
	f.gotUser, f.gotVideo = user, video
	if f.err != nil {
		return nil, f.err
	}
	f.token = f.visualResp.Token
	return f.visualResp, nil
}

func (f *fakeClient) Login(_ context.Context, user, pass string) (*api.LoginResponse, error) {
	f.gotUser, f.gotPassword = user, pass
	if f.err != nil {
		return nil, f.err
	}
	f.token = f.loginResp.Token
	return f.loginResp, nil
}

func (f *fakeClient) LoginChallenge(_ context.Context, user string) (*api.ChallengeBody, error) {
	f.gotUser = user
	f.challenged++
	return f.challenge, f.err
}

func (f *fakeClient) LoginVisual(_ context.Context, user, chID string, video []byte) (*api.VisualLoginResponse, error) {
	f.gotUser, f.gotChID, f.gotVideo = user, chID, video
	if f.visualLogin.Success {
		f.token = f.visualLogin.Token
	}
	return f.visualLogin, f.err
}

func (f *fakeClient) Logout(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.loggedOut = true
	f.token = ""
	return nil
}

func (f *fakeClient) Challenge(context.Context) (*api.ChallengeBody, error) {
	f.challenged++
	if f.err != nil {
		return nil, f.err
	}
	return f.challenge, nil
}

func (f *fakeClient) Enroll(_ context.Context, video []byte) (*api.EnrollResponse, error) {
	f.gotVideo = video
	return f.enrollResp, f.err
}

func (f *fakeClient) Authenticate(_ context.Context, chID string, video []byte) (*api.AuthenticateResponse, error) {
	f.gotChID, f.gotVideo = chID, video
	return f.authResp, f.err
}

func (f *fakeClient) Revoke(context.Context) error {
	f.revoked = f.err == nil
	return f.err
}

func (f *fakeClient) SecureData(context.Context) (*api.SecureDataResponse, error) {
	return f.secureResp, f.err
}

func (f *fakeClient) Health(context.Context) error { return f.err }
func (f *fakeClient) Token() string                { return f.token }
func (f *fakeClient) SetToken(token string)        { f.token = token }

func newTestApp(f *fakeClient) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := &config.Config{ServerURL: "http://scanpass.test", MaxVideoBytes: 1 << 20}
	return &App{config: cfg, client: f, reader: bufio.NewReader(&bytes.Buffer{}), out: &out}, &out
}

// stubInputs replaces the interactive prompts with fixed answers.
func stubInputs(t *testing.T, username string, password []byte, video []byte) {
	t.Helper()
	origST, origGP, origGV := getSimpleText, getPassword, getVideo
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return username, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return append([]byte(nil), password...), nil }
	getVideo = func(_ *bufio.Reader, _ string, _ int64, _ io.Writer) ([]byte, error) { return video, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
		getVideo = origGV
	})
}
