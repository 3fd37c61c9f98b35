package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/netx"
)

// videoFileName is the file name sent with every upload; the server only
// looks at the content.
const videoFileName = "capture.webm"

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the server at baseURL. A zero timeout
// means no client-side limit.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTPClient) Register(ctx context.Context, userName, password string) (*api.RegisterResponse, error) {
	var out api.RegisterResponse
	err := c.postJSON(ctx, "/api/register", api.CredentialsRequest{UserName: userName, Password: password}, false, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *HTTPClient) RegisterVisual(ctx context.Context, userName string, video []byte) (*api.VisualRegisterResponse, error) {
	var out api.VisualRegisterResponse
	err := c.postVideo(ctx, "/api/register/visual", map[string]string{"username": userName}, video, false, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *HTTPClient) Login(ctx context.Context, userName, password string) (*api.LoginResponse, error) {
	var out api.LoginResponse
	err := c.postJSON(ctx, "/api/login", api.CredentialsRequest{UserName: userName, Password: password}, false, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *HTTPClient) LoginChallenge(ctx context.Context, userName string) (*api.ChallengeBody, error) {
	var out api.ChallengeResponse
	err := c.postJSON(ctx, "/api/login/challenge", api.LoginChallengeRequest{UserName: userName}, false, &out)
	if err != nil {
		return nil, err
	}
	return &out.Challenge, nil
}

// LoginVisual stores the token only when the server accepted the video.
// A rejected attempt returns the response with Success false and no error.
func (c *HTTPClient) LoginVisual(ctx context.Context, userName, challengeID string, video []byte) (*api.VisualLoginResponse, error) {
	var out api.VisualLoginResponse
	fields := map[string]string{"username": userName, "challenge_id": challengeID}
	if err := c.postVideo(ctx, "/api/login/visual", fields, video, false, &out); err != nil {
		return nil, err
	}
	if out.Success && out.Token != "" {
		c.SetToken(out.Token)
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	var out api.MessageResponse
	if err := c.postJSON(ctx, "/api/logout", nil, true, &out); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *HTTPClient) Challenge(ctx context.Context) (*api.ChallengeBody, error) {
	var out api.ChallengeResponse
	if err := c.get(ctx, "/api/challenge", true, &out); err != nil {
		return nil, err
	}
	return &out.Challenge, nil
}

func (c *HTTPClient) Enroll(ctx context.Context, video []byte) (*api.EnrollResponse, error) {
	var out api.EnrollResponse
	if err := c.postVideo(ctx, "/api/enroll-object", nil, video, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Authenticate(ctx context.Context, challengeID string, video []byte) (*api.AuthenticateResponse, error) {
	var out api.AuthenticateResponse
	fields := map[string]string{"challenge_id": challengeID}
	if err := c.postVideo(ctx, "/api/authenticate", fields, video, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Revoke(ctx context.Context) error {
	var out api.MessageResponse
	return c.postJSON(ctx, "/api/revoke", nil, true, &out)
}

func (c *HTTPClient) SecureData(ctx context.Context) (*api.SecureDataResponse, error) {
	var out api.SecureDataResponse
	if err := c.get(ctx, "/api/secure-data", true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	var out api.HealthResponse
	if err := c.get(ctx, "/api/health", false, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, authed, out)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body any, authed bool, out any) error {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, authed, out)
}

func (c *HTTPClient) postVideo(ctx context.Context, path string, fields map[string]string, video []byte, authed bool, out any) error {
	body, contentType, err := netx.MultipartBody(fields, "video", videoFileName, video)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, authed, out)
}

func (c *HTTPClient) do(req *http.Request, authed bool, out any) error {
	if authed {
		token := c.Token()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if netx.IsUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Message = strings.TrimSpace(string(data))
		body.Error = http.StatusText(status)
	}
	e := &APIError{Status: status, Code: body.Error, Message: body.Message}
	if status == http.StatusServiceUnavailable && e.Code != api.CodeAnalysisTimeout {
		return errors.Join(ErrUnavailable, e)
	}
	return e
}
