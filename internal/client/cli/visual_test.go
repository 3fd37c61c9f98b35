package cli

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/dmitrijs2005/scanpass/internal/client/client"
	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallenge(t *testing.T) {
	f := &fakeClient{challenge: &api.ChallengeBody{ID: "ch-1", Text: "Rotate clockwise", Description: "Turn the object to the right"}}
	a, out := newTestApp(f)

	require.NoError(t, a.Challenge(context.Background()))
	assert.Contains(t, out.String(), "Rotate clockwise")
	assert.Contains(t, out.String(), "Turn the object to the right")
}

func TestEnroll(t *testing.T) {
	f := &fakeClient{enrollResp: &api.EnrollResponse{Success: true, Message: "Object enrolled", Details: api.EnrollDetails{FramesExtracted: 8, EmbeddingDim: 64}}}
	a, out := newTestApp(f)
	stubInputs(t, "", nil, []byte("clip"))

	require.NoError(t, a.Enroll(context.Background()))
	assert.Equal(t, []byte("clip"), f.gotVideo)
	assert.Contains(t, out.String(), "Frames extracted: 8")
}

func TestAuthenticate_PrintsDetails(t *testing.T) {
	f := &fakeClient{
		challenge: &api.ChallengeBody{ID: "ch-7", Text: "Tilt left", ExpiresAt: time.Now().Add(time.Minute)},
		authResp: &api.AuthenticateResponse{
			Success:       true,
			Authenticated: false,
			Message:       "REJECTED",
			Details: api.AuthDetails{
				Liveness:   api.LivenessDetails{Passed: true, MotionScore: 3.2, Threshold: 1.5},
				Direction:  api.DirectionDetails{Passed: false, Detected: "tilt_right", Expected: "tilt_left"},
				Similarity: api.SimilarityDetails{Passed: true, Score: 0.91, Threshold: 0.6},
			},
			AuthLog: []string{"direction mismatch"},
		},
	}
	a, out := newTestApp(f)
	stubInputs(t, "", nil, []byte("clip"))

	require.NoError(t, a.Authenticate(context.Background()))
	assert.Equal(t, "ch-7", f.gotChID)
	assert.Equal(t, 1, f.challenged)

	s := out.String()
	assert.Contains(t, s, "Result: REJECTED")
	assert.Contains(t, s, "direction:  FAIL (detected tilt_right, expected tilt_left)")
	assert.Contains(t, s, "similarity: pass")
	assert.Contains(t, s, "direction mismatch")
}

func TestAuthenticate_ChallengeError(t *testing.T) {
	f := &fakeClient{err: &client.APIError{Status: 400, Code: api.CodeNoObjectEnrolled}}
	a, _ := newTestApp(f)
	stubInputs(t, "", nil, []byte("clip"))

	err := a.Authenticate(context.Background())
	require.ErrorIs(t, err, common.ErrNoObjectEnrolled)
	assert.Nil(t, f.gotVideo)
}

func TestRevokeAndSecure(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeClient{secureResp: &api.SecureDataResponse{Success: true, Data: "the vault", User: "alice", Timestamp: ts}}
	a, out := newTestApp(f)

	require.NoError(t, a.Secure(context.Background()))
	assert.Contains(t, out.String(), "the vault")
	assert.Contains(t, out.String(), "2025-03-01T12:00:00Z")

	require.NoError(t, a.Revoke(context.Background()))
	assert.True(t, f.revoked)
}

func TestHealth(t *testing.T) {
	f := &fakeClient{}
	a, out := newTestApp(f)

	require.NoError(t, a.Health(context.Background()))
	assert.Contains(t, out.String(), "http://scanpass.test is up")

	f.err = client.ErrUnavailable
	assert.ErrorIs(t, a.Health(context.Background()), client.ErrUnavailable)
}

func TestRoot_WarnsWhenUnavailable(t *testing.T) {
	capturePrintln(t)
	f := &fakeClient{err: client.ErrUnavailable}
	a, out := newTestApp(f)
	a.reader = rdr("exit\n")

	a.Root(context.Background())
	assert.Contains(t, out.String(), "not reachable")
}
