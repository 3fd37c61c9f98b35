package services

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"github.com/dmitrijs2005/scanpass/internal/server/challenges"
	"github.com/dmitrijs2005/scanpass/internal/server/decision"
	"github.com/dmitrijs2005/scanpass/internal/server/replay"
	"github.com/dmitrijs2005/scanpass/internal/server/vision"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/embedding"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/motion"
	"github.com/dmitrijs2005/scanpass/internal/server/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyzer returns canned vision results for any video.
type fakeAnalyzer struct {
	vector    []float32
	score     float64
	direction motion.Direction
	block     bool
	calls     atomic.Int32
}

func (f *fakeAnalyzer) Dim() int { return len(f.vector) }

func (f *fakeAnalyzer) Embed(ctx context.Context, data []byte) (*embedding.Embedding, error) {
	f.calls.Add(1)
	return &embedding.Embedding{Vector: f.vector, FramesExtracted: 10}, nil
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, data []byte) (*vision.Analysis, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &vision.Analysis{
		Embedding:     &embedding.Embedding{Vector: f.vector, FramesExtracted: 10},
		Motion:        &motion.Result{Score: f.score, Direction: f.direction, Frames: 10, Pairs: 9},
		FramesDecoded: 30,
	}, nil
}

type verificationFixture struct {
	users    *UserService
	svc      *VerificationService
	analyzer *fakeAnalyzer
}

// videoN returns distinct fake uploads large enough to pass the size check.
func videoN(n byte) []byte {
	return bytes.Repeat([]byte{n}, 2048)
}

func newVerificationFixture(t *testing.T, opts VerificationOptions, timeout time.Duration) *verificationFixture {
	t.Helper()

	users := newTestUserService(t)
	// every challenge asks for tilt_left
	director := challenges.NewDirector(time.Minute, logging.Discard(), challenges.WithRandom(func(int) int { return 4 }))
	analyzer := &fakeAnalyzer{vector: []float32{1, 0, 0}, score: 3, direction: motion.DirectionTiltLeft}
	decider := decision.NewEngine(decision.Thresholds{Similarity: 0.6, Liveness: 1.5})
	pool := workers.NewPool(2, timeout, logging.Discard())
	guard := replay.NewGuard(time.Minute, nil)

	return &verificationFixture{
		users:    users,
		svc:      NewVerificationService(users, director, analyzer, decider, pool, guard, opts, logging.Discard()),
		analyzer: analyzer,
	}
}

func defaultOptions() VerificationOptions {
	return VerificationOptions{MaxVideoBytes: 1 << 20, AllowVisualLogin: true}
}

func (f *verificationFixture) enrolledUser(t *testing.T, name string) *AuthToken {
	t.Helper()
	tok, err := f.users.Register(context.Background(), name, "secret")
	require.NoError(t, err)
	res, err := f.svc.Enroll(context.Background(), tok.UserID, videoN(200))
	require.NoError(t, err)
	assert.Equal(t, 3, res.EmbeddingDim)
	assert.Equal(t, 10, res.FramesExtracted)
	return tok
}

func (f *verificationFixture) principal(t *testing.T, tok *AuthToken) *Principal {
	t.Helper()
	p, err := f.users.Validate(context.Background(), tok.Token)
	require.NoError(t, err)
	return p
}

func TestEnroll_VideoSize(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	tok, err := f.users.Register(context.Background(), "alice", "secret")
	require.NoError(t, err)

	_, err = f.svc.Enroll(context.Background(), tok.UserID, []byte("tiny"))
	assert.ErrorIs(t, err, common.ErrDecode)

	_, err = f.svc.Enroll(context.Background(), tok.UserID, make([]byte, 2<<20))
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Zero(t, f.analyzer.calls.Load())
}

func TestAuthenticate_Success(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()
	tok := f.enrolledUser(t, "alice")
	p := f.principal(t, tok)

	ch, err := f.svc.IssueChallenge(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, motion.DirectionTiltLeft, ch.Direction)

	res, err := f.svc.Authenticate(ctx, p, ch.ID, videoN(1))
	require.NoError(t, err)
	assert.True(t, res.Decision.Authenticated)
	assert.Equal(t, p.SessionID, res.SessionID)
	assert.Equal(t, 30, res.FramesDecoded)
	assert.Len(t, res.Decision.Log, 4)

	p = f.principal(t, tok)
	assert.NotNil(t, p.SecondFactorAt)
}

func TestAuthenticate_RejectionIsNotAnError(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()
	tok := f.enrolledUser(t, "alice")
	p := f.principal(t, tok)

	f.analyzer.direction = motion.DirectionTiltRight
	ch, err := f.svc.IssueChallenge(ctx, p.UserID)
	require.NoError(t, err)

	res, err := f.svc.Authenticate(ctx, p, ch.ID, videoN(2))
	require.NoError(t, err)
	assert.False(t, res.Decision.Authenticated)
	assert.False(t, res.Decision.Direction.Passed)

	p = f.principal(t, tok)
	assert.Nil(t, p.SecondFactorAt)
}

func TestAuthenticate_ChallengeIsSingleUse(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()
	p := f.principal(t, f.enrolledUser(t, "alice"))

	ch, err := f.svc.IssueChallenge(ctx, p.UserID)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, p, ch.ID, videoN(3))
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, p, ch.ID, videoN(4))
	assert.ErrorIs(t, err, common.ErrChallengeExpired)

	_, err = f.svc.Authenticate(ctx, p, "unknown", videoN(5))
	assert.ErrorIs(t, err, common.ErrChallengeNotFound)

	_, err = f.svc.Authenticate(ctx, p, "", videoN(5))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAuthenticate_ForeignChallenge(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()
	alice := f.principal(t, f.enrolledUser(t, "alice"))
	bob := f.principal(t, f.enrolledUser(t, "bobby"))

	ch, err := f.svc.IssueChallenge(ctx, alice.UserID)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, bob, ch.ID, videoN(6))
	assert.ErrorIs(t, err, common.ErrChallengeNotFound)
}

func TestAuthenticate_ReplayedVideo(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()
	p := f.principal(t, f.enrolledUser(t, "alice"))

	first, err := f.svc.IssueChallenge(ctx, p.UserID)
	require.NoError(t, err)
	second, err := f.svc.IssueChallenge(ctx, p.UserID)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, p, first.ID, videoN(7))
	require.NoError(t, err)

	calls := f.analyzer.calls.Load()
	_, err = f.svc.Authenticate(ctx, p, second.ID, videoN(7))
	assert.ErrorIs(t, err, common.ErrVideoReplayed)
	assert.Equal(t, calls, f.analyzer.calls.Load())
}

func TestAuthenticate_NoObjectEnrolled(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()

	tok, err := f.users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	p := f.principal(t, tok)

	ch, err := f.svc.IssueChallenge(ctx, p.UserID)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, p, ch.ID, videoN(8))
	assert.ErrorIs(t, err, common.ErrNoObjectEnrolled)
}

func TestAuthenticate_Timeout(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), 20*time.Millisecond)
	ctx := context.Background()
	p := f.principal(t, f.enrolledUser(t, "alice"))

	f.analyzer.block = true
	ch, err := f.svc.IssueChallenge(ctx, p.UserID)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, p, ch.ID, videoN(9))
	assert.ErrorIs(t, err, common.ErrAnalysisTimeout)
}

func TestRegisterVisual(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()

	res, err := f.svc.RegisterVisual(ctx, "carol", videoN(10))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, 3, res.EmbeddingDim)

	u, err := f.users.GetUser(ctx, res.UserID)
	require.NoError(t, err)
	assert.False(t, u.HasPassword())
	assert.Equal(t, []float32{1, 0, 0}, u.ObjectVector)

	_, err = f.svc.RegisterVisual(ctx, "carol", videoN(11))
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = f.svc.RegisterVisual(ctx, "ca", videoN(11))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.RegisterVisual(ctx, "dave", []byte("small"))
	assert.ErrorIs(t, err, common.ErrDecode)
	exists, err := f.users.UserExists(ctx, "dave")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoginVisual(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()

	reg, err := f.svc.RegisterVisual(ctx, "carol", videoN(12))
	require.NoError(t, err)

	ch, err := f.svc.IssueLoginChallenge(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, ch.UserID)

	res, err := f.svc.LoginVisual(ctx, "carol", ch.ID, videoN(13))
	require.NoError(t, err)
	require.NotNil(t, res.Token)
	assert.True(t, res.Decision.Authenticated)
	assert.Equal(t, res.Token.SessionID, res.SessionID)

	p, err := f.users.Validate(ctx, res.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, p.UserID)
	assert.NotNil(t, p.SecondFactorAt)
}

func TestLoginVisual_Rejected(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()

	_, err := f.svc.RegisterVisual(ctx, "carol", videoN(14))
	require.NoError(t, err)

	f.analyzer.score = 0.1
	ch, err := f.svc.IssueLoginChallenge(ctx, "carol")
	require.NoError(t, err)

	res, err := f.svc.LoginVisual(ctx, "carol", ch.ID, videoN(15))
	require.NoError(t, err)
	assert.Nil(t, res.Token)
	assert.False(t, res.Decision.Liveness.Passed)
}

func TestLoginVisual_Refusals(t *testing.T) {
	f := newVerificationFixture(t, defaultOptions(), time.Second)
	ctx := context.Background()

	_, err := f.svc.IssueLoginChallenge(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = f.svc.IssueLoginChallenge(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrNoObjectEnrolled)

	disabled := newVerificationFixture(t, VerificationOptions{MaxVideoBytes: 1 << 20}, time.Second)
	_, err = disabled.svc.RegisterVisual(ctx, "carol", videoN(16))
	require.NoError(t, err)
	_, err = disabled.svc.IssueLoginChallenge(ctx, "carol")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = disabled.svc.LoginVisual(ctx, "carol", "any", videoN(17))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
