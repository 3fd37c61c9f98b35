package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/dbx"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"github.com/dmitrijs2005/scanpass/internal/server/auth"
	"github.com/dmitrijs2005/scanpass/internal/server/config"
	"github.com/dmitrijs2005/scanpass/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	return cfg
}

func newTestDB(t *testing.T) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()
	ctx := context.Background()

	db, dialect, err := dbx.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm, err := repomanager.New(dialect)
	require.NoError(t, err)
	require.NoError(t, rm.RunMigrations(ctx, db))
	return db, rm
}

func newTestUserService(t *testing.T) *UserService {
	t.Helper()
	db, rm := newTestDB(t)
	return NewUserService(db, rm, testConfig(), logging.Discard())
}

func TestRegister_Validation(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "al", "secret")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.Register(ctx, "alice", "abc")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRegister_AndValidate(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tok, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.NotEmpty(t, tok.UserID)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), tok.ExpiresAt, 5*time.Second)

	p, err := s.Validate(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, tok.UserID, p.UserID)
	assert.Equal(t, tok.SessionID, p.SessionID)
	assert.Equal(t, "alice", p.UserName)
	assert.False(t, p.HasObject)
	assert.Nil(t, p.SecondFactorAt)

	_, err = s.Register(ctx, "alice", "other-secret")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestLogin(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	res, err := s.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, res.UserID)
	assert.NotEqual(t, reg.SessionID, res.SessionID)
	assert.False(t, res.HasObject)
	assert.False(t, res.NeedsVisualAuth)

	_, err = s.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Login(ctx, "ghost", "secret")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	require.NoError(t, s.Enroll(ctx, reg.UserID, []float32{1, 0, 0}))
	res, err = s.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.True(t, res.HasObject)
	assert.True(t, res.NeedsVisualAuth)
}

func TestLogin_VisualOnlyAccountHasNoPassword(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	_, err := s.RegisterVisual(ctx, "bob", []float32{0, 1})
	require.NoError(t, err)

	_, err = s.Login(ctx, "bob", "")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestValidate_Failures(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tok, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = s.Validate(ctx, "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	forged, err := auth.GenerateToken(tok.SessionID, tok.UserID, time.Now(), time.Now().Add(time.Minute), []byte("other"))
	require.NoError(t, err)
	_, err = s.Validate(ctx, forged)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	unknown, err := auth.GenerateToken("no-such-session", tok.UserID, time.Now(), time.Now().Add(time.Minute), []byte("test-secret"))
	require.NoError(t, err)
	_, err = s.Validate(ctx, unknown)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	stolen, err := auth.GenerateToken(tok.SessionID, "someone-else", time.Now(), time.Now().Add(time.Minute), []byte("test-secret"))
	require.NoError(t, err)
	_, err = s.Validate(ctx, stolen)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestValidate_ExpiredSession(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tok, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(3 * time.Minute) }
	_, err = s.Validate(ctx, tok.Token)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	n, err := s.SweepSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLogout(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tok, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, tok.SessionID))
	_, err = s.Validate(ctx, tok.Token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	assert.NoError(t, s.Logout(ctx, tok.SessionID))
}

func TestMarkSecondFactor(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tok, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	require.NoError(t, s.MarkSecondFactor(ctx, tok.SessionID))
	p, err := s.Validate(ctx, tok.Token)
	require.NoError(t, err)
	require.NotNil(t, p.SecondFactorAt)
}

func TestEnrollAndRevoke(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tok, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Enroll(ctx, tok.UserID, nil), common.ErrValidation)

	require.NoError(t, s.Enroll(ctx, tok.UserID, []float32{1, 2, 3}))
	require.NoError(t, s.Enroll(ctx, tok.UserID, []float32{4, 5}))

	u, err := s.GetUser(ctx, tok.UserID)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5}, u.ObjectVector)

	require.NoError(t, s.Revoke(ctx, tok.UserID))
	u, err = s.GetUserByName(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, u.HasObject())
	assert.True(t, u.HasPassword())

	// the password credential survives revocation
	_, err = s.Login(ctx, "alice", "secret")
	assert.NoError(t, err)

	// revoking again is harmless
	assert.NoError(t, s.Revoke(ctx, tok.UserID))
}

func TestRevoke_RefusedForVisualOnly(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	tok, err := s.RegisterVisual(ctx, "bob", []float32{1, 0})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Revoke(ctx, tok.UserID), common.ErrValidation)

	u, err := s.GetUser(ctx, tok.UserID)
	require.NoError(t, err)
	assert.True(t, u.HasObject())
}

func TestRegisterVisual_Validation(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	_, err := s.RegisterVisual(ctx, "bo", []float32{1})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.RegisterVisual(ctx, "bobby", nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUserExists(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	ok, err := s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	ok, err = s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunSessionSweeper(t *testing.T) {
	s := newTestUserService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(time.Hour) }

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		s.RunSessionSweeper(runCtx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		n, err := s.SweepSessions(ctx)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
