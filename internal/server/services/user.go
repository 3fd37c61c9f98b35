// Package services contains server-side business logic. This file implements
// UserService: password accounts, enrolled object vectors and the
// time-bounded sessions that authorize every protected request.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/cryptox"
	"github.com/dmitrijs2005/scanpass/internal/dbx"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"github.com/dmitrijs2005/scanpass/internal/server/auth"
	"github.com/dmitrijs2005/scanpass/internal/server/config"
	"github.com/dmitrijs2005/scanpass/internal/server/models"
	"github.com/dmitrijs2005/scanpass/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Credential length minimums.
const (
	MinUserNameLength = 3
	MinPasswordLength = 4
)

// AuthToken is an issued session credential.
type AuthToken struct {
	Token     string
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

// LoginResult is the outcome of a password login.
type LoginResult struct {
	AuthToken
	HasObject       bool
	NeedsVisualAuth bool
}

// Principal is the caller behind a validated token.
type Principal struct {
	UserID         string
	UserName       string
	SessionID      string
	HasObject      bool
	SecondFactorAt *time.Time
}

// UserService provides account and session operations:
// - Register / Login: password accounts
// - IssueSession / Validate / Logout: bearer sessions
// - Enroll / Revoke: the enrolled object vector
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	sessionTTL  time.Duration
	now         func() time.Time
	logger      logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		jwtSecret:   []byte(cfg.SecretKey),
		sessionTTL:  cfg.SessionTTL,
		now:         time.Now,
		logger:      logger.With("module", "users"),
	}
}

// ValidateUserName checks the minimum username length.
func ValidateUserName(userName string) error {
	if utf8.RuneCountInString(userName) < MinUserNameLength {
		return fmt.Errorf("%w: username must be at least %d characters", common.ErrValidation, MinUserNameLength)
	}
	return nil
}

// Register creates a password account and opens a session for it.
func (s *UserService) Register(ctx context.Context, userName, password string) (*AuthToken, error) {
	if err := ValidateUserName(userName); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	return s.create(ctx, &models.User{UserName: userName, PasswordHash: hash})
}

// RegisterVisual creates a visual-only account whose enrolled vector is
// its sole credential, and opens a session for it.
func (s *UserService) RegisterVisual(ctx context.Context, userName string, vector []float32) (*AuthToken, error) {
	if err := ValidateUserName(userName); err != nil {
		return nil, err
	}
	return s.create(ctx, &models.User{UserName: userName, ObjectVector: vector})
}

func (s *UserService) create(ctx context.Context, user *models.User) (*AuthToken, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	// The account and its first session are created together so a failed
	// session insert does not leave a registered name behind.
	var token *AuthToken
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		token, err = s.issueSession(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user registered", "user_id", token.UserID, "visual_only", !user.HasPassword())

	return token, nil
}

// UserExists reports whether userName is taken.
func (s *UserService) UserExists(ctx context.Context, userName string) (bool, error) {
	_, err := s.repomanager.Users(s.db).GetByUserName(ctx, userName)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("error looking up user: %w", err)
	}
}

// Login verifies a password and opens a session.
func (s *UserService) Login(ctx context.Context, userName, password string) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "login failed: unknown user")
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	if !user.HasPassword() {
		s.logger.Warn(ctx, "login failed: visual-only account", "user_id", user.ID)
		return nil, common.ErrorUnauthorized
	}

	ok, err := cryptox.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		s.logger.Warn(ctx, "login failed: wrong password", "user_id", user.ID)
		return nil, common.ErrorUnauthorized
	}

	token, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AuthToken: *token, HasObject: user.HasObject(), NeedsVisualAuth: user.HasObject()}, nil
}

// IssueSession stores a new session for userID and signs its token.
func (s *UserService) IssueSession(ctx context.Context, userID string) (*AuthToken, error) {
	return s.issueSession(ctx, s.db, userID)
}

func (s *UserService) issueSession(ctx context.Context, db dbx.DBTX, userID string) (*AuthToken, error) {
	now := s.now()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	token, err := auth.GenerateToken(session.ID, userID, session.IssuedAt, session.ExpiresAt, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("error signing token: %w", err)
	}
	if err := s.repomanager.Sessions(db).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("error storing session: %w", err)
	}

	return &AuthToken{Token: token, SessionID: session.ID, UserID: userID, ExpiresAt: session.ExpiresAt}, nil
}

// Validate authorizes token: the signature and expiry must verify, the
// session row must exist and be unexpired, and the user must still exist.
func (s *UserService) Validate(ctx context.Context, token string) (*Principal, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	session, err := s.repomanager.Sessions(s.db).Find(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: session not found", common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("error looking up session: %w", err)
	}
	if session.UserID != claims.UserID {
		return nil, fmt.Errorf("%w: session owner mismatch", common.ErrInvalidToken)
	}
	if session.Expired(s.now()) {
		return nil, common.ErrTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	return &Principal{
		UserID:         user.ID,
		UserName:       user.UserName,
		SessionID:      session.ID,
		HasObject:      user.HasObject(),
		SecondFactorAt: session.SecondFactorAt,
	}, nil
}

// Logout deletes the session.
func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	if err := s.repomanager.Sessions(s.db).Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

// MarkSecondFactor stamps the session as having passed visual authentication.
func (s *UserService) MarkSecondFactor(ctx context.Context, sessionID string) error {
	if err := s.repomanager.Sessions(s.db).MarkSecondFactor(ctx, sessionID, s.now()); err != nil {
		return fmt.Errorf("error marking session: %w", err)
	}
	return nil
}

// GetUser returns the user with id.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// GetUserByName returns the user called userName.
func (s *UserService) GetUserByName(ctx context.Context, userName string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByUserName(ctx, userName)
}

// Enroll stores vector as the user's object, replacing any previous one.
func (s *UserService) Enroll(ctx context.Context, userID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty object vector", common.ErrValidation)
	}
	if err := s.repomanager.Users(s.db).SetObjectVector(ctx, userID, vector); err != nil {
		return fmt.Errorf("error storing object vector: %w", err)
	}
	s.logger.Info(ctx, "object enrolled", "user_id", userID, "dim", len(vector))
	return nil
}

// Revoke clears the user's object vector. Accounts without a password are
// refused, since the vector is their only credential.
func (s *UserService) Revoke(ctx context.Context, userID string) error {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("error looking up user: %w", err)
	}
	if !user.HasPassword() {
		return fmt.Errorf("%w: visual-only accounts cannot revoke their only credential", common.ErrValidation)
	}
	if err := s.repomanager.Users(s.db).ClearObjectVector(ctx, userID); err != nil {
		return fmt.Errorf("error clearing object vector: %w", err)
	}
	s.logger.Info(ctx, "object revoked", "user_id", userID)
	return nil
}

// SweepSessions deletes expired sessions.
func (s *UserService) SweepSessions(ctx context.Context) (int64, error) {
	return s.repomanager.Sessions(s.db).DeleteExpired(ctx, s.now())
}

// RunSessionSweeper calls SweepSessions every interval until ctx is done.
func (s *UserService) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepSessions(ctx)
			if err != nil {
				s.logger.Error(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug(ctx, "swept sessions", "count", n)
			}
		}
	}
}
