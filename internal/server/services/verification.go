package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"github.com/dmitrijs2005/scanpass/internal/server/challenges"
	"github.com/dmitrijs2005/scanpass/internal/server/decision"
	"github.com/dmitrijs2005/scanpass/internal/server/models"
	"github.com/dmitrijs2005/scanpass/internal/server/replay"
	"github.com/dmitrijs2005/scanpass/internal/server/vision"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/embedding"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/motion"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/video"
	"github.com/dmitrijs2005/scanpass/internal/server/workers"
)

// VideoAnalyzer is the vision pipeline as seen by the service.
type VideoAnalyzer interface {
	Embed(ctx context.Context, data []byte) (*embedding.Embedding, error)
	Analyze(ctx context.Context, data []byte) (*vision.Analysis, error)
	Dim() int
}

// EnrollResult describes a stored enrollment.
type EnrollResult struct {
	FramesExtracted int
	EmbeddingDim    int
}

// VisualRegisterResult is an account created from a video alone.
type VisualRegisterResult struct {
	AuthToken
	EnrollResult
}

// AuthResult is the outcome of one verification attempt. Rejection is a
// normal result with Decision.Authenticated false.
type AuthResult struct {
	Decision      *decision.Result
	Motion        *motion.Result
	FramesDecoded int
	UserID        string
	SessionID     string
}

// VisualLoginResult carries the new session when visual login succeeds.
type VisualLoginResult struct {
	AuthResult
	Token *AuthToken
}

// VerificationService runs enrollment and challenge-response verification.
type VerificationService struct {
	users            *UserService
	director         *challenges.Director
	analyzer         VideoAnalyzer
	decider          *decision.Engine
	pool             *workers.Pool
	replay           *replay.Guard
	maxVideoBytes    int64
	allowVisualLogin bool
	logger           logging.Logger
}

// VerificationOptions are the tunables of a VerificationService.
type VerificationOptions struct {
	MaxVideoBytes    int64
	AllowVisualLogin bool
}

func NewVerificationService(
	users *UserService,
	director *challenges.Director,
	analyzer VideoAnalyzer,
	decider *decision.Engine,
	pool *workers.Pool,
	guard *replay.Guard,
	opts VerificationOptions,
	logger logging.Logger,
) *VerificationService {
	return &VerificationService{
		users:            users,
		director:         director,
		analyzer:         analyzer,
		decider:          decider,
		pool:             pool,
		replay:           guard,
		maxVideoBytes:    opts.MaxVideoBytes,
		allowVisualLogin: opts.AllowVisualLogin,
		logger:           logger.With("module", "verification"),
	}
}

func (s *VerificationService) checkSize(data []byte) error {
	if len(data) < video.MinVideoBytes {
		return fmt.Errorf("%w: video too small (%d bytes), record at least 2 seconds", common.ErrDecode, len(data))
	}
	if s.maxVideoBytes > 0 && int64(len(data)) > s.maxVideoBytes {
		return fmt.Errorf("%w: video exceeds %d bytes", common.ErrValidation, s.maxVideoBytes)
	}
	return nil
}

func (s *VerificationService) embed(ctx context.Context, data []byte) (*embedding.Embedding, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	return workers.Run(ctx, s.pool, func(ctx context.Context) (*embedding.Embedding, error) {
		return s.analyzer.Embed(ctx, data)
	})
}

// IssueChallenge issues a challenge for an authenticated user.
func (s *VerificationService) IssueChallenge(ctx context.Context, userID string) (*challenges.Challenge, error) {
	return s.director.Issue(ctx, userID)
}

// Enroll embeds the video and stores it as the user's object.
func (s *VerificationService) Enroll(ctx context.Context, userID string, data []byte) (*EnrollResult, error) {
	emb, err := s.embed(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.users.Enroll(ctx, userID, emb.Vector); err != nil {
		return nil, err
	}
	return &EnrollResult{FramesExtracted: emb.FramesExtracted, EmbeddingDim: emb.Dim()}, nil
}

// RegisterVisual creates a visual-only account from an enrollment video.
func (s *VerificationService) RegisterVisual(ctx context.Context, userName string, data []byte) (*VisualRegisterResult, error) {
	if err := ValidateUserName(userName); err != nil {
		return nil, err
	}
	exists, err := s.users.UserExists(ctx, userName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: username already taken", common.ErrorAlreadyExists)
	}

	emb, err := s.embed(ctx, data)
	if err != nil {
		return nil, err
	}

	token, err := s.users.RegisterVisual(ctx, userName, emb.Vector)
	if err != nil {
		return nil, err
	}
	return &VisualRegisterResult{
		AuthToken:    *token,
		EnrollResult: EnrollResult{FramesExtracted: emb.FramesExtracted, EmbeddingDim: emb.Dim()},
	}, nil
}

// Authenticate verifies a challenge response for the caller and, on
// success, marks the caller's session as second-factor verified.
func (s *VerificationService) Authenticate(ctx context.Context, p *Principal, challengeID string, data []byte) (*AuthResult, error) {
	user, err := s.users.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	res, err := s.verify(ctx, user, challengeID, data)
	if err != nil {
		return nil, err
	}
	res.SessionID = p.SessionID

	if res.Decision.Authenticated {
		if err := s.users.MarkSecondFactor(ctx, p.SessionID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *VerificationService) visualLoginUser(ctx context.Context, userName string) (*models.User, error) {
	if !s.allowVisualLogin {
		return nil, fmt.Errorf("%w: visual login is disabled", common.ErrorUnauthorized)
	}

	user, err := s.users.GetUserByName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: invalid user or no visual key", common.ErrorUnauthorized)
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}
	if !user.HasObject() {
		return nil, fmt.Errorf("%w: please login with password first", common.ErrNoObjectEnrolled)
	}
	return user, nil
}

// IssueLoginChallenge starts a visual login for userName.
func (s *VerificationService) IssueLoginChallenge(ctx context.Context, userName string) (*challenges.Challenge, error) {
	user, err := s.visualLoginUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	return s.director.Issue(ctx, user.ID)
}

// LoginVisual verifies a challenge response for userName without a
// password and opens a session on success.
func (s *VerificationService) LoginVisual(ctx context.Context, userName, challengeID string, data []byte) (*VisualLoginResult, error) {
	user, err := s.visualLoginUser(ctx, userName)
	if err != nil {
		return nil, err
	}

	res, err := s.verify(ctx, user, challengeID, data)
	if err != nil {
		return nil, err
	}

	out := &VisualLoginResult{AuthResult: *res}
	if !res.Decision.Authenticated {
		return out, nil
	}

	token, err := s.users.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.users.MarkSecondFactor(ctx, token.SessionID); err != nil {
		return nil, err
	}
	out.Token = token
	out.SessionID = token.SessionID
	s.logger.Info(ctx, "visual login succeeded", "user_id", user.ID)
	return out, nil
}

// verify burns the challenge, rejects replayed videos, analyses the clip
// and decides.
func (s *VerificationService) verify(ctx context.Context, user *models.User, challengeID string, data []byte) (*AuthResult, error) {
	if !user.HasObject() {
		return nil, fmt.Errorf("%w: please enroll an object first", common.ErrNoObjectEnrolled)
	}
	if challengeID == "" {
		return nil, fmt.Errorf("%w: challenge_id is required", common.ErrValidation)
	}
	if err := s.checkSize(data); err != nil {
		return nil, err
	}

	ch, err := s.director.Resolve(ctx, challengeID, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.replay.Check(data); err != nil {
		s.logger.Warn(ctx, "replayed video rejected", "user_id", user.ID)
		return nil, err
	}

	analysis, err := workers.Run(ctx, s.pool, func(ctx context.Context) (*vision.Analysis, error) {
		return s.analyzer.Analyze(ctx, data)
	})
	if err != nil {
		return nil, err
	}

	verdict := s.decider.Decide(decision.Input{
		StoredVector:      user.ObjectVector,
		CandidateVector:   analysis.Embedding.Vector,
		MotionScore:       analysis.Motion.Score,
		DetectedDirection: analysis.Motion.Direction,
		ExpectedDirection: ch.Direction,
	})

	s.logger.Info(ctx, "verification decided",
		"user_id", user.ID,
		"authenticated", verdict.Authenticated,
		"motion_score", verdict.Liveness.MotionScore,
		"detected", verdict.Direction.Detected,
		"expected", verdict.Direction.Expected,
		"similarity", verdict.Similarity.Score,
	)
	for _, line := range verdict.Log {
		s.logger.Debug(ctx, line, "user_id", user.ID)
	}

	return &AuthResult{
		Decision:      verdict,
		Motion:        analysis.Motion,
		FramesDecoded: analysis.FramesDecoded,
		UserID:        user.ID,
	}, nil
}
