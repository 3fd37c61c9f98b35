package cli

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/api"
)

func (a *App) Challenge(ctx context.Context) error {
	ch, err := a.client.Challenge(ctx)
	if err != nil {
		return err
	}
	a.printChallenge(ch)
	return nil
}

func (a *App) Enroll(ctx context.Context) error {
	video, err := getVideo(a.reader, "Path to a video of your object", a.config.MaxVideoBytes, a.out)
	if err != nil {
		return err
	}

	res, err := a.client.Enroll(ctx, video)
	if err != nil {
		return err
	}
	a.printf("%s\n", res.Message)
	a.printf("Frames extracted: %d, embedding size: %d\n", res.Details.FramesExtracted, res.Details.EmbeddingDim)
	return nil
}

// Authenticate fetches a fresh challenge, waits for the user to record the
// requested motion and submits the file.
func (a *App) Authenticate(ctx context.Context) error {
	ch, err := a.client.Challenge(ctx)
	if err != nil {
		return err
	}
	a.printChallenge(ch)

	video, err := getVideo(a.reader, "Path to the recorded answer", a.config.MaxVideoBytes, a.out)
	if err != nil {
		return err
	}

	res, err := a.client.Authenticate(ctx, ch.ID, video)
	if err != nil {
		return err
	}
	a.printf("Result: %s\n", res.Message)
	a.printDetails(res.Details, res.AuthLog)
	return nil
}

func (a *App) Revoke(ctx context.Context) error {
	if err := a.client.Revoke(ctx); err != nil {
		return err
	}
	a.printf("Visual key revoked. Run 'enroll' to add a new one.\n")
	return nil
}

func (a *App) Secure(ctx context.Context) error {
	res, err := a.client.SecureData(ctx)
	if err != nil {
		return err
	}
	a.printf("%s\n(user %s at %s)\n", res.Data, res.User, res.Timestamp.Format(time.RFC3339))
	return nil
}

func (a *App) Health(ctx context.Context) error {
	if err := a.client.Health(ctx); err != nil {
		return err
	}
	a.printf("Server %s is up\n", a.config.ServerURL)
	return nil
}

func (a *App) printChallenge(ch *api.ChallengeBody) {
	a.printf("Challenge: %s\n", ch.Text)
	if ch.Description != "" {
		a.printf("  %s\n", ch.Description)
	}
	a.printf("  Record your answer before %s\n", ch.ExpiresAt.Local().Format(time.Kitchen))
}

func (a *App) printDetails(d api.AuthDetails, log []string) {
	a.printf("  liveness:   %s (motion %.2f, threshold %.2f)\n", passMark(d.Liveness.Passed), d.Liveness.MotionScore, d.Liveness.Threshold)
	a.printf("  direction:  %s (detected %s, expected %s)\n", passMark(d.Direction.Passed), d.Direction.Detected, d.Direction.Expected)
	a.printf("  similarity: %s (score %.3f, threshold %.3f)\n", passMark(d.Similarity.Passed), d.Similarity.Score, d.Similarity.Threshold)
	if len(log) > 0 {
		a.printf("  log:\n    %s\n", strings.Join(log, "\n    "))
	}
}

func passMark(ok bool) string {
	if ok {
		return "pass"
	}
	return "FAIL"
}
