package httpapi

import (
	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/dmitrijs2005/scanpass/internal/server/challenges"
	"github.com/dmitrijs2005/scanpass/internal/server/services"
)

func challengeBody(ch *challenges.Challenge) api.ChallengeBody {
	return api.ChallengeBody{
		ID:          ch.ID,
		Text:        ch.Text,
		Description: ch.Description,
		ExpiresAt:   ch.ExpiresAt,
	}
}

func enrollDetails(r services.EnrollResult) api.EnrollDetails {
	return api.EnrollDetails{
		FramesExtracted: r.FramesExtracted,
		EmbeddingDim:    r.EmbeddingDim,
		Storage:         "embedding_only",
	}
}

func authDetails(r *services.AuthResult) api.AuthDetails {
	d := r.Decision
	out := api.AuthDetails{
		Liveness: api.LivenessDetails{
			Passed:      d.Liveness.Passed,
			MotionScore: d.Liveness.MotionScore,
			Threshold:   d.Liveness.Threshold,
		},
		Direction: api.DirectionDetails{
			Passed:   d.Direction.Passed,
			Detected: string(d.Direction.Detected),
			Expected: string(d.Direction.Expected),
		},
		Similarity: api.SimilarityDetails{
			Passed:    d.Similarity.Passed,
			Score:     d.Similarity.Score,
			Threshold: d.Similarity.Threshold,
		},
		FramesDecoded: r.FramesDecoded,
	}
	if r.Motion != nil {
		out.Direction.Confidence = r.Motion.Confidence
	}
	return out
}

func verdictMessage(ok bool) string {
	if ok {
		return "AUTHENTICATED"
	}
	return "REJECTED"
}
