// Package decision fuses the liveness, challenge direction and object
// similarity checks into a verdict with a readable log.
package decision

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/scanpass/internal/server/vision/motion"
	"github.com/dmitrijs2005/scanpass/internal/vectorx"
)

// Default thresholds.
const (
	DefaultSimilarityThreshold = 0.60
	DefaultLivenessThreshold   = 1.5
)

// Thresholds are the strict lower bounds a check must exceed.
type Thresholds struct {
	Similarity float64
	Liveness   float64
}

// Input carries everything one decision looks at.
type Input struct {
	StoredVector      []float32
	CandidateVector   []float32
	MotionScore       float64
	DetectedDirection motion.Direction
	ExpectedDirection motion.Direction
}

// LivenessCheck is the outcome of the motion check.
type LivenessCheck struct {
	Passed      bool    `json:"passed"`
	MotionScore float64 `json:"motion_score"`
	Threshold   float64 `json:"threshold"`
}

// DirectionCheck is the outcome of the challenge check.
type DirectionCheck struct {
	Passed   bool             `json:"passed"`
	Detected motion.Direction `json:"detected"`
	Expected motion.Direction `json:"expected"`
}

// SimilarityCheck is the outcome of the object match.
type SimilarityCheck struct {
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

// Result is a verdict with the log that explains it.
type Result struct {
	Authenticated bool            `json:"authenticated"`
	Liveness      LivenessCheck   `json:"liveness"`
	Direction     DirectionCheck  `json:"direction"`
	Similarity    SimilarityCheck `json:"similarity"`
	Log           []string        `json:"auth_log"`
}

// Engine applies fixed thresholds.
type Engine struct {
	th Thresholds
}

func NewEngine(th Thresholds) *Engine {
	return &Engine{th: th}
}

// Decide evaluates every check; the verdict is their conjunction. A
// rejected attempt is a normal Result, not an error.
func (e *Engine) Decide(in Input) *Result {
	sim := vectorx.Cosine(in.StoredVector, in.CandidateVector)

	r := &Result{
		Liveness: LivenessCheck{
			Passed:      in.MotionScore > e.th.Liveness,
			MotionScore: in.MotionScore,
			Threshold:   e.th.Liveness,
		},
		Direction: DirectionCheck{
			Passed:   in.ExpectedDirection.Valid() && in.DetectedDirection == in.ExpectedDirection,
			Detected: in.DetectedDirection,
			Expected: in.ExpectedDirection,
		},
		Similarity: SimilarityCheck{
			Passed:    sim > e.th.Similarity,
			Score:     sim,
			Threshold: e.th.Similarity,
		},
	}
	r.Authenticated = r.Liveness.Passed && r.Direction.Passed && r.Similarity.Passed

	r.Log = append(r.Log,
		fmt.Sprintf("%s Liveness: motion score %.3f (threshold %.2f)", mark(r.Liveness.Passed), in.MotionScore, e.th.Liveness),
		fmt.Sprintf("%s Challenge: detected %q, expected %q", mark(r.Direction.Passed), in.DetectedDirection, in.ExpectedDirection),
		fmt.Sprintf("%s Object match: similarity %.3f (threshold %.2f)", mark(r.Similarity.Passed), sim, e.th.Similarity),
	)

	if r.Authenticated {
		r.Log = append(r.Log, "AUTHENTICATED: all checks passed")
		return r
	}

	var failed []string
	if !r.Liveness.Passed {
		failed = append(failed, "failed liveness (static/replay)")
	}
	if !r.Direction.Passed {
		failed = append(failed, "failed challenge direction")
	}
	if !r.Similarity.Passed {
		failed = append(failed, "object mismatch")
	}
	r.Log = append(r.Log, "REJECTED: "+strings.Join(failed, ", "))
	return r
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
