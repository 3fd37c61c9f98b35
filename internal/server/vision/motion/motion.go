// Package motion estimates dense optical flow over a sampled clip, scores
// how much real motion it contains and classifies the dominant movement
// into one of the challenge directions.
package motion

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/frames"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/video"
)

// Direction is a movement label the analyzer can detect.
type Direction string

const (
	DirectionNone                   Direction = "none"
	DirectionRotateClockwise        Direction = "rotate_clockwise"
	DirectionRotateCounterclockwise Direction = "rotate_counterclockwise"
	DirectionMoveCloser             Direction = "move_closer"
	DirectionMoveAway               Direction = "move_away"
	DirectionTiltLeft               Direction = "tilt_left"
	DirectionTiltRight              Direction = "tilt_right"
)

// Directions lists every detectable label in tie-breaking order.
var Directions = []Direction{
	DirectionRotateClockwise,
	DirectionRotateCounterclockwise,
	DirectionMoveCloser,
	DirectionMoveAway,
	DirectionTiltLeft,
	DirectionTiltRight,
}

// Valid reports whether d is one of the detectable labels.
func (d Direction) Valid() bool {
	for _, known := range Directions {
		if d == known {
			return true
		}
	}
	return false
}

// MaxAnalysisWidth is the widest frame fed to the flow estimator; larger
// frames are scaled down and the flow is scaled back to source pixels.
const MaxAnalysisWidth = 640

// Components are the flow statistics averaged over all frame pairs.
type Components struct {
	Horizontal float64 `json:"horizontal"` // + is rightward
	Vertical   float64 `json:"vertical"`   // + is downward
	Expansion  float64 `json:"expansion"`  // + is toward the camera
	Rotation   float64 `json:"rotation"`   // + is clockwise
}

// Result is the outcome of analysing one clip.
type Result struct {
	Score        float64               `json:"motion_score"`
	MaxMagnitude float64               `json:"max_magnitude"`
	StdMagnitude float64               `json:"std_magnitude"`
	Direction    Direction             `json:"detected_direction"`
	Confidence   float64               `json:"confidence"`
	AngleDeg     float64               `json:"angle_deg"`
	Components   Components            `json:"components"`
	LabelScores  map[Direction]float64 `json:"label_scores"`
	Frames       int                   `json:"frames"`
	Pairs        int                   `json:"pairs"`
}

// Config holds the sampling and classification parameters.
type Config struct {
	SampleFrames       int
	MinFrames          int
	DirectionThreshold float64
}

// Analyzer runs the flow estimator over sampled clips.
type Analyzer struct {
	cfg  Config
	flow FlowEstimator
}

// NewAnalyzer returns an Analyzer. A nil flow selects the default
// estimator for the build.
func NewAnalyzer(cfg Config, flow FlowEstimator) *Analyzer {
	if flow == nil {
		flow = DefaultFlow()
	}
	return &Analyzer{cfg: cfg, flow: flow}
}

// Analyze decodes video and analyses its sampled frames.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (*Result, error) {
	clip, err := video.Decode(ctx, data, a.cfg.SampleFrames)
	if err != nil {
		return nil, err
	}
	if err := clip.Require(a.cfg.MinFrames); err != nil {
		return nil, err
	}
	return a.AnalyzeFrames(ctx, clip.Frames)
}

// AnalyzeFrames samples frames and analyses consecutive pairs. Passing an
// already sampled slice is a no-op for the sampling step.
func (a *Analyzer) AnalyzeFrames(ctx context.Context, clip []image.Image) (*Result, error) {
	sampled, err := video.Sample(clip, a.cfg.SampleFrames, a.cfg.MinFrames)
	if err != nil {
		return nil, err
	}

	planes := make([]*frames.Gray, len(sampled))
	scales := make([]float64, len(sampled))
	for i, img := range sampled {
		planes[i], scales[i] = analysisPlane(img)
	}

	var (
		acc        Components
		sumU, sumV float64
		mags       []float64
	)

	for i := 0; i+1 < len(planes); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prev, next := planes[i], planes[i+1]
		if prev.W != next.W || prev.H != next.H {
			return nil, fmt.Errorf("%w: frame %d size %dx%d differs from frame %d size %dx%d", common.ErrDecode, i, prev.W, prev.H, i+1, next.W, next.H)
		}

		field, err := a.flow.Flow(prev, next)
		if err != nil {
			return nil, fmt.Errorf("flow between frames %d and %d: %w", i, i+1, err)
		}

		s := pairStats(field, scales[i])
		acc.Horizontal += s.Horizontal
		acc.Vertical += s.Vertical
		acc.Expansion += s.Expansion
		acc.Rotation += s.Rotation
		sumU += s.sumU
		sumV += s.sumV
		mags = append(mags, s.magnitude)
	}

	res := &Result{Frames: len(sampled), Pairs: len(mags), Direction: DirectionNone}
	if len(mags) == 0 {
		res.LabelScores = LabelScores(acc)
		return res, nil
	}

	n := float64(len(mags))
	res.Components = Components{
		Horizontal: acc.Horizontal / n,
		Vertical:   acc.Vertical / n,
		Expansion:  acc.Expansion / n,
		Rotation:   acc.Rotation / n,
	}
	res.Score, res.MaxMagnitude, res.StdMagnitude = magnitudeStats(mags)
	res.AngleDeg = math.Atan2(sumV, sumU) * 180 / math.Pi
	res.LabelScores = LabelScores(res.Components)
	res.Direction, res.Confidence = Classify(res.LabelScores, a.cfg.DirectionThreshold)
	return res, nil
}

// LabelScores maps averaged components onto per-label evidence.
func LabelScores(c Components) map[Direction]float64 {
	return map[Direction]float64{
		DirectionRotateClockwise:        math.Max(c.Rotation, 0),
		DirectionRotateCounterclockwise: math.Max(-c.Rotation, 0),
		DirectionMoveCloser:             math.Max(c.Expansion, 0),
		DirectionMoveAway:               math.Max(-c.Expansion, 0),
		DirectionTiltLeft:               math.Max(-c.Horizontal, 0),
		DirectionTiltRight:              math.Max(c.Horizontal, 0),
	}
}

// Classify returns the label with the highest score, or DirectionNone when
// that score is not above threshold. Ties go to the earlier label in
// Directions.
func Classify(scores map[Direction]float64, threshold float64) (Direction, float64) {
	best, bestScore := DirectionNone, math.Inf(-1)
	for _, d := range Directions {
		if s := scores[d]; s > bestScore {
			best, bestScore = d, s
		}
	}
	if bestScore <= threshold {
		return DirectionNone, math.Max(bestScore, 0)
	}
	return best, bestScore
}

type pairSummary struct {
	Components
	magnitude  float64
	sumU, sumV float64
}

// pairStats reduces one flow field, rescaled to source pixels by scale.
func pairStats(f *Field, scale float64) pairSummary {
	cx, cy := float64(f.W/2), float64(f.H/2)
	n := float64(f.W * f.H)

	var s pairSummary
	for y := 0; y < f.H; y++ {
		ry := float64(y) - cy
		for x := 0; x < f.W; x++ {
			i := y*f.W + x
			u := float64(f.U[i]) * scale
			v := float64(f.V[i]) * scale

			rx := float64(x) - cx
			norm := math.Sqrt(rx*rx+ry*ry) + 1e-8
			nx, ny := rx/norm, ry/norm

			s.Horizontal += u
			s.Vertical += v
			s.Expansion += u*nx + v*ny
			s.Rotation += u*(-ny) + v*nx
			s.magnitude += math.Hypot(u, v)
			s.sumU += u
			s.sumV += v
		}
	}

	s.Horizontal /= n
	s.Vertical /= n
	s.Expansion /= n
	s.Rotation /= n
	s.magnitude /= n
	return s
}

func magnitudeStats(mags []float64) (mean, maxMag, std float64) {
	for _, m := range mags {
		mean += m
		maxMag = math.Max(maxMag, m)
	}
	mean /= float64(len(mags))
	for _, m := range mags {
		std += (m - mean) * (m - mean)
	}
	std = math.Sqrt(std / float64(len(mags)))
	return mean, maxMag, std
}

// analysisPlane converts img to luminance, scaling it down to at most
// MaxAnalysisWidth. The returned factor maps analysis pixels back to
// source pixels.
func analysisPlane(img image.Image) (*frames.Gray, float64) {
	b := img.Bounds()
	if b.Dx() <= MaxAnalysisWidth {
		return frames.ToGray(img), 1
	}

	h := max(1, b.Dy()*MaxAnalysisWidth/b.Dx())
	return frames.ToGray(frames.Resize(img, MaxAnalysisWidth, h)), float64(b.Dx()) / MaxAnalysisWidth
}
