// Package embedding turns a video of an object into a single fixed-length
// unit vector suitable for cosine comparison against an enrolled one.
package embedding

import (
	"context"
	"fmt"
	"image"

	"github.com/dmitrijs2005/scanpass/internal/server/vision/frames"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/video"
	"github.com/dmitrijs2005/scanpass/internal/vectorx"
)

// InputSize is the square side frames are resized to before extraction.
const InputSize = 224

// DefaultDim is the embedding length of the default extractor.
const DefaultDim = 1280

// FeatureExtractor maps one normalized frame tensor to a feature vector of
// length Dim. Implementations must be deterministic.
type FeatureExtractor interface {
	Dim() int
	Extract(t *frames.Tensor) ([]float32, error)
}

// Embedding is the averaged, L2-normalized vector of a clip.
type Embedding struct {
	Vector          []float32
	FramesExtracted int
}

// Dim returns the vector length.
func (e *Embedding) Dim() int { return len(e.Vector) }

// Config holds the sampling parameters.
type Config struct {
	SampleFrames int
	MinFrames    int
}

// Engine samples frames and runs them through a FeatureExtractor.
type Engine struct {
	cfg       Config
	extractor FeatureExtractor
}

func NewEngine(cfg Config, extractor FeatureExtractor) *Engine {
	return &Engine{cfg: cfg, extractor: extractor}
}

// Dim is the length of every vector the engine produces.
func (e *Engine) Dim() int { return e.extractor.Dim() }

// Extract decodes data and embeds its sampled frames.
func (e *Engine) Extract(ctx context.Context, data []byte) (*Embedding, error) {
	clip, err := video.Decode(ctx, data, e.cfg.SampleFrames)
	if err != nil {
		return nil, err
	}
	if err := clip.Require(e.cfg.MinFrames); err != nil {
		return nil, err
	}
	return e.ExtractFrames(ctx, clip.Frames)
}

// ExtractFrames samples clip, extracts every sampled frame and returns the
// normalized mean vector.
func (e *Engine) ExtractFrames(ctx context.Context, clip []image.Image) (*Embedding, error) {
	sampled, err := video.Sample(clip, e.cfg.SampleFrames, e.cfg.MinFrames)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(sampled))
	for i, img := range sampled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := e.extractor.Extract(frames.ToTensor(img, InputSize))
		if err != nil {
			return nil, fmt.Errorf("extract frame %d: %w", i, err)
		}
		if len(v) != e.extractor.Dim() {
			return nil, fmt.Errorf("extract frame %d: got %d values, want %d", i, len(v), e.extractor.Dim())
		}
		vectors = append(vectors, v)
	}

	return &Embedding{
		Vector:          vectorx.Normalize(vectorx.Mean(vectors)),
		FramesExtracted: len(vectors),
	}, nil
}
