// Package vision wires video decoding, embedding extraction and motion
// analysis into the two operations the services need.
package vision

import (
	"context"
	"image"

	"github.com/dmitrijs2005/scanpass/internal/server/vision/embedding"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/motion"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/video"
	"golang.org/x/sync/errgroup"
)

// Config selects how many frames are analysed.
type Config struct {
	SampleFrames int
	MinFrames    int
}

// Analysis is the combined result of one authentication clip.
type Analysis struct {
	Embedding     *embedding.Embedding
	Motion        *motion.Result
	FramesDecoded int
}

// Pipeline decodes a clip once and shares the sampled frames between the
// embedding engine and the motion analyzer.
type Pipeline struct {
	cfg      Config
	engine   *embedding.Engine
	analyzer *motion.Analyzer
}

func NewPipeline(cfg Config, engine *embedding.Engine, analyzer *motion.Analyzer) *Pipeline {
	return &Pipeline{cfg: cfg, engine: engine, analyzer: analyzer}
}

// Dim is the embedding length.
func (p *Pipeline) Dim() int { return p.engine.Dim() }

func (p *Pipeline) sample(ctx context.Context, data []byte) ([]image.Image, int, error) {
	clip, err := video.Decode(ctx, data, p.cfg.SampleFrames)
	if err != nil {
		return nil, 0, err
	}
	if err := clip.Require(p.cfg.MinFrames); err != nil {
		return nil, 0, err
	}
	return clip.Frames, clip.Total, nil
}

// Embed produces the enrollment embedding of data.
func (p *Pipeline) Embed(ctx context.Context, data []byte) (*embedding.Embedding, error) {
	sampled, _, err := p.sample(ctx, data)
	if err != nil {
		return nil, err
	}
	return p.engine.ExtractFrames(ctx, sampled)
}

// Analyze embeds data and analyses its motion in parallel.
func (p *Pipeline) Analyze(ctx context.Context, data []byte) (*Analysis, error) {
	sampled, decoded, err := p.sample(ctx, data)
	if err != nil {
		return nil, err
	}

	res := &Analysis{FramesDecoded: decoded}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		emb, err := p.engine.ExtractFrames(gctx, sampled)
		if err != nil {
			return err
		}
		res.Embedding = emb
		return nil
	})

	g.Go(func() error {
		m, err := p.analyzer.AnalyzeFrames(gctx, sampled)
		if err != nil {
			return err
		}
		res.Motion = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}
