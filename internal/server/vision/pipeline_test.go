package vision

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/embedding"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/motion"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/visiontest"
	"github.com/dmitrijs2005/scanpass/internal/vectorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() *Pipeline {
	cfg := Config{SampleFrames: 10, MinFrames: 3}
	engine := embedding.NewEngine(embedding.Config(cfg), embedding.NewSeededGridExtractor(256, embedding.DefaultSeed))
	analyzer := motion.NewAnalyzer(motion.Config{SampleFrames: 10, MinFrames: 3, DirectionThreshold: 0.3}, motion.NewLucasKanade())
	return NewPipeline(cfg, engine, analyzer)
}

func TestPipeline_Analyze(t *testing.T) {
	p := newTestPipeline()

	res, err := p.Analyze(context.Background(), visiontest.MovingClip(8, 16, visiontest.Motion{DX: 3}))
	require.NoError(t, err)

	assert.Equal(t, 16, res.FramesDecoded)
	assert.Equal(t, 10, res.Embedding.FramesExtracted)
	assert.Equal(t, 256, res.Embedding.Dim())
	assert.Equal(t, 10, res.Motion.Frames)
	assert.Equal(t, motion.DirectionTiltRight, res.Motion.Direction)
	assert.Greater(t, res.Motion.Score, 1.5)
}

func TestPipeline_EmbedMatchesAnalyze(t *testing.T) {
	p := newTestPipeline()
	clip := visiontest.MovingClip(9, 10, visiontest.Motion{DY: 1})

	emb, err := p.Embed(context.Background(), clip)
	require.NoError(t, err)
	res, err := p.Analyze(context.Background(), clip)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, vectorx.Cosine(emb.Vector, res.Embedding.Vector), 1e-6)
	assert.Equal(t, 256, p.Dim())
}

func TestPipeline_Errors(t *testing.T) {
	p := newTestPipeline()

	_, err := p.Analyze(context.Background(), []byte("tiny"))
	assert.ErrorIs(t, err, common.ErrDecode)

	_, err = p.Embed(context.Background(), visiontest.MovingClip(1, 2, visiontest.Motion{}))
	assert.ErrorIs(t, err, common.ErrInsufficientFrames)
}

func TestPipeline_MixedFrameSizesIsDecodeError(t *testing.T) {
	scene := visiontest.NewScene(10, 96, 72)
	frames := append(scene.ColorFrames(96, 72, 5, visiontest.Motion{DX: 1}), scene.ColorFrames(80, 60, 5, visiontest.Motion{DX: 1})...)

	_, err := newTestPipeline().Analyze(context.Background(), visiontest.MJPEG(frames))
	assert.ErrorIs(t, err, common.ErrDecode)
}
