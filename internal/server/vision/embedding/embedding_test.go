package embedding

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/server/decision"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/frames"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/visiontest"
	"github.com/dmitrijs2005/scanpass/internal/vectorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{SampleFrames: 10, MinFrames: 3}

func colourClip(seed uint64, m visiontest.Motion) []image.Image {
	return visiontest.NewScene(seed, 96, 72).ColorFrames(96, 72, 6, m)
}

func TestExtractFrames_DimensionAndNorm(t *testing.T) {
	e := NewEngine(testConfig, NewSeededGridExtractor(DefaultDim, DefaultSeed))

	emb, err := e.ExtractFrames(context.Background(), colourClip(1, visiontest.Motion{DX: 1}))
	require.NoError(t, err)

	assert.Equal(t, DefaultDim, emb.Dim())
	assert.Equal(t, DefaultDim, e.Dim())
	assert.Equal(t, 6, emb.FramesExtracted)
	assert.InDelta(t, 1.0, vectorx.Norm(emb.Vector), 1e-4)
}

func TestExtractFrames_Deterministic(t *testing.T) {
	clip := colourClip(2, visiontest.Motion{Rotate: 1})

	a, err := NewEngine(testConfig, NewSeededGridExtractor(DefaultDim, DefaultSeed)).ExtractFrames(context.Background(), clip)
	require.NoError(t, err)
	b, err := NewEngine(testConfig, NewSeededGridExtractor(DefaultDim, DefaultSeed)).ExtractFrames(context.Background(), clip)
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.InDelta(t, 1.0, vectorx.Cosine(a.Vector, b.Vector), 1e-6)
}

func TestExtractFrames_SameObjectCloserThanOther(t *testing.T) {
	e := NewEngine(testConfig, NewSeededGridExtractor(DefaultDim, DefaultSeed))
	ctx := context.Background()

	enrolled, err := e.ExtractFrames(ctx, colourClip(3, visiontest.Motion{}))
	require.NoError(t, err)
	same, err := e.ExtractFrames(ctx, colourClip(3, visiontest.Motion{DX: 0.5}))
	require.NoError(t, err)
	other, err := e.ExtractFrames(ctx, colourClip(40, visiontest.Motion{}))
	require.NoError(t, err)

	sameSim := vectorx.Cosine(enrolled.Vector, same.Vector)
	otherSim := vectorx.Cosine(enrolled.Vector, other.Vector)
	assert.Greater(t, sameSim, decision.DefaultSimilarityThreshold)
	assert.Less(t, otherSim, decision.DefaultSimilarityThreshold)
}

func TestExtractFrames_UnrelatedScenesBelowThreshold(t *testing.T) {
	e := NewEngine(testConfig, NewSeededGridExtractor(DefaultDim, DefaultSeed))
	ctx := context.Background()

	const scenes = 12
	vectors := make([][]float32, 0, scenes)
	for seed := uint64(1); seed <= scenes; seed++ {
		clip := visiontest.NewScene(seed, 96, 72).ColorFrames(96, 72, 3, visiontest.Motion{})
		emb, err := e.ExtractFrames(ctx, clip)
		require.NoError(t, err)
		vectors = append(vectors, emb.Vector)
	}

	for i := range vectors {
		for j := i + 1; j < len(vectors); j++ {
			sim := vectorx.Cosine(vectors[i], vectors[j])
			assert.Less(t, sim, decision.DefaultSimilarityThreshold, "scenes %d and %d", i+1, j+1)
		}
	}
}

func TestDescriptor_SharedTextureDiscounted(t *testing.T) {
	// a texture covering the whole frame keeps only the undiscounted share
	// of each cell histogram
	stripes := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(60)
			if x/4%2 == 0 {
				v = 200
			}
			i := stripes.PixOffset(x, y)
			stripes.Pix[i], stripes.Pix[i+1], stripes.Pix[i+2], stripes.Pix[i+3] = v, v, v, 255
		}
	}

	hist := orientationHistograms(lumPlane(frames.ToTensor(stripes, 64)), 64, 64)
	require.Len(t, hist, GridCells*GridCells*OrientationBins)
	for c := 0; c < GridCells*GridCells; c++ {
		cell := hist[c*OrientationBins : (c+1)*OrientationBins]
		var norm float64
		for b, v := range cell {
			norm += float64(v) * float64(v)
			// vertical stripes only have horizontal gradients
			if b != 0 && b != OrientationBins-1 {
				assert.Zero(t, v, "cell %d bin %d", c, b)
			}
		}
		assert.InDelta(t, 1-sharedOrientationWeight, math.Sqrt(norm), 0.02, "cell %d", c)
	}
}

func TestExtractFrames_InsufficientFrames(t *testing.T) {
	e := NewEngine(testConfig, NewSeededGridExtractor(16, DefaultSeed))
	_, err := e.ExtractFrames(context.Background(), colourClip(1, visiontest.Motion{})[:2])
	assert.ErrorIs(t, err, common.ErrInsufficientFrames)
}

func TestExtract_DecodesVideo(t *testing.T) {
	e := NewEngine(testConfig, NewSeededGridExtractor(64, DefaultSeed))

	emb, err := e.Extract(context.Background(), visiontest.MovingClip(4, 14, visiontest.Motion{DY: 1}))
	require.NoError(t, err)
	assert.Equal(t, 10, emb.FramesExtracted)
	assert.Equal(t, 64, emb.Dim())

	_, err = e.Extract(context.Background(), []byte("short"))
	assert.ErrorIs(t, err, common.ErrDecode)
}

type failingExtractor struct{}

func (failingExtractor) Dim() int { return 4 }
func (failingExtractor) Extract(*frames.Tensor) ([]float32, error) {
	return nil, errors.New("boom")
}

type shortExtractor struct{}

func (shortExtractor) Dim() int { return 4 }
func (shortExtractor) Extract(*frames.Tensor) ([]float32, error) {
	return []float32{1, 2}, nil
}

func TestExtractFrames_ExtractorErrors(t *testing.T) {
	clip := colourClip(5, visiontest.Motion{})

	_, err := NewEngine(testConfig, failingExtractor{}).ExtractFrames(context.Background(), clip)
	assert.ErrorContains(t, err, "boom")

	_, err = NewEngine(testConfig, shortExtractor{}).ExtractFrames(context.Background(), clip)
	assert.ErrorContains(t, err, "got 2 values, want 4")
}

func TestDescriptor_Size(t *testing.T) {
	img := colourClip(6, visiontest.Motion{})[0]
	d := Descriptor(frames.ToTensor(img, InputSize))
	assert.Len(t, d, DescriptorSize)
}

func TestDescriptor_FlatImage(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}

	d := Descriptor(frames.ToTensor(flat, 32))
	hist := d[:GridCells*GridCells*OrientationBins]
	for _, v := range hist {
		assert.Equal(t, float32(0), v)
	}
}

func TestWeights_SaveLoad(t *testing.T) {
	w := SeededWeights(DescriptorSize, 32, 99)

	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))
	assert.True(t, IsWeightsArtifact(buf.Bytes()))

	loaded, err := LoadWeights(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, w, loaded)

	g, err := NewGridExtractor(loaded)
	require.NoError(t, err)
	assert.Equal(t, 32, g.Dim())
}

func TestWeights_Seeded(t *testing.T) {
	a := SeededWeights(8, 4, 1)
	b := SeededWeights(8, 4, 1)
	c := SeededWeights(8, 4, 2)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Data, c.Data)
}

func TestWeights_Project(t *testing.T) {
	w := &Weights{InDim: 2, OutDim: 2, Data: []float32{1, 2, 3, 4}}
	out, err := w.Project([]float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 7}, out)

	_, err = w.Project([]float32{1})
	assert.Error(t, err)
}

func TestLoadWeights_Invalid(t *testing.T) {
	_, err := LoadWeights(bytes.NewReader([]byte("not zstd")))
	assert.ErrorIs(t, err, ErrBadWeights)

	var buf bytes.Buffer
	bad := &Weights{InDim: 2, OutDim: 2, Data: []float32{1}}
	assert.ErrorIs(t, bad.Save(&buf), ErrBadWeights)

	_, err = NewGridExtractor(SeededWeights(10, 4, 1))
	assert.ErrorIs(t, err, ErrBadWeights)
}

func TestNewExtractor(t *testing.T) {
	ex, err := NewExtractor(nil, 128)
	require.NoError(t, err)
	assert.Equal(t, 128, ex.Dim())

	var buf bytes.Buffer
	require.NoError(t, SeededWeights(DescriptorSize, 48, 7).Save(&buf))
	ex, err = NewExtractor(buf.Bytes(), 128)
	require.NoError(t, err)
	assert.Equal(t, 48, ex.Dim())
}
