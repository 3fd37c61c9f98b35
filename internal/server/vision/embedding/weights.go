package embedding

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// DefaultSeed generates the projection used when no weights artifact is
// configured. Changing it invalidates every stored embedding.
const DefaultSeed uint64 = 0x5ca9_9a55

const weightsVersion = 1

// ErrBadWeights is returned for weights artifacts that cannot be used.
var ErrBadWeights = errors.New("bad weights artifact")

// zstdMagic starts every zstd frame and identifies a weights artifact.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Weights is a frozen OutDim x InDim projection matrix stored row-major.
type Weights struct {
	InDim  int       `cbor:"2,keyasint"`
	OutDim int       `cbor:"3,keyasint"`
	Data   []float32 `cbor:"4,keyasint"`
}

type weightsFile struct {
	Version int `cbor:"1,keyasint"`
	Weights
}

// SeededWeights draws a Gaussian projection scaled by 1/sqrt(inDim) from a
// PCG source, so the same seed yields the same matrix in every process.
func SeededWeights(inDim, outDim int, seed uint64) *Weights {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	scale := 1 / math.Sqrt(float64(inDim))

	w := &Weights{InDim: inDim, OutDim: outDim, Data: make([]float32, inDim*outDim)}
	for i := range w.Data {
		w.Data[i] = float32(r.NormFloat64() * scale)
	}
	return w
}

// IsWeightsArtifact reports whether data looks like a file written by Save.
func IsWeightsArtifact(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Project multiplies the matrix by x.
func (w *Weights) Project(x []float32) ([]float32, error) {
	if len(x) != w.InDim {
		return nil, fmt.Errorf("projection input has %d values, want %d", len(x), w.InDim)
	}
	out := make([]float32, w.OutDim)
	for j := range out {
		row := w.Data[j*w.InDim : (j+1)*w.InDim]
		var acc float64
		for i, v := range x {
			acc += float64(row[i]) * float64(v)
		}
		out[j] = float32(acc)
	}
	return out, nil
}

func (w *Weights) validate() error {
	if w.InDim <= 0 || w.OutDim <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrBadWeights, w.OutDim, w.InDim)
	}
	if len(w.Data) != w.InDim*w.OutDim {
		return fmt.Errorf("%w: %d values for %dx%d", ErrBadWeights, len(w.Data), w.OutDim, w.InDim)
	}
	return nil
}

// Save writes w as zstd-compressed deterministic CBOR.
func (w *Weights) Save(dst io.Writer) error {
	if err := w.validate(); err != nil {
		return err
	}

	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return err
	}
	raw, err := em.Marshal(weightsFile{Version: weightsVersion, Weights: *w})
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}

	zw, err := zstd.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return fmt.Errorf("compress weights: %w", err)
	}
	return zw.Close()
}

// LoadWeights reads a matrix written by Save.
func LoadWeights(src io.Reader) (*Weights, error) {
	zr, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWeights, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrBadWeights, err)
	}

	var f weightsFile
	if err := cbor.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: cbor: %v", ErrBadWeights, err)
	}
	if f.Version != weightsVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadWeights, f.Version)
	}
	if err := f.Weights.validate(); err != nil {
		return nil, err
	}
	return &f.Weights, nil
}
