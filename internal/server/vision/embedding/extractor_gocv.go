//go:build gocv

package embedding

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/scanpass/internal/server/vision/frames"
	"gocv.io/x/gocv"
)

// NewExtractor builds the extractor for a model artifact: grid weights
// files load the grid projection, anything else is read as an ONNX network.
func NewExtractor(artifact []byte, dim int) (FeatureExtractor, error) {
	switch {
	case len(artifact) == 0:
		return NewSeededGridExtractor(dim, DefaultSeed), nil
	case IsWeightsArtifact(artifact):
		w, err := LoadWeights(bytes.NewReader(artifact))
		if err != nil {
			return nil, err
		}
		return NewGridExtractor(w)
	default:
		return NewDNNExtractor(artifact, dim)
	}
}

// DNNExtractor runs an ONNX feature network (a classifier-less backbone)
// through OpenCV. Spatial outputs are global-average pooled to Dim values.
type DNNExtractor struct {
	mu  sync.Mutex
	net gocv.Net
	dim int
}

func NewDNNExtractor(model []byte, dim int) (*DNNExtractor, error) {
	net, err := gocv.ReadNetFromONNXBytes(model)
	if err != nil {
		return nil, fmt.Errorf("%w: onnx: %v", ErrBadWeights, err)
	}
	if net.Empty() {
		return nil, fmt.Errorf("%w: empty network", ErrBadWeights)
	}
	return &DNNExtractor{net: net, dim: dim}, nil
}

func (d *DNNExtractor) Dim() int { return d.dim }

func (d *DNNExtractor) Extract(t *frames.Tensor) ([]float32, error) {
	blob := gocv.NewMatWithSizes([]int{1, t.C, t.H, t.W}, gocv.MatTypeCV32F)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("input blob: %w", err)
	}
	copy(data, t.Data)

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	raw, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("network output: %w", err)
	}
	if len(raw) == 0 || len(raw)%d.dim != 0 {
		return nil, fmt.Errorf("network output has %d values, not a multiple of %d", len(raw), d.dim)
	}

	spatial := len(raw) / d.dim
	v := make([]float32, d.dim)
	for c := range v {
		var acc float32
		for _, x := range raw[c*spatial : (c+1)*spatial] {
			acc += x
		}
		v[c] = acc / float32(spatial)
	}
	return v, nil
}

// Close releases the network.
func (d *DNNExtractor) Close() error {
	return d.net.Close()
}
