//go:build gocv

package motion

import (
	"fmt"

	"github.com/dmitrijs2005/scanpass/internal/server/vision/frames"
	"gocv.io/x/gocv"
)

// DefaultFlow returns the OpenCV Farneback estimator.
func DefaultFlow() FlowEstimator {
	return NewFarneback()
}

// Farneback wraps OpenCV's polynomial expansion flow.
type Farneback struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
}

// NewFarneback returns the estimator with the parameters used for
// hand-held clips.
func NewFarneback() *Farneback {
	return &Farneback{PyrScale: 0.5, Levels: 3, WinSize: 15, Iterations: 3, PolyN: 5, PolySigma: 1.2}
}

func (f *Farneback) Flow(prev, next *frames.Gray) (*Field, error) {
	if prev.W != next.W || prev.H != next.H {
		return nil, fmt.Errorf("frame size mismatch: %dx%d vs %dx%d", prev.W, prev.H, next.W, next.H)
	}

	a, err := toMat(prev)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	b, err := toMat(next)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	flow := gocv.NewMat()
	defer flow.Close()

	gocv.CalcOpticalFlowFarneback(a, b, &flow, f.PyrScale, f.Levels, f.WinSize, f.Iterations, f.PolyN, f.PolySigma, 0)

	data, err := flow.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read flow: %w", err)
	}
	if len(data) != 2*prev.W*prev.H {
		return nil, fmt.Errorf("unexpected flow size %d", len(data))
	}

	field := &Field{W: prev.W, H: prev.H, U: make([]float32, prev.W*prev.H), V: make([]float32, prev.W*prev.H)}
	for i := range field.U {
		field.U[i] = data[2*i]
		field.V[i] = data[2*i+1]
	}
	return field, nil
}

func toMat(g *frames.Gray) (gocv.Mat, error) {
	buf := make([]byte, len(g.Pix))
	for i, v := range g.Pix {
		switch {
		case v < 0:
			buf[i] = 0
		case v > 255:
			buf[i] = 255
		default:
			buf[i] = uint8(v + 0.5)
		}
	}
	m, err := gocv.NewMatFromBytes(g.H, g.W, gocv.MatTypeCV8U, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("gray plane to mat: %w", err)
	}
	return m, nil
}
