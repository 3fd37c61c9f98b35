package motion

import (
	"fmt"
	"math"

	"github.com/dmitrijs2005/scanpass/internal/server/vision/frames"
)

// Field is a dense flow field: the displacement (U, V) in pixels of every
// pixel of the first frame into the second.
type Field struct {
	W, H int
	U, V []float32
}

// FlowEstimator computes a dense flow field between two equally sized
// luminance planes.
type FlowEstimator interface {
	Flow(prev, next *frames.Gray) (*Field, error)
}

// LucasKanade is a dense pyramidal iterative Lucas-Kanade estimator. Every
// pixel is solved independently over a square window; pixels whose
// structure tensor is too weak to be solved keep the motion propagated
// from the coarser level.
type LucasKanade struct {
	Levels     int     // pyramid levels including full resolution
	Radius     int     // half window size
	Iterations int     // refinement passes per level
	MinEigen   float64 // minimum smaller eigenvalue of the mean structure tensor
	MaxStep    float32 // per-iteration update bound in pixels
}

// NewLucasKanade returns an estimator tuned for hand-held clips of a few
// pixels of motion per sampled frame.
func NewLucasKanade() *LucasKanade {
	return &LucasKanade{
		Levels:     3,
		Radius:     7,
		Iterations: 5,
		MinEigen:   1e-2,
		MaxStep:    2,
	}
}

const minPyramidSide = 16

func (lk *LucasKanade) Flow(prev, next *frames.Gray) (*Field, error) {
	if prev.W != next.W || prev.H != next.H {
		return nil, fmt.Errorf("frame size mismatch: %dx%d vs %dx%d", prev.W, prev.H, next.W, next.H)
	}
	if prev.W == 0 || prev.H == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	p1 := pyramid(prev, lk.Levels)
	p2 := pyramid(next, len(p1))

	top := p1[len(p1)-1]
	u := frames.NewGray(top.W, top.H)
	v := frames.NewGray(top.W, top.H)

	for level := len(p1) - 1; level >= 0; level-- {
		i1, i2 := p1[level], p2[level]
		if u.W != i1.W || u.H != i1.H {
			u = upsample(u, i1.W, i1.H)
			v = upsample(v, i1.W, i1.H)
		}
		for it := 0; it < lk.Iterations; it++ {
			if !lk.refine(i1, i2, u, v) {
				break
			}
		}
	}

	return &Field{W: prev.W, H: prev.H, U: u.Pix, V: v.Pix}, nil
}

// refine runs one Gauss-Newton step at every pixel and reports whether any
// pixel moved.
func (lk *LucasKanade) refine(i1, i2, u, v *frames.Gray) bool {
	w, h := i1.W, i1.H
	n := w * h

	warped := frames.NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			warped.Pix[i] = i2.Bilinear(float32(x)+u.Pix[i], float32(y)+v.Pix[i])
		}
	}

	xx := make([]float64, n)
	xy := make([]float64, n)
	yy := make([]float64, n)
	xt := make([]float64, n)
	yt := make([]float64, n)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			gx := 0.25 * float64(i1.At(x+1, y)-i1.At(x-1, y)+warped.At(x+1, y)-warped.At(x-1, y))
			gy := 0.25 * float64(i1.At(x, y+1)-i1.At(x, y-1)+warped.At(x, y+1)-warped.At(x, y-1))
			gt := float64(warped.Pix[i] - i1.Pix[i])
			xx[i] = gx * gx
			xy[i] = gx * gy
			yy[i] = gy * gy
			xt[i] = gx * gt
			yt[i] = gy * gt
		}
	}

	sxx := newIntegral(xx, w, h)
	sxy := newIntegral(xy, w, h)
	syy := newIntegral(yy, w, h)
	sxt := newIntegral(xt, w, h)
	syt := newIntegral(yt, w, h)

	moved := false
	r := lk.Radius
	for y := 0; y < h; y++ {
		y0, y1 := max(y-r, 0), min(y+r, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-r, 0), min(x+r, w-1)
			count := float64((x1 - x0 + 1) * (y1 - y0 + 1))

			a := sxx.sum(x0, y0, x1, y1) / count
			b := sxy.sum(x0, y0, x1, y1) / count
			c := syy.sum(x0, y0, x1, y1) / count

			half := (a - c) / 2
			minEigen := (a+c)/2 - math.Sqrt(half*half+b*b)
			if minEigen < lk.MinEigen {
				continue
			}

			et := sxt.sum(x0, y0, x1, y1) / count
			ft := syt.sum(x0, y0, x1, y1) / count
			det := a*c - b*b
			du := float32((-c*et + b*ft) / det)
			dv := float32((b*et - a*ft) / det)
			du = clamp(du, lk.MaxStep)
			dv = clamp(dv, lk.MaxStep)

			i := y*w + x
			u.Pix[i] += du
			v.Pix[i] += dv
			if du*du+dv*dv > 1e-6 {
				moved = true
			}
		}
	}
	return moved
}

func clamp(v, bound float32) float32 {
	if bound <= 0 {
		return v
	}
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

// integral is a summed-area table with one row and column of padding.
type integral struct {
	w   int
	sat []float64
}

func newIntegral(src []float64, w, h int) *integral {
	stride := w + 1
	sat := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += src[y*w+x]
			sat[(y+1)*stride+x+1] = sat[y*stride+x+1] + row
		}
	}
	return &integral{w: w, sat: sat}
}

// sum returns the total over the inclusive rectangle [x0,x1] x [y0,y1].
func (s *integral) sum(x0, y0, x1, y1 int) float64 {
	stride := s.w + 1
	return s.sat[(y1+1)*stride+x1+1] - s.sat[y0*stride+x1+1] - s.sat[(y1+1)*stride+x0] + s.sat[y0*stride+x0]
}

// pyramid returns up to levels planes, each half the size of the previous,
// smoothed with a 5-tap binomial kernel before decimation.
func pyramid(g *frames.Gray, levels int) []*frames.Gray {
	out := []*frames.Gray{g}
	for len(out) < levels {
		last := out[len(out)-1]
		if last.W/2 < minPyramidSide || last.H/2 < minPyramidSide {
			break
		}
		out = append(out, downsample(blur(last)))
	}
	return out
}

var binomial = [5]float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

func blur(g *frames.Gray) *frames.Gray {
	tmp := frames.NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var acc float32
			for k, wk := range binomial {
				acc += wk * g.At(x+k-2, y)
			}
			tmp.Pix[y*g.W+x] = acc
		}
	}

	out := frames.NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var acc float32
			for k, wk := range binomial {
				acc += wk * tmp.At(x, y+k-2)
			}
			out.Pix[y*g.W+x] = acc
		}
	}
	return out
}

func downsample(g *frames.Gray) *frames.Gray {
	w, h := (g.W+1)/2, (g.H+1)/2
	out := frames.NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = g.At(2*x, 2*y)
		}
	}
	return out
}

// upsample doubles a flow component onto a w x h grid, scaling the
// displacement with the grid.
func upsample(g *frames.Gray, w, h int) *frames.Gray {
	out := frames.NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = 2 * g.Bilinear(float32(x)/2, float32(y)/2)
		}
	}
	return out
}
