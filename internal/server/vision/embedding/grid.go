package embedding

import (
	"fmt"
	"math"

	"github.com/dmitrijs2005/scanpass/internal/server/vision/frames"
)

const (
	// GridCells is the number of cells along each image side.
	GridCells = 4
	// OrientationBins is the number of unsigned gradient orientation bins.
	OrientationBins = 9

	cellFeatures = OrientationBins + 4 // histogram, mean R/G/B, luminance spread

	// sharedOrientationWeight is the share of the frame mean histogram
	// removed from every cell histogram.
	sharedOrientationWeight = 0.8

	// DescriptorSize is the length of the raw per-frame descriptor.
	DescriptorSize = GridCells * GridCells * cellFeatures
)

// GridExtractor describes a frame by per-cell gradient orientation
// histograms and colour statistics, projected through frozen weights.
type GridExtractor struct {
	weights *Weights
}

// NewGridExtractor wraps w, which must take a DescriptorSize input.
func NewGridExtractor(w *Weights) (*GridExtractor, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if w.InDim != DescriptorSize {
		return nil, fmt.Errorf("%w: input dimension %d, want %d", ErrBadWeights, w.InDim, DescriptorSize)
	}
	return &GridExtractor{weights: w}, nil
}

// NewSeededGridExtractor returns a GridExtractor over SeededWeights.
func NewSeededGridExtractor(dim int, seed uint64) *GridExtractor {
	return &GridExtractor{weights: SeededWeights(DescriptorSize, dim, seed)}
}

func (g *GridExtractor) Dim() int { return g.weights.OutDim }

func (g *GridExtractor) Extract(t *frames.Tensor) ([]float32, error) {
	return g.weights.Project(Descriptor(t))
}

// Descriptor computes the raw grid descriptor of a normalized tensor.
//
// Gradient magnitude is spread over the four nearest cells by bilinear
// weight, so a small shift moves mass between neighbours instead of across
// a hard cell edge. Each cell histogram then has part of the frame-wide
// mean histogram removed: texture that covers the whole frame says little
// about which object is in it. The histograms and the luminance spreads
// are each standardized as a group so that the projection sees shape
// rather than exposure.
func Descriptor(t *frames.Tensor) []float32 {
	lum := lumPlane(t)
	hist := orientationHistograms(lum, t.W, t.H)

	colour := make([]float32, 0, GridCells*GridCells*3)
	spread := make([]float32, 0, GridCells*GridCells)
	for cy := 0; cy < GridCells; cy++ {
		y0, y1 := cy*t.H/GridCells, (cy+1)*t.H/GridCells
		for cx := 0; cx < GridCells; cx++ {
			x0, x1 := cx*t.W/GridCells, (cx+1)*t.W/GridCells

			var (
				sum       [3]float64
				lSum, lSq float64
			)
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					for c := 0; c < 3; c++ {
						sum[c] += float64(t.At(c, x, y))
					}
					l := float64(lum[y*t.W+x])
					lSum += l
					lSq += l * l
				}
			}

			n := float64((x1 - x0) * (y1 - y0))
			for c := 0; c < 3; c++ {
				colour = append(colour, float32(sum[c]/n))
			}
			mean := lSum / n
			spread = append(spread, float32(math.Sqrt(math.Max(lSq/n-mean*mean, 0))))
		}
	}

	standardize(hist)
	standardize(spread)

	out := make([]float32, 0, DescriptorSize)
	out = append(out, hist...)
	out = append(out, colour...)
	out = append(out, spread...)
	return out
}

func lumPlane(t *frames.Tensor) []float32 {
	lum := make([]float32, t.W*t.H)
	for y := 0; y < t.H; y++ {
		for x := 0; x < t.W; x++ {
			lum[y*t.W+x] = 0.299*t.At(0, x, y) + 0.587*t.At(1, x, y) + 0.114*t.At(2, x, y)
		}
	}
	return lum
}

// orientationHistograms returns the per-cell unsigned gradient orientation
// histograms of a w x h luminance plane, cell by cell in row order, each
// L2-normalized and then reduced by sharedOrientationWeight times the
// frame mean.
func orientationHistograms(lum []float32, w, h int) []float32 {
	at := func(x, y int) float32 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return lum[y*w+x]
	}

	const cells = GridCells * GridCells
	bins := make([]float64, cells*OrientationBins)
	cw, ch := float64(w)/GridCells, float64(h)/GridCells

	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/ch - 0.5
		cy0 := int(math.Floor(fy))
		ay := fy - float64(cy0)

		for x := 0; x < w; x++ {
			gx := float64(at(x+1, y) - at(x-1, y))
			gy := float64(at(x, y+1) - at(x, y-1))
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			angle := math.Atan2(gy, gx)
			if angle < 0 {
				angle += math.Pi
			}
			bin := min(int(angle/math.Pi*OrientationBins), OrientationBins-1)

			fx := (float64(x)+0.5)/cw - 0.5
			cx0 := int(math.Floor(fx))
			ax := fx - float64(cx0)

			for dy := 0; dy < 2; dy++ {
				cy := cy0 + dy
				if cy < 0 || cy >= GridCells {
					continue
				}
				wy := 1 - ay
				if dy == 1 {
					wy = ay
				}
				for dx := 0; dx < 2; dx++ {
					cx := cx0 + dx
					if cx < 0 || cx >= GridCells {
						continue
					}
					wx := 1 - ax
					if dx == 1 {
						wx = ax
					}
					bins[(cy*GridCells+cx)*OrientationBins+bin] += mag * wx * wy
				}
			}
		}
	}

	for c := 0; c < cells; c++ {
		cell := bins[c*OrientationBins : (c+1)*OrientationBins]
		var norm float64
		for _, b := range cell {
			norm += b * b
		}
		norm = math.Sqrt(norm) + 1e-6
		for i := range cell {
			cell[i] /= norm
		}
	}

	var frameMean [OrientationBins]float64
	for c := 0; c < cells; c++ {
		for b := 0; b < OrientationBins; b++ {
			frameMean[b] += bins[c*OrientationBins+b] / cells
		}
	}

	out := make([]float32, len(bins))
	for i, v := range bins {
		out[i] = float32(v - sharedOrientationWeight*frameMean[i%OrientationBins])
	}
	return out
}

// standardize shifts v to zero mean and, unless it is flat, unit variance.
func standardize(v []float32) {
	var mean float64
	for _, x := range v {
		mean += float64(x)
	}
	mean /= float64(len(v))

	var variance float64
	for _, x := range v {
		d := float64(x) - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(v)))

	for i, x := range v {
		d := float64(x) - mean
		if std > 1e-6 {
			d /= std
		}
		v[i] = float32(d)
	}
}
