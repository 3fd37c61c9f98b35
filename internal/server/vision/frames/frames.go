// Package frames converts decoded video frames into the numeric planes the
// embedding and motion analyzers work on.
package frames

import (
	"image"

	"golang.org/x/image/draw"
)

// ImageNet channel statistics used to normalize network input.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Gray is a single-channel float plane with luminance in [0, 255].
type Gray struct {
	W, H int
	Pix  []float32
}

// NewGray allocates a zeroed w x h plane.
func NewGray(w, h int) *Gray {
	return &Gray{W: w, H: h, Pix: make([]float32, w*h)}
}

// At returns the value at (x, y) with coordinates clamped to the plane.
func (g *Gray) At(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= g.W {
		x = g.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.H {
		y = g.H - 1
	}
	return g.Pix[y*g.W+x]
}

// Bilinear samples the plane at a fractional position, replicating edges.
func (g *Gray) Bilinear(x, y float32) float32 {
	x0, y0 := floor(x), floor(y)
	fx, fy := x-float32(x0), y-float32(y0)

	a := g.At(x0, y0)
	b := g.At(x0+1, y0)
	c := g.At(x0, y0+1)
	d := g.At(x0+1, y0+1)

	top := a + (b-a)*fx
	bottom := c + (d-c)*fx
	return top + (bottom-top)*fy
}

func floor(v float32) int {
	i := int(v)
	if float32(i) > v {
		i--
	}
	return i
}

// Tensor is a CHW float tensor.
type Tensor struct {
	C, H, W int
	Data    []float32
}

// At returns the value of channel c at (x, y).
func (t *Tensor) At(c, x, y int) float32 {
	return t.Data[(c*t.H+y)*t.W+x]
}

// ToRGBA copies img into a fresh RGBA image anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Resize scales img to w x h with bilinear interpolation.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ToGray converts img to a luminance plane using BT.601 weights.
func ToGray(img image.Image) *Gray {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = ToRGBA(img)
	}

	g := NewGray(rgba.Rect.Dx(), rgba.Rect.Dy())
	for y := 0; y < g.H; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < g.W; x++ {
			p := row[x*4 : x*4+3]
			g.Pix[y*g.W+x] = 0.299*float32(p[0]) + 0.587*float32(p[1]) + 0.114*float32(p[2])
		}
	}
	return g
}

// ToTensor resizes img to size x size and normalizes it channel-wise with
// the ImageNet mean and standard deviation.
func ToTensor(img image.Image, size int) *Tensor {
	resized := Resize(img, size, size)
	t := &Tensor{C: 3, H: size, W: size, Data: make([]float32, 3*size*size)}

	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := resized.RGBAAt(x, y)
			i := y*size + x
			t.Data[i] = (float32(c.R)/255 - ImageNetMean[0]) / ImageNetStd[0]
			t.Data[plane+i] = (float32(c.G)/255 - ImageNetMean[1]) / ImageNetStd[1]
			t.Data[2*plane+i] = (float32(c.B)/255 - ImageNetMean[2]) / ImageNetStd[2]
		}
	}
	return t
}
