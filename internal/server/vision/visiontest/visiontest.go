// Package visiontest builds synthetic clips with known motion for tests of
// the vision pipeline and the HTTP API.
package visiontest

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"math"
	"math/rand/v2"
)

// Motion describes how the scene moves between consecutive frames.
type Motion struct {
	DX, DY float64 // translation in pixels per frame
	Zoom   float64 // relative scale change per frame, > 0 grows
	Rotate float64 // clockwise degrees per frame (image coordinates)
}

// Scene is a smooth, richly textured pattern defined on the whole plane.
type Scene struct {
	seed  uint64
	blobs []blob
	tint  [3]float64
}

type blob struct {
	x, y, sigma, amp float64
}

// NewScene returns a deterministic scene for seed. Different seeds give
// visually unrelated scenes.
func NewScene(seed uint64, w, h int) *Scene {
	r := rand.New(rand.NewPCG(seed, 0x7e57))
	s := &Scene{seed: seed}
	for i := 0; i < 40; i++ {
		s.blobs = append(s.blobs, blob{
			x:     r.Float64()*float64(w+120) - 60,
			y:     r.Float64()*float64(h+120) - 60,
			sigma: 4 + r.Float64()*6,
			amp:   (r.Float64()*2 - 1) * 70,
		})
	}
	s.tint = [3]float64{0.6 + 0.4*r.Float64(), 0.6 + 0.4*r.Float64(), 0.6 + 0.4*r.Float64()}
	return s
}

// Intensity returns the scene luminance at a real-valued position.
func (s *Scene) Intensity(x, y float64) float64 {
	phase := float64(s.seed%7) * 0.7
	v := 128 + 35*math.Sin(2*math.Pi*x/37+phase)*math.Cos(2*math.Pi*y/29+phase)
	for _, b := range s.blobs {
		dx, dy := x-b.x, y-b.y
		v += b.amp * math.Exp(-(dx*dx+dy*dy)/(2*b.sigma*b.sigma))
	}
	return math.Max(0, math.Min(255, v))
}

// Frames renders n frames of the scene moving by m.
func (s *Scene) Frames(w, h, n int, m Motion) []*image.Gray {
	cx, cy := float64(w)/2, float64(h)/2
	out := make([]*image.Gray, n)

	for t := 0; t < n; t++ {
		tf := float64(t)
		scale := 1 + m.Zoom*tf
		theta := m.Rotate * tf * math.Pi / 180
		cos, sin := math.Cos(theta), math.Sin(theta)

		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				// map the output pixel back into scene coordinates
				px := float64(x) - cx - m.DX*tf
				py := float64(y) - cy - m.DY*tf
				px, py = px/scale, py/scale
				sx := cos*px + sin*py
				sy := -sin*px + cos*py
				img.Pix[y*img.Stride+x] = uint8(s.Intensity(sx+cx, sy+cy) + 0.5)
			}
		}
		out[t] = img
	}
	return out
}

// ColorFrames renders the frames with the scene tint applied, for the
// embedding engine which looks at colour.
func (s *Scene) ColorFrames(w, h, n int, m Motion) []image.Image {
	gray := s.Frames(w, h, n, m)
	out := make([]image.Image, n)
	for i, g := range gray {
		img := image.NewRGBA(g.Rect)
		for j, v := range g.Pix {
			f := float64(v)
			img.Pix[j*4] = uint8(f * s.tint[0])
			img.Pix[j*4+1] = uint8(f * s.tint[1])
			img.Pix[j*4+2] = uint8(f * s.tint[2])
			img.Pix[j*4+3] = 255
		}
		out[i] = img
	}
	return out
}

var grayPalette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}()

// GIF encodes grayscale frames losslessly as an animated GIF.
func GIF(frames []*image.Gray) []byte {
	anim := &gif.GIF{}
	for _, f := range frames {
		p := image.NewPaletted(f.Rect, grayPalette)
		copy(p.Pix, f.Pix)
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, 4)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// MJPEG concatenates the frames as JPEG images.
func MJPEG(frames []image.Image) []byte {
	var buf bytes.Buffer
	for _, f := range frames {
		if err := jpeg.Encode(&buf, f, &jpeg.Options{Quality: 95}); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

// MovingClip is a 120x90 GIF of scene seed moving by m over n frames.
func MovingClip(seed uint64, n int, m Motion) []byte {
	return GIF(NewScene(seed, 120, 90).Frames(120, 90, n, m))
}
