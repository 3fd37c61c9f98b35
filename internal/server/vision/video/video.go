// Package video turns uploaded clips into decoded frames and picks the
// frames the analyzers look at.
//
// Animated GIF and MJPEG (concatenated JPEG) streams are decoded in pure
// Go. Other containers (WebM, MP4) need the OpenCV backend enabled with
// the gocv build tag.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/dmitrijs2005/scanpass/internal/common"
)

// MinVideoBytes is the smallest upload treated as a video at all.
const MinVideoBytes = 1000

// MaxDecodedFrames bounds how many frames a single clip may expand into.
const MaxDecodedFrames = 900

// MaxFramePixels bounds the area of a single frame or GIF logical screen.
const MaxFramePixels = 1920 * 1080

// MaxDecodedPixels bounds the summed area of every frame in a clip.
const MaxDecodedPixels = 1 << 28

// Container identifies a sniffed video container.
type Container string

const (
	ContainerGIF   Container = "gif"
	ContainerMJPEG Container = "mjpeg"
	ContainerOther Container = "other"
)

// Sniff identifies the container of data from its leading bytes.
func Sniff(data []byte) Container {
	switch {
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return ContainerGIF
	case bytes.HasPrefix(data, jpegSOI):
		return ContainerMJPEG
	default:
		return ContainerOther
	}
}

// Clip holds the frames kept from a decoded stream.
type Clip struct {
	// Frames are the sampled frames in stream order.
	Frames []image.Image
	// Total is the number of frames the stream decoded to.
	Total int
}

// Require fails with common.ErrInsufficientFrames when the stream held
// fewer than minFrames frames.
func (c *Clip) Require(minFrames int) error {
	if c.Total < minFrames {
		return fmt.Errorf("%w: decoded %d frames, need at least %d", common.ErrInsufficientFrames, c.Total, minFrames)
	}
	return nil
}

// Decode decodes data, up to MaxDecodedFrames, and keeps only the k frames
// SampleIndices selects. Frame sizes are read from the headers before any
// pixel data is decompressed; a frame over MaxFramePixels or a clip over
// MaxDecodedPixels is rejected. Any failure is reported as common.ErrDecode.
func Decode(ctx context.Context, data []byte, k int) (*Clip, error) {
	if len(data) < MinVideoBytes {
		return nil, fmt.Errorf("%w: video is %d bytes, need at least %d", common.ErrDecode, len(data), MinVideoBytes)
	}
	k = max(k, 1)

	var (
		frames []image.Image
		total  int
		err    error
	)

	switch Sniff(data) {
	case ContainerGIF:
		frames, total, err = decodeGIF(ctx, data, k)
	case ContainerMJPEG:
		frames, total, err = decodeMJPEG(ctx, data, k)
	default:
		frames, total, err = decodeOther(ctx, data, k)
	}
	if err != nil {
		return nil, err
	}
	if total == 0 || len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", common.ErrDecode)
	}
	return &Clip{Frames: frames, Total: total}, nil
}

// checkFrameSize rejects empty frames and frames over MaxFramePixels.
func checkFrameSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", common.ErrDecode, w, h)
	}
	if int64(w)*int64(h) > MaxFramePixels {
		return fmt.Errorf("%w: frame size %dx%d exceeds %d pixels", common.ErrDecode, w, h, MaxFramePixels)
	}
	return nil
}

// pixelBudget sums decoded frame area against MaxDecodedPixels.
type pixelBudget struct {
	used int64
}

func (b *pixelBudget) add(w, h int) error {
	px := int64(w) * int64(h)
	if px > MaxFramePixels {
		return fmt.Errorf("%w: frame size %dx%d exceeds %d pixels", common.ErrDecode, w, h, MaxFramePixels)
	}
	b.used += px
	if b.used > MaxDecodedPixels {
		return fmt.Errorf("%w: clip exceeds %d decoded pixels", common.ErrDecode, MaxDecodedPixels)
	}
	return nil
}

// picker walks SampleIndices(n, k) in stream order.
type picker struct {
	idx  []int
	next int
}

func newPicker(n, k int) *picker {
	return &picker{idx: SampleIndices(n, k)}
}

// take reports whether frame i is selected. Frames must be offered in
// ascending order.
func (p *picker) take(i int) bool {
	if p.next < len(p.idx) && p.idx[p.next] == i {
		p.next++
		return true
	}
	return false
}

func (p *picker) done() bool { return p.next == len(p.idx) }
