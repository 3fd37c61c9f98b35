package video

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/gif"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"golang.org/x/image/draw"
)

// decodeGIF renders GIF frames onto a full-size canvas, honouring the
// per-frame disposal method, so each kept frame is a complete picture.
// Only the frames selected for sampling are copied off the canvas.
func decodeGIF(ctx context.Context, data []byte, k int) ([]image.Image, int, error) {
	cfg, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: gif: %v", common.ErrDecode, err)
	}
	rects, err := scanGIFFrames(data)
	if err != nil {
		return nil, 0, err
	}

	w, h := cfg.Width, cfg.Height
	if w == 0 || h == 0 {
		if len(rects) == 0 {
			return nil, 0, fmt.Errorf("%w: gif has no frames", common.ErrDecode)
		}
		w, h = rects[0].Max.X, rects[0].Max.Y
	}
	if err := checkFrameSize(w, h); err != nil {
		return nil, 0, err
	}
	var budget pixelBudget
	for _, r := range rects {
		if err := budget.add(r.Dx(), r.Dy()); err != nil {
			return nil, 0, err
		}
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: gif: %v", common.ErrDecode, err)
	}
	if len(g.Image) == 0 {
		return nil, 0, fmt.Errorf("%w: gif has no frames", common.ErrDecode)
	}

	total := min(len(g.Image), MaxDecodedFrames)
	pick := newPicker(total, k)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	frames := make([]image.Image, 0, min(total, k))

	for i, p := range g.Image[:total] {
		if pick.done() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		if pick.take(i) {
			frames = append(frames, cloneRGBA(canvas))
		}

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return frames, total, nil
}

// scanGIFFrames walks the GIF block structure without decompressing any
// image data and returns the bounds of every frame descriptor. A stream
// cut short returns the frames seen so far.
func scanGIFFrames(data []byte) ([]image.Rectangle, error) {
	const headerLen = 13
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: gif header truncated", common.ErrDecode)
	}

	pos := headerLen
	if flags := data[10]; flags&0x80 != 0 {
		pos += 3 << (flags&0x07 + 1)
	}

	var rects []image.Rectangle
	for pos < len(data) {
		switch data[pos] {
		case 0x21: // extension
			pos = skipSubBlocks(data, pos+2)
		case 0x2C: // image descriptor
			if pos+10 > len(data) {
				return rects, nil
			}
			le := binary.LittleEndian
			left := int(le.Uint16(data[pos+1:]))
			top := int(le.Uint16(data[pos+3:]))
			width := int(le.Uint16(data[pos+5:]))
			height := int(le.Uint16(data[pos+7:]))
			flags := data[pos+9]
			rects = append(rects, image.Rect(left, top, left+width, top+height))

			pos += 10
			if flags&0x80 != 0 {
				pos += 3 << (flags&0x07 + 1)
			}
			// LZW minimum code size precedes the data sub-blocks
			pos = skipSubBlocks(data, pos+1)
		case 0x3B: // trailer
			return rects, nil
		default:
			return nil, fmt.Errorf("%w: gif: unknown block 0x%02x", common.ErrDecode, data[pos])
		}
	}
	return rects, nil
}

// skipSubBlocks returns the offset just past the block terminator of the
// sub-block chain starting at pos.
func skipSubBlocks(data []byte, pos int) int {
	for pos < len(data) {
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos
		}
		pos += n
	}
	return pos
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
