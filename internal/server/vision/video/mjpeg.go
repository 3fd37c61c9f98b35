package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/dmitrijs2005/scanpass/internal/common"
)

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

type span struct{ start, end int }

// decodeMJPEG splits a stream of concatenated JPEG images on SOI/EOI
// markers. When a candidate slice fails to decode (an embedded EXIF
// thumbnail carries its own EOI) the slice is extended to the next EOI.
//
// The first pass validates every frame one at a time and records where it
// lies; the second decodes only the sampled frames.
func decodeMJPEG(ctx context.Context, data []byte, k int) ([]image.Image, int, error) {
	var (
		spans  []span
		budget pixelBudget
	)

	pos := 0
	for len(spans) < MaxDecodedFrames {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		start := bytes.Index(data[pos:], jpegSOI)
		if start < 0 {
			break
		}
		start += pos

		end, err := validateJPEGAt(data, start, &budget)
		if err != nil {
			if len(spans) == 0 || errors.Is(err, common.ErrDecode) {
				return nil, 0, wrapDecode(err)
			}
			// a truncated trailing frame ends the stream
			break
		}

		spans = append(spans, span{start, end})
		pos = end
	}

	pick := newPicker(len(spans), k)
	frames := make([]image.Image, 0, min(len(spans), k))
	for i, sp := range spans {
		if pick.done() {
			break
		}
		if !pick.take(i) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		img, err := jpeg.Decode(bytes.NewReader(data[sp.start:sp.end]))
		if err != nil {
			return nil, 0, wrapDecode(err)
		}
		frames = append(frames, img)
	}

	return frames, len(spans), nil
}

// validateJPEGAt decodes the frame starting at start and returns the offset
// just past it. Oversized frames fail with common.ErrDecode before their
// scan data is decompressed.
func validateJPEGAt(data []byte, start int, budget *pixelBudget) (int, error) {
	search := start + len(jpegSOI)
	var lastErr error

	for {
		i := bytes.Index(data[search:], jpegEOI)
		if i < 0 {
			if lastErr == nil {
				lastErr = fmt.Errorf("no end of image marker")
			}
			return 0, lastErr
		}
		end := search + i + len(jpegEOI)
		seg := data[start:end]

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(seg))
		if err == nil {
			if err := checkFrameSize(cfg.Width, cfg.Height); err != nil {
				return 0, err
			}
			if _, err = jpeg.Decode(bytes.NewReader(seg)); err == nil {
				if err := budget.add(cfg.Width, cfg.Height); err != nil {
					return 0, err
				}
				return end, nil
			}
		}
		lastErr = err
		search = end
	}
}

func wrapDecode(err error) error {
	if errors.Is(err, common.ErrDecode) {
		return err
	}
	return fmt.Errorf("%w: mjpeg: %v", common.ErrDecode, err)
}
