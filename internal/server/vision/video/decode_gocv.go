//go:build gocv

package video

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"gocv.io/x/gocv"
)

// decodeOther hands containers Go cannot parse to OpenCV. VideoCapture
// reads from a path, so the upload is spooled to a temporary file. The
// file is read twice: once to count and size-check frames, then again to
// convert only the sampled ones.
func decodeOther(ctx context.Context, data []byte, k int) ([]image.Image, int, error) {
	f, err := os.CreateTemp("", "scanpass-*.video")
	if err != nil {
		return nil, 0, err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if err := f.Close(); err != nil {
		return nil, 0, err
	}

	total, err := readFrames(ctx, f.Name(), func(i int, mat gocv.Mat) (bool, error) {
		return true, nil
	})
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, fmt.Errorf("%w: opencv could not read any frame", common.ErrDecode)
	}

	pick := newPicker(total, k)
	frames := make([]image.Image, 0, min(total, k))
	_, err = readFrames(ctx, f.Name(), func(i int, mat gocv.Mat) (bool, error) {
		if !pick.take(i) {
			return true, nil
		}
		img, err := mat.ToImage()
		if err != nil {
			return false, fmt.Errorf("%w: opencv frame: %v", common.ErrDecode, err)
		}
		frames = append(frames, img)
		return !pick.done(), nil
	})
	if err != nil {
		return nil, 0, err
	}
	return frames, total, nil
}

// readFrames reads up to MaxDecodedFrames frames from path, enforcing the
// pixel bounds, and calls fn for each until it returns false.
func readFrames(ctx context.Context, path string, fn func(i int, mat gocv.Mat) (bool, error)) (int, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: opencv: %v", common.ErrDecode, err)
	}
	defer vc.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	var budget pixelBudget
	n := 0
	for n < MaxDecodedFrames {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			break
		}
		if err := checkFrameSize(mat.Cols(), mat.Rows()); err != nil {
			return 0, err
		}
		if err := budget.add(mat.Cols(), mat.Rows()); err != nil {
			return 0, err
		}

		more, err := fn(n, mat)
		if err != nil {
			return 0, err
		}
		n++
		if !more {
			break
		}
	}
	return n, nil
}
