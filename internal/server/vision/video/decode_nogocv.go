//go:build !gocv

package video

import (
	"context"
	"fmt"
	"image"

	"github.com/dmitrijs2005/scanpass/internal/common"
)

func decodeOther(_ context.Context, _ []byte, _ int) ([]image.Image, int, error) {
	return nil, 0, fmt.Errorf("%w: unsupported container, only gif and mjpeg are built in (build with -tags gocv for webm/mp4)", common.ErrDecode)
}
