package inference

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// PrepareInput fills a planar CHW float tensor of size 3 x height x width with the
// image resized to the network input and scaled to [0, 1].
//
// Arguments:
//   - img: The image to prepare (already letterboxed to the network aspect ratio).
//   - dst: The destination tensor data.
//   - width, height: The network input size.
//
// Returns:
//   - error: An error if dst is too small.
func PrepareInput(img image.Image, dst []float32, width, height int) error {
	channelSize := width * height
	if len(dst) < channelSize*3 {
		return fmt.Errorf("destination tensor only holds %d floats, needs "+
			"%d (make sure it's the right shape!)", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
		b = img.Bounds()
	}

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}

// AnchorCount returns the number of YOLOv8 predictions for an input size: one per cell
// of the stride 8, 16 and 32 grids.
func AnchorCount(width, height int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		n += (width / stride) * (height / stride)
	}
	return n
}
