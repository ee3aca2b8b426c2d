package images

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/pkg/errors"
)

// MaxCanvasPixels is the largest letterbox canvas Pad will allocate (width * height).
// It bounds the memory of one canvas to 2 GiB of NRGBA pixels.
const MaxCanvasPixels = 1 << 29

// PadOptions configures PadWithOptions.
type PadOptions struct {
	// Ratio is the target width / height. Values <= 0 request an unpadded copy.
	Ratio float64 `json:"ratio" yaml:"ratio"`
	// Fill is the letterbox color (default opaque black).
	Fill color.Color `json:"-" yaml:"-"`
	// MaxPixels caps the canvas area (default MaxCanvasPixels).
	MaxPixels int `json:"max_pixels" yaml:"max_pixels"`
}

// Letterbox is the outcome of a padding operation.
type Letterbox struct {
	// Buffer is the padded canvas.
	*Buffer
	// Offset is where the source's top-left pixel landed on the canvas.
	Offset image.Point
	// SourceWidth and SourceHeight are the dimensions of the unpadded input.
	SourceWidth, SourceHeight int
}

// ToSource maps a rectangle on the padded canvas back into the unpadded input,
// clipping anything that falls on the borders.
//
// Arguments:
//   - r: A rectangle in canvas coordinates.
//
// Returns:
//   - image.Rectangle: The same region in source coordinates (may be empty).
func (l *Letterbox) ToSource(r image.Rectangle) image.Rectangle {
	return r.Sub(l.Offset).Intersect(image.Rect(0, 0, l.SourceWidth, l.SourceHeight))
}

// Pad letterboxes src with opaque black so its aspect ratio equals ratio.
//
// The shorter axis is enlarged and src is centered, unscaled. When ratio <= 0 the
// result is a pixel-identical copy that does not alias src.
//
// Arguments:
//   - src: The upright buffer.
//   - ratio: The target width / height.
//
// Returns:
//   - *Buffer: The new canvas.
//   - error: A *ResourceError when the canvas cannot be allocated.
func Pad(src *Buffer, ratio float64) (*Buffer, error) {
	l, err := PadWithOptions(src, PadOptions{Ratio: ratio})
	if err != nil {
		return nil, err
	}
	return l.Buffer, nil
}

// PadWithOptions is Pad with a configurable fill color and canvas ceiling, reporting
// where the source was placed.
//
// Arguments:
//   - src: The upright buffer.
//   - opts: The padding options.
//
// Returns:
//   - *Letterbox: The canvas and the source placement.
//   - error: A *ResourceError when the canvas cannot be allocated.
func PadWithOptions(src *Buffer, opts PadOptions) (*Letterbox, error) {
	if src.Released() {
		return nil, errors.New("pad: source buffer has been released")
	}
	if opts.Fill == nil {
		opts.Fill = color.Black
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = MaxCanvasPixels
	}

	w, h := src.Width(), src.Height()
	if opts.Ratio <= 0 || w == 0 || h == 0 {
		return &Letterbox{Buffer: src.Clone(), SourceWidth: w, SourceHeight: h}, nil
	}

	cw, ch, err := CanvasSize(w, h, opts.Ratio)
	if err != nil {
		return nil, err
	}
	if cw*ch > opts.MaxPixels {
		return nil, &ResourceError{Width: cw, Height: ch,
			Err: fmt.Errorf("canvas exceeds %d pixels", opts.MaxPixels)}
	}

	canvas, err := allocate(cw, ch)
	if err != nil {
		return nil, err
	}
	canvas.Orientation = src.Orientation
	canvas.Source = src.Source
	canvas.Format = src.Format

	offset := image.Pt((cw-w)/2, (ch-h)/2)
	draw.Draw(canvas.NRGBA, canvas.Rect, &image.Uniform{C: opts.Fill}, image.Point{}, draw.Src)
	draw.Draw(canvas.NRGBA, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(w, h))},
		src.NRGBA, src.Rect.Min, draw.Src)

	return &Letterbox{Buffer: canvas, Offset: offset, SourceWidth: w, SourceHeight: h}, nil
}

// CanvasSize computes the letterbox canvas for a w x h image and a positive ratio.
//
// An image relatively narrower than ratio keeps its height and gets width
// round(h*ratio); every other image, including an exact match, keeps its width and
// gets height round(w/ratio).
//
// Arguments:
//   - w, h: The source dimensions (positive).
//   - ratio: The target width / height (positive).
//
// Returns:
//   - int, int: The canvas width and height.
//   - error: A *ResourceError when the result is not representable.
func CanvasSize(w, h int, ratio float64) (int, int, error) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0, 0, &ResourceError{Width: w, Height: h, Err: fmt.Errorf("invalid aspect ratio %v", ratio)}
	}

	current := float64(w) / float64(h)
	cw, ch := float64(w), float64(h)
	if current < ratio {
		cw = math.Round(float64(h) * ratio)
	} else {
		ch = math.Round(float64(w) / ratio)
	}

	// The product must also fit, or cw*ch silently wraps for the caller.
	if cw > math.MaxInt32 || ch > math.MaxInt32 || cw*ch > math.MaxInt64/4 {
		return 0, 0, &ResourceError{Width: int(math.Min(cw, math.MaxInt32)), Height: int(math.Min(ch, math.MaxInt32)),
			Err: errors.New("canvas dimensions overflow")}
	}
	return int(cw), int(ch), nil
}

// allocate creates the canvas, turning an allocation panic from the image package
// into a *ResourceError.
func allocate(w, h int) (buf *Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = &ResourceError{Width: w, Height: h, Err: fmt.Errorf("%v", r)}
		}
	}()
	return NewBuffer(w, h), nil
}
