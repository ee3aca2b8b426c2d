// Package images - Orientation normalization and letterboxing of dropped images.
package images

import (
	"image"
	"image/draw"
)

// Buffer is a decoded, upright raster with 8-bit non-premultiplied alpha+RGB pixels.
//
// The embedded *image.NRGBA always has its origin at (0, 0), so the buffer can be
// handed to anything that accepts an image.Image or a draw.Image.
type Buffer struct {
	*image.NRGBA
	// Orientation is the orientation tag stored with the pixels. After normalization it is
	// either OrientationTopLeft or OrientationUnspecified when the source carried no tag.
	Orientation Orientation `json:"orientation" yaml:"orientation"`
	// Source is the filename the pixels were decoded from.
	Source string `json:"source" yaml:"source"`
	// Format is the name of the decoder that produced the pixels ("jpeg", "png", ...).
	Format ImageFormat `json:"format" yaml:"format"`
}

// NewBuffer allocates a zeroed (transparent black) buffer of the given size.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{NRGBA: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// Width returns the width of the buffer in pixels.
func (b *Buffer) Width() int {
	if b == nil || b.NRGBA == nil {
		return 0
	}
	return b.Rect.Dx()
}

// Height returns the height of the buffer in pixels.
func (b *Buffer) Height() int {
	if b == nil || b.NRGBA == nil {
		return 0
	}
	return b.Rect.Dy()
}

// Released reports whether the pixel memory has been dropped.
func (b *Buffer) Released() bool {
	return b == nil || b.NRGBA == nil
}

// Release drops the pixel memory. The buffer must not be drawn after Release.
// Calling Release more than once is a no-op.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.NRGBA = nil
}

// Clone returns a pixel-identical copy that shares no memory with b.
//
// Returns:
//   - *Buffer: The copy, with the same metadata as b.
func (b *Buffer) Clone() *Buffer {
	out := NewBuffer(b.Width(), b.Height())
	draw.Draw(out.NRGBA, out.Rect, b.NRGBA, b.Rect.Min, draw.Src)
	out.Orientation = b.Orientation
	out.Source = b.Source
	out.Format = b.Format
	return out
}
