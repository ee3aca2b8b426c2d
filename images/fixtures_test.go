package images

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// patterned returns a w x h image in which every pixel has a distinct color.
func patterned(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x + y*w), A: 255})
		}
	}
	return img
}

// quadrants returns a w x h image split into four solid quadrants
// (red top-left, green top-right, blue bottom-left, white bottom-right),
// which survives JPEG compression well enough to check orientation.
func quadrants(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var c color.NRGBA
			switch {
			case x < w/2 && y < h/2:
				c = color.NRGBA{255, 0, 0, 255}
			case y < h/2:
				c = color.NRGBA{0, 255, 0, 255}
			case x < w/2:
				c = color.NRGBA{0, 0, 255, 255}
			default:
				c = color.NRGBA{255, 255, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

// withOrientation inserts an APP1 Exif segment holding a single orientation entry
// right after the JPEG SOI marker.
func withOrientation(t *testing.T, jpegBytes []byte, o Orientation) []byte {
	require.True(t, len(jpegBytes) > 2 && jpegBytes[0] == 0xFF && jpegBytes[1] == 0xD8, "not a JPEG")

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, uint16(0x002A))
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	// IFD0 with one SHORT entry.
	binary.Write(&tiff, binary.BigEndian, uint16(1))
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	binary.Write(&tiff, binary.BigEndian, uint16(3))
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, uint16(o))
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpegBytes[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegBytes[2:])
	return out.Bytes()
}

// uprightAt returns the stored pixel coordinate that lands on (x, y) of the upright
// image, for a stored image of size w x h. It is written from the EXIF definitions,
// independently of the transform implementation.
func uprightAt(o Orientation, x, y, w, h int) (int, int) {
	switch o {
	case OrientationTopRight:
		return w - 1 - x, y
	case OrientationBottomRight:
		return w - 1 - x, h - 1 - y
	case OrientationBottomLeft:
		return x, h - 1 - y
	case OrientationLeftTop:
		return y, x
	case OrientationRightTop:
		return y, h - 1 - x
	case OrientationRightBottom:
		return w - 1 - y, h - 1 - x
	case OrientationLeftBottom:
		return w - 1 - y, x
	default:
		return x, y
	}
}

func near(a, b uint8, tolerance int) bool {
	d := int(a) - int(b)
	return d >= -tolerance && d <= tolerance
}
