package images

import (
	"bytes"
	"image"
	"image/draw"
	"os"

	"github.com/pkg/errors"
)

// Load reads a file and normalizes it.
//
// Arguments:
//   - path: The image file to read.
//
// Returns:
//   - *Buffer: The upright, canonical buffer.
//   - error: A *DecodeError if the file is missing, unreadable or not a decodable image.
func Load(path string) (*Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Filename: path, Err: err}
	}
	return Normalize(raw, path)
}

// Normalize decodes raw, corrects its EXIF orientation and copies it into a canonical
// 8-bit alpha+RGB buffer.
//
// Arguments:
//   - raw: The encoded image bytes.
//   - filename: The name reported in errors and recorded on the buffer.
//
// Returns:
//   - *Buffer: The upright buffer. Its Orientation is OrientationTopLeft when the source
//     carried a tag and OrientationUnspecified otherwise.
//   - error: A *DecodeError if raw is empty or cannot be decoded.
//
// @example
//
//	buf, err := images.Normalize(data, "IMG_0001.jpg")
//	if err != nil {
//	    return err
//	}
//	defer buf.Release()
func Normalize(raw []byte, filename string) (*Buffer, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Filename: filename, Err: errors.New("image data is empty")}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Filename: filename, Err: err}
	}

	buf := NormalizeImage(img, ReadOrientation(raw))
	buf.Source = filename
	buf.Format = ImageFormat(format)
	return buf, nil
}

// NormalizeImage applies o to an already decoded image and copies the result into a
// new canonical buffer of identical size. Normalizing a normalized buffer with its own
// orientation is a pixel-identical copy.
//
// Arguments:
//   - img: The decoded pixels, as stored.
//   - o: The orientation tag stored alongside them.
//
// Returns:
//   - *Buffer: The upright buffer with its orientation reset.
func NormalizeImage(img image.Image, o Orientation) *Buffer {
	upright := o.Apply(img)

	bounds := upright.Bounds()
	buf := NewBuffer(bounds.Dx(), bounds.Dy())
	draw.Draw(buf.NRGBA, buf.Rect, upright, bounds.Min, draw.Src)

	if o != OrientationUnspecified {
		buf.Orientation = OrientationTopLeft
	}
	return buf
}
