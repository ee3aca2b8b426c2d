package images

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	// Decoders for the formats a user can drop besides JPEG and PNG.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatGIF is the GIF image format (decode only).
	FormatGIF ImageFormat = "gif"
	// FormatBMP is the BMP image format (decode only).
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is the TIFF image format (decode only).
	FormatTIFF ImageFormat = "tiff"
	// FormatWebP is the WebP image format (decode only).
	FormatWebP ImageFormat = "webp"
)

// DefaultJPEGQuality is the quality used when saving annotated JPEGs.
const DefaultJPEGQuality = 95

// Extension returns the file extension, including the dot, used when saving in this format.
func (f ImageFormat) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// OutputFormatFor picks the format an annotated copy of path is saved in: JPEG when the
// extension belongs to the JPEG family (".jpg", ".jpeg", ".jpe", ".jfif", ...), PNG otherwise.
//
// Arguments:
//   - path: The source file path or name.
//
// Returns:
//   - ImageFormat: FormatJPEG or FormatPNG.
func OutputFormatFor(path string) ImageFormat {
	if strings.HasPrefix(strings.ToLower(filepath.Ext(path)), ".j") {
		return FormatJPEG
	}
	return FormatPNG
}

// IsSupportedExtension reports whether a file with this name can be decoded.
func IsSupportedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".jpe", ".jfif", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

// Encode writes img to w. Only JPEG and PNG can be written.
//
// Arguments:
//   - w: The destination writer.
//   - img: The image to encode.
//   - format: FormatJPEG or FormatPNG.
//   - quality: JPEG quality (1-100); ignored for PNG. Values <= 0 select DefaultJPEGQuality.
//
// Returns:
//   - error: An error if the format is not writable or encoding fails.
func Encode(w io.Writer, img image.Image, format ImageFormat, quality int) error {
	switch format {
	case FormatJPEG:
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		return errors.Wrap(jpeg.Encode(w, img, &jpeg.Options{Quality: quality}), "encode jpeg")
	case FormatPNG:
		return errors.Wrap(png.Encode(w, img), "encode png")
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}
