package images

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is an EXIF orientation code (tag 0x0112). It names where the stored
// row 0 / column 0 of the pixel data belong in the upright picture.
type Orientation uint16

const (
	// OrientationUnspecified means the source carried no orientation tag.
	OrientationUnspecified Orientation = 0
	// OrientationTopLeft is the identity: the pixels are already upright.
	OrientationTopLeft Orientation = 1
	// OrientationTopRight needs a horizontal flip.
	OrientationTopRight Orientation = 2
	// OrientationBottomRight needs a 180 degree rotation.
	OrientationBottomRight Orientation = 3
	// OrientationBottomLeft needs a vertical flip.
	OrientationBottomLeft Orientation = 4
	// OrientationLeftTop needs a 270 degree clockwise rotation followed by a vertical flip.
	OrientationLeftTop Orientation = 5
	// OrientationRightTop needs a 90 degree clockwise rotation.
	OrientationRightTop Orientation = 6
	// OrientationRightBottom needs a 90 degree clockwise rotation followed by a vertical flip.
	OrientationRightBottom Orientation = 7
	// OrientationLeftBottom needs a 270 degree clockwise rotation.
	OrientationLeftBottom Orientation = 8
	// OrientationUnknown means a tag was present but held none of the eight codes.
	// No transform is applied and the tag is still reset to top-left.
	OrientationUnknown Orientation = 0xFFFF
)

var orientationNames = map[Orientation]string{
	OrientationUnspecified: "unspecified",
	OrientationTopLeft:     "top-left",
	OrientationTopRight:    "top-right",
	OrientationBottomRight: "bottom-right",
	OrientationBottomLeft:  "bottom-left",
	OrientationLeftTop:     "left-top",
	OrientationRightTop:    "right-top",
	OrientationRightBottom: "right-bottom",
	OrientationLeftBottom:  "left-bottom",
	OrientationUnknown:     "unknown",
}

func (o Orientation) String() string {
	if name, ok := orientationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("orientation(%d)", uint16(o))
}

// Valid reports whether o is one of the eight EXIF codes.
func (o Orientation) Valid() bool {
	return o >= OrientationTopLeft && o <= OrientationLeftBottom
}

// SwapsAxes reports whether correcting o exchanges width and height.
func (o Orientation) SwapsAxes() bool {
	return o >= OrientationLeftTop && o <= OrientationLeftBottom
}

// ReadOrientation returns the EXIF orientation stored in an encoded image.
//
// A missing or unreadable tag yields OrientationUnspecified. A tag holding a value
// outside 1-8 yields OrientationUnknown. Neither applies a transform.
//
// Only EXIF in JPEG and TIFF containers is found. Orientation stored in a PNG eXIf
// chunk or a WebP EXIF chunk is not read, and such files are treated as untagged.
//
// Arguments:
//   - raw: The encoded image bytes.
//
// Returns:
//   - Orientation: The stored orientation code.
func ReadOrientation(raw []byte) Orientation {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil || x == nil {
		return OrientationUnspecified
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil || tag == nil || tag.Count == 0 {
		return OrientationUnspecified
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationUnknown
	}
	o := Orientation(v)
	if !o.Valid() {
		return OrientationUnknown
	}
	return o
}

// Apply maps stored pixels to their upright orientation.
//
// imaging rotates counter-clockwise, so a clockwise quarter turn is imaging.Rotate270.
// The identity and unspecified codes return img untouched.
//
// Arguments:
//   - img: The pixels as stored in the file.
//
// Returns:
//   - image.Image: The upright pixels.
func (o Orientation) Apply(img image.Image) image.Image {
	switch o {
	case OrientationTopRight:
		return imaging.FlipH(img)
	case OrientationBottomRight:
		return imaging.Rotate180(img)
	case OrientationBottomLeft:
		return imaging.FlipV(img)
	case OrientationLeftTop:
		return imaging.Transpose(img)
	case OrientationRightTop:
		return imaging.Rotate270(img)
	case OrientationRightBottom:
		return imaging.Transverse(img)
	case OrientationLeftBottom:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
