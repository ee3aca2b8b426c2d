// Package annotate - Draws detection boxes and labels onto result images.
package annotate

import (
	"image/color"

	"github.com/chewxy/math32"
)

// HSVToRGB converts a hue, saturation and value triple in [0, 1] to an opaque color.
// Hues outside [0, 1) wrap around.
//
// Arguments:
//   - h: The hue (0 = red, 1/3 = green, 2/3 = blue).
//   - s: The saturation.
//   - v: The brightness.
//
// Returns:
//   - color.NRGBA: The color with alpha 255.
func HSVToRGB(h, s, v float32) color.NRGBA {
	var r, g, b float32
	if s == 0 {
		r, g, b = v, v, v
	} else {
		h -= math32.Floor(h)
		h *= 6
		if h >= 6 {
			h = 0
		}
		i := int(math32.Floor(h))
		f := h - float32(i)
		p := v * (1 - s)
		var q float32
		if i%2 == 0 {
			q = v * (1 - (1-f)*s)
		} else {
			q = v * (1 - f*s)
		}

		switch i {
		case 0:
			r, g, b = v, q, p
		case 1:
			r, g, b = q, v, p
		case 2:
			r, g, b = p, v, q
		case 3:
			r, g, b = p, q, v
		case 4:
			r, g, b = q, p, v
		default:
			r, g, b = v, p, q
		}
	}

	return color.NRGBA{R: channel(r), G: channel(g), B: channel(b), A: 255}
}

// ClassColor spreads class colors evenly over the hue circle.
func ClassColor(classID, numClasses int) color.NRGBA {
	if numClasses <= 0 {
		return HSVToRGB(0, 1, 0.8)
	}
	return HSVToRGB(float32(classID)/float32(numClasses), 1, 0.8)
}

func channel(x float32) uint8 {
	return uint8(math32.Round(math32.Max(0, math32.Min(1, x)) * 255))
}
