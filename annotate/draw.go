package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
)

const (
	// ReferenceWidth is the image width at which strokes are drawn at their nominal size.
	ReferenceWidth = 800
	labelHeight    = 35
	boxThickness   = 3
	textInset      = 3
)

// LabelBackground is the translucent bar drawn behind each label.
var LabelBackground = color.NRGBA{R: 40, G: 40, B: 0, A: 128}

// Label formats the caption drawn above a detection, e.g. "dog (87.5%)".
func Label(d common.Detection) string {
	return fmt.Sprintf("%s (%04.1f%%)", d.Label, d.Confidence*100)
}

// Scale returns the stroke multiplier for an image width.
func Scale(width int) float32 {
	return float32(width) / ReferenceWidth
}

// Draw renders every detection onto buf in place: a label bar, the box outline in the
// class color and the label text.
//
// Arguments:
//   - buf: The image to draw on.
//   - detections: The detections in buf coordinates.
//   - numClasses: The size of the label set, used to pick class colors.
//
// @example
//
//	annotate.Draw(padded, detections, len(det.ClassNames()))
func Draw(buf *images.Buffer, detections []common.Detection, numClasses int) {
	if buf.Released() || len(detections) == 0 {
		return
	}

	scale := Scale(buf.Width())
	barHeight := strokes(labelHeight, scale)
	thickness := strokes(boxThickness, scale)
	bar := image.NewUniform(LabelBackground)

	for _, d := range detections {
		r := d.Rect()
		c := ClassColor(d.ClassID, numClasses)

		draw.Draw(buf.NRGBA, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+barHeight), bar, image.Point{}, draw.Over)
		outline(buf.NRGBA, r, thickness, c)
		text(buf.NRGBA, r.Min.X, r.Min.Y+strokes(textInset, scale), Label(d))
	}
}

// outline draws a rectangle border of the given thickness centered on r's edges.
func outline(dst draw.Image, r image.Rectangle, thickness int, c color.Color) {
	src := image.NewUniform(c)
	outer := r.Inset(-(thickness / 2))
	inner := outer.Inset(thickness)
	if inner.Empty() {
		draw.Draw(dst, outer, src, image.Point{}, draw.Src)
		return
	}

	for _, strip := range []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y),
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y),
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y),
	} {
		draw.Draw(dst, strip, src, image.Point{}, draw.Src)
	}
}

// text draws s in white with its top-left corner at (x, top).
func text(dst draw.Image, x, top int, s string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(x, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

func strokes(nominal int, scale float32) int {
	n := int(math32.Round(float32(nominal) * scale))
	if n < 1 {
		return 1
	}
	return n
}
