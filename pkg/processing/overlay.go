package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/screen-geometry/pkg/coords"
)

var (
	boxColor    = color.NRGBA{0, 255, 0, 255}
	pointColor  = color.NRGBA{255, 0, 0, 255}
	centerColor = color.NRGBA{0, 170, 255, 255}
)

// Annotation is a set of abs_origin boxes and points to draw on a screenshot
type Annotation struct {
	Boxes  []coords.BBox  `json:"boxes,omitempty" yaml:"boxes,omitempty"`
	Points []coords.Point `json:"points,omitempty" yaml:"points,omitempty"`
}

// Annotate draws the annotation over a copy of img.
// Coordinates are abs_origin pixels; anything outside the image is clipped.
func (p *Processor) Annotate(img image.Image, a Annotation) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(min(w, h))))   // ~1% of min side

	for _, b := range a.Boxes {
		drawBox(nrgba, b, boxColor, stroke)
	}

	for _, pt := range a.Points {
		px, py := int(math.Round(pt[0])), int(math.Round(pt[1]))
		for s := -stroke / 2; s <= stroke/2; s++ {
			drawHLine(nrgba, py+s, px-cross, px+cross, pointColor)
			drawVLine(nrgba, px+s, py-cross, py+cross, pointColor)
		}
	}

	// image center marker
	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, centerColor)
	drawVLine(nrgba, ix, iy-6, iy+6, centerColor)

	return nrgba
}

func drawBox(img *image.NRGBA, b coords.BBox, c color.NRGBA, stroke int) {
	x0, y0 := int(math.Round(math.Min(b[0], b[2]))), int(math.Round(math.Min(b[1], b[3])))
	x1, y1 := int(math.Round(math.Max(b[0], b[2]))), int(math.Round(math.Max(b[1], b[3])))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
