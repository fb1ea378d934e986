package coords

import (
	"fmt"
	"math"

	"github.com/menta2k/screen-geometry/pkg/geometry"
)

// qwenScale is the normalization range of qwen-vl coordinates
const qwenScale = 999

// molmoScale is the normalization range of molmo coordinates
const molmoScale = 100

// pixelEpsilon is how close to a whole pixel a value must be to snap onto it
const pixelEpsilon = 1e-6

// BBox is a top-left / bottom-right box: x1, y1, x2, y2
type BBox [4]float64

// Point is an x, y location
type Point [2]float64

// Center returns the midpoint of the box
func (b BBox) Center() Point {
	return Point{(b[0] + b[2]) / 2, (b[1] + b[3]) / 2}
}

// axis carries the raw and resized extent of one image axis
type axis struct {
	raw     float64
	resized float64
}

// codec converts one coordinate between a format and abs_origin
type codec struct {
	needsResized bool
	toOrigin     func(v float64, a axis) float64
	fromOrigin   func(v float64, a axis) float64
}

// Every conversion goes src -> abs_origin -> tgt through this table.
// The abs_origin pivot is truncated to a whole pixel, so fromOrigin
// always receives an integral value.
var codecs = map[Format]codec{
	AbsOrigin: {
		toOrigin:   func(v float64, _ axis) float64 { return v },
		fromOrigin: func(v float64, _ axis) float64 { return v },
	},
	AbsResized: {
		needsResized: true,
		toOrigin:     func(v float64, a axis) float64 { return v / a.resized * a.raw },
		fromOrigin:   func(v float64, a axis) float64 { return truncPixel(v / a.raw * a.resized) },
	},
	QwenVL: {
		toOrigin:   func(v float64, a axis) float64 { return v / qwenScale * a.raw },
		fromOrigin: func(v float64, a axis) float64 { return math.Round(v / a.raw * qwenScale) },
	},
	Rel: {
		toOrigin:   func(v float64, a axis) float64 { return v * a.raw },
		fromOrigin: func(v float64, a axis) float64 { return v / a.raw },
	},
	Molmo: {
		toOrigin:   func(v float64, a axis) float64 { return v / molmoScale * a.raw },
		fromOrigin: func(v float64, a axis) float64 { return roundTenths(v / a.raw * molmoScale) },
	},
}

// ConvertBBox converts a box from src to tgt format.
//
// The same element must be used for both legs of a round trip; abs_resized
// on either side requires the element to have been sized.
func ConvertBBox(b BBox, el geometry.ImageElement, src, tgt Format) (BBox, error) {
	var out BBox
	if err := convert(b[:], out[:], el, src, tgt); err != nil {
		return BBox{}, err
	}
	return out, nil
}

// ConvertPoint converts a point from src to tgt format
func ConvertPoint(p Point, el geometry.ImageElement, src, tgt Format) (Point, error) {
	var out Point
	if err := convert(p[:], out[:], el, src, tgt); err != nil {
		return Point{}, err
	}
	return out, nil
}

func convert(in, out []float64, el geometry.ImageElement, src, tgt Format) error {
	from, ok := codecs[src]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrUnknownFormat, src)
	}
	to, ok := codecs[tgt]
	if !ok {
		return fmt.Errorf("%w: target %s", ErrUnknownFormat, tgt)
	}
	if el.Width <= 0 || el.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, el.Width, el.Height)
	}
	if (from.needsResized || to.needsResized) && !el.Sized() {
		return fmt.Errorf("%w: converting %s to %s", ErrMissingResizedDimensions, src, tgt)
	}

	axes := [2]axis{
		{raw: float64(el.Width), resized: float64(el.ResizedWidth)},
		{raw: float64(el.Height), resized: float64(el.ResizedHeight)},
	}
	for i, v := range in {
		a := axes[i%2]
		origin := truncPixel(from.toOrigin(v, a))
		out[i] = to.fromOrigin(origin, a)
	}
	return nil
}

// ClampPoint keeps an abs_origin point inside the raw image
func ClampPoint(p Point, el geometry.ImageElement) Point {
	return Point{
		clamp(p[0], 0, float64(el.Width-1)),
		clamp(p[1], 0, float64(el.Height-1)),
	}
}

// ClampBBox keeps an abs_origin box inside the raw image and orders its corners
func ClampBBox(b BBox, el geometry.ImageElement) BBox {
	x1, x2 := math.Min(b[0], b[2]), math.Max(b[0], b[2])
	y1, y2 := math.Min(b[1], b[3]), math.Max(b[1], b[3])
	w, h := float64(el.Width), float64(el.Height)
	return BBox{clamp(x1, 0, w), clamp(y1, 0, h), clamp(x2, 0, w), clamp(y2, 0, h)}
}

// truncPixel drops the fractional pixel. Values within pixelEpsilon of a
// whole pixel snap to it, so 7.0/1920*1920 stays 7.
func truncPixel(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < pixelEpsilon {
		return r
	}
	return math.Trunc(v)
}

func roundTenths(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
