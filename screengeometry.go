// Package screengeometry sizes screenshots for vision-language models and maps
// the coordinates they return back onto the screen.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//		"os"
//
//		screengeometry "github.com/menta2k/screen-geometry"
//		"github.com/menta2k/screen-geometry/pkg/coords"
//	)
//
//	func main() {
//		n, err := screengeometry.ForModel("qwen2.5-vl")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		raw, err := os.ReadFile("screenshot.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Resize to the model's token budget and encode for transmission
//		shot, err := n.Prepare(raw)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// ... send shot.Base64 to the model, which answers with a point ...
//
//		pt, err := n.ToScreen(coords.Point{640, 360}, shot.Element)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("click at %.0f,%.0f\n", pt[0], pt[1])
//	}
//
// The package fronts these components:
//
//  1. Geometry (pkg/geometry): grid rounding, smart resize and token sizing
//  2. Coords (pkg/coords): conversion between the five coordinate formats
//  3. Processing (pkg/processing): base64, downscaling, perceptual hashing and overlays
//  4. Grounding (pkg/grounding): the model round trip through Ollama or llama.cpp
//  5. Observe (pkg/observe): screenshot capture with change detection
//
// Every conversion pivots through abs_origin, the pixel grid of the raw
// screenshot. Sizing is deterministic, so the element returned by Prepare
// must be reused when converting the model's answer.
package screengeometry

import (
	"fmt"

	"github.com/menta2k/screen-geometry/internal/config"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
	"github.com/menta2k/screen-geometry/pkg/processing"
)

// Version of the screen geometry library
const Version = "1.0.0"

// Normalizer binds a coordinate format to a token budget
type Normalizer struct {
	format    coords.Format
	budget    geometry.TokenBudget
	processor *processing.Processor
}

// Screenshot is a screenshot prepared for a model request
type Screenshot struct {
	Element geometry.ImageElement `json:"element"`
	Base64  string                `json:"-"`
	Hash    uint64                `json:"hash"`
}

// New creates a normalizer for models answering in format under budget
func New(format coords.Format, budget geometry.TokenBudget) (*Normalizer, error) {
	if _, err := format.MarshalText(); err != nil {
		return nil, err
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{format: format, budget: budget, processor: processing.NewProcessor()}, nil
}

// ForModel creates a normalizer from a built-in profile such as "qwen2.5-vl" or "molmo"
func ForModel(profile string) (*Normalizer, error) {
	p, err := config.Default().FindProfile(profile)
	if err != nil {
		return nil, err
	}
	f, err := p.CoordFormat()
	if err != nil {
		return nil, err
	}
	return New(f, p.Budget)
}

// Format returns the coordinate format the model answers in
func (n *Normalizer) Format() coords.Format {
	return n.format
}

// Budget returns the token budget screenshots are sized under
func (n *Normalizer) Budget() geometry.TokenBudget {
	return n.budget
}

// Element sizes a width x height screenshot under the budget
func (n *Normalizer) Element(width, height int) (*geometry.ImageElement, error) {
	return geometry.UpdateImageSize(geometry.NewImageElement(width, height), n.budget)
}

// Prepare sizes raw screenshot bytes and base64-encodes them for the model.
// Models answering in abs_resized receive the image resized to the budget;
// the others receive the original bytes.
func (n *Normalizer) Prepare(raw []byte) (*Screenshot, error) {
	img, err := processing.DecodeImage(raw)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	el, err := n.Element(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	var b64 string
	if n.format == coords.AbsResized {
		b64, err = n.processor.PrepareForModel(img, *el)
	} else {
		b64, err = processing.EncodeToBase64(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}

	return &Screenshot{Element: *el, Base64: b64, Hash: processing.PerceptualHash(raw)}, nil
}

// ToScreen converts a model point to a pixel on the raw screenshot
func (n *Normalizer) ToScreen(p coords.Point, el geometry.ImageElement) (coords.Point, error) {
	out, err := coords.ConvertPoint(p, el, n.format, coords.AbsOrigin)
	if err != nil {
		return coords.Point{}, err
	}
	return coords.ClampPoint(out, el), nil
}

// BoxToScreen converts a model box to pixels on the raw screenshot
func (n *Normalizer) BoxToScreen(box coords.BBox, el geometry.ImageElement) (coords.BBox, error) {
	out, err := coords.ConvertBBox(box, el, n.format, coords.AbsOrigin)
	if err != nil {
		return coords.BBox{}, err
	}
	return coords.ClampBBox(out, el), nil
}

// FromScreen converts a raw screenshot pixel into the model's format
func (n *Normalizer) FromScreen(p coords.Point, el geometry.ImageElement) (coords.Point, error) {
	return coords.ConvertPoint(p, el, coords.AbsOrigin, n.format)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
