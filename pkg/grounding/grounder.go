package grounding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/screen-geometry/internal/logger"
	"github.com/menta2k/screen-geometry/pkg/client"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
	"github.com/menta2k/screen-geometry/pkg/processing"
	"github.com/menta2k/screen-geometry/pkg/types"
)

// ErrNoCoordinates is returned when the model located nothing usable
var ErrNoCoordinates = errors.New("model returned no coordinates")

// DefaultPrompt asks for a single JSON object; %s is the instruction, %s the coordinate hint
const DefaultPrompt = `You are a GUI grounding assistant looking at a screenshot.

Locate the UI element for this instruction: %s

Return JSON only:
{"label": "short element name", "point": [x, y], "bbox": [x1, y1, x2, y2]}

RULES
- Coordinates are %s.
- "point" is where to click. "bbox" is optional.
- JSON only. No markdown, no code fences, no comments.`

var formatHints = map[coords.Format]string{
	coords.AbsOrigin:  "pixels of the original screenshot",
	coords.AbsResized: "pixels of the image as you see it",
	coords.QwenVL:     "integers from 0 to 999 relative to the image size",
	coords.Rel:        "fractions from 0.0 to 1.0 of the image width and height",
	coords.Molmo:      "percentages from 0.0 to 100.0 of the image width and height",
}

// Result is a located element in abs_origin pixels of the raw screenshot
type Result struct {
	Label   string                `json:"label"`
	Point   coords.Point          `json:"point"`
	BBox    *coords.BBox          `json:"bbox,omitempty"`
	Element geometry.ImageElement `json:"element"`
	Native  *types.Location       `json:"native"`
	Format  coords.Format         `json:"format"`
}

// Grounder turns natural-language instructions into screen coordinates
type Grounder struct {
	client    client.VisionClient
	processor *processing.Processor
	budget    geometry.TokenBudget
	format    coords.Format
	prompt    string
}

// Option configures a Grounder
type Option func(*Grounder)

// WithBudget sets the token budget used to size screenshots
func WithBudget(b geometry.TokenBudget) Option {
	return func(g *Grounder) { g.budget = b }
}

// WithFormat sets the coordinate format the model answers in
func WithFormat(f coords.Format) Option {
	return func(g *Grounder) { g.format = f }
}

// WithPrompt replaces DefaultPrompt; it must keep both %s verbs
func WithPrompt(p string) Option {
	return func(g *Grounder) { g.prompt = p }
}

// NewGrounder creates a grounder for a qwen-vl model unless options say otherwise
func NewGrounder(c client.VisionClient, opts ...Option) *Grounder {
	g := &Grounder{
		client:    c,
		processor: processing.NewProcessor(),
		budget:    geometry.DefaultTokenBudget(),
		format:    coords.QwenVL,
		prompt:    DefaultPrompt,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Format returns the coordinate format the grounder expects from the model
func (g *Grounder) Format() coords.Format {
	return g.format
}

// Prompt renders the model prompt for an instruction
func (g *Grounder) Prompt(instruction string) string {
	hint, ok := formatHints[g.format]
	if !ok {
		hint = g.format.String()
	}
	return fmt.Sprintf(g.prompt, instruction, hint)
}

// Locate asks the model where instruction points on the screenshot.
// The returned point and box are abs_origin pixels clamped to the screenshot.
func (g *Grounder) Locate(ctx context.Context, model, instruction string, screenshot []byte) (*Result, error) {
	log := logger.L(ctx).With(zap.String("model", model), zap.Stringer("format", g.format))

	img, err := processing.DecodeImage(screenshot)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	b := img.Bounds()
	el, err := geometry.UpdateImageSize(geometry.NewImageElement(b.Dx(), b.Dy()), g.budget)
	if err != nil {
		return nil, fmt.Errorf("failed to size screenshot: %w", err)
	}
	log.Debug("sized screenshot",
		zap.Int("width", el.Width), zap.Int("height", el.Height),
		zap.Int("resized_width", el.ResizedWidth), zap.Int("resized_height", el.ResizedHeight),
		zap.Int("seq_len", el.SeqLen))

	// only abs_resized answers depend on the pixels the model actually saw
	sent := geometry.ImageElement{Width: el.Width, Height: el.Height}
	if g.format == coords.AbsResized {
		sent = *el
	}
	imgB64, err := g.processor.PrepareForModel(img, sent)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	loc, err := g.client.Locate(ctx, model, g.Prompt(instruction), imgB64)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	if loc == nil || (!loc.HasPoint() && !loc.HasBBox()) {
		return nil, ErrNoCoordinates
	}

	res, err := g.toScreen(loc, *el)
	if err != nil {
		log.Warn("discarding model coordinates", zap.Error(err))
		return nil, err
	}

	log.Info("grounded element",
		zap.String("label", res.Label),
		zap.Float64("x", res.Point[0]), zap.Float64("y", res.Point[1]),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (g *Grounder) toScreen(loc *types.Location, el geometry.ImageElement) (*Result, error) {
	res := &Result{Label: loc.Label, Element: el, Native: loc, Format: g.format}

	if loc.HasBBox() {
		box, err := coords.ConvertBBox(coords.BBox(loc.BBox), el, g.format, coords.AbsOrigin)
		if err != nil {
			return nil, err
		}
		box = coords.ClampBBox(box, el)
		res.BBox = &box
		res.Point = box.Center()
	}

	if loc.HasPoint() {
		pt, err := coords.ConvertPoint(coords.Point(loc.Point), el, g.format, coords.AbsOrigin)
		if err != nil {
			return nil, err
		}
		res.Point = pt
	}

	res.Point = coords.ClampPoint(res.Point, el)
	return res, nil
}
