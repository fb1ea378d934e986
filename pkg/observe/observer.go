package observe

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/screen-geometry/internal/logger"
	"github.com/menta2k/screen-geometry/internal/utils"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
	"github.com/menta2k/screen-geometry/pkg/processing"
)

// ScreenshotSource produces encoded screenshots
type ScreenshotSource interface {
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

// FileSource reads screenshots written by an external capture tool.
// Path may be a file, an http(s) URL or a directory; for a directory the
// most recently modified image is used.
type FileSource struct {
	Path      string
	processor *processing.Processor
}

// NewFileSource creates a source reading from path
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, processor: processing.NewProcessor()}
}

// CaptureScreenshot returns the current bytes behind Path
func (s *FileSource) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path
	if utils.DirExists(path) {
		latest, err := utils.LatestImageFile(path)
		if err != nil {
			return nil, err
		}
		path = latest
	}
	return s.processor.LoadImageBytes(path)
}

// Options controls how captures are processed
type Options struct {
	// Dir receives a copy of every capture; empty disables persisting
	Dir string
	// MaxWidth and MaxHeight bound the transmitted screenshot; zero leaves an axis free
	MaxWidth  int
	MaxHeight int
	// HashThreshold is the Hamming distance at or below which the screen counts as unchanged
	HashThreshold int
	Budget        geometry.TokenBudget
}

// DefaultOptions downscales to 1280x720 and treats up to 5 differing hash bits as unchanged
func DefaultOptions() Options {
	return Options{
		MaxWidth:      processing.DefaultMaxWidth,
		MaxHeight:     processing.DefaultMaxHeight,
		HashThreshold: 5,
		Budget:        geometry.DefaultTokenBudget(),
	}
}

// Observation is one processed capture.
//
// Element describes the transmitted, possibly downscaled, image and is what
// model coordinates are converted against. Screen holds the raw capture size.
type Observation struct {
	ID        string                `json:"id"`
	Timestamp time.Time             `json:"timestamp"`
	Path      string                `json:"path,omitempty"`
	Base64    string                `json:"-"`
	Bytes     int                   `json:"bytes"`
	Hash      uint64                `json:"hash"`
	Changed   bool                  `json:"changed"`
	Screen    geometry.ImageElement `json:"screen"`
	Element   geometry.ImageElement `json:"element"`
}

// Downscaled reports whether the transmitted image is smaller than the screen
func (obs *Observation) Downscaled() bool {
	return obs.Element.Width != obs.Screen.Width || obs.Element.Height != obs.Screen.Height
}

// ScreenPoint maps an abs_origin point on the transmitted image to screen pixels
func (obs *Observation) ScreenPoint(p coords.Point) coords.Point {
	if !obs.Downscaled() {
		return coords.ClampPoint(p, obs.Screen)
	}
	sx := float64(obs.Screen.Width) / float64(obs.Element.Width)
	sy := float64(obs.Screen.Height) / float64(obs.Element.Height)
	return coords.ClampPoint(coords.Point{math.Trunc(p[0] * sx), math.Trunc(p[1] * sy)}, obs.Screen)
}

// Observer captures screenshots and tracks whether the screen changed between captures.
// It is safe for concurrent use.
type Observer struct {
	source ScreenshotSource
	opts   Options

	mu       sync.Mutex
	lastHash uint64
}

// NewObserver creates an observer over source
func NewObserver(source ScreenshotSource, opts Options) *Observer {
	return &Observer{source: source, opts: opts}
}

// Capture takes a screenshot, downscales, persists, encodes and hashes it
func (o *Observer) Capture(ctx context.Context) (*Observation, error) {
	raw, err := o.source.CaptureScreenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	screen, err := processing.ElementFromBytes(raw)
	if err != nil {
		return nil, err
	}

	data := processing.Downscale(raw, o.opts.MaxWidth, o.opts.MaxHeight)
	b64, err := processing.EncodeToBase64(data)
	if err != nil {
		return nil, err
	}

	el, err := processing.ElementFromBytes(data)
	if err != nil {
		return nil, err
	}
	if _, err := geometry.UpdateImageSize(el, o.opts.Budget); err != nil {
		return nil, fmt.Errorf("failed to size screenshot: %w", err)
	}

	obs := &Observation{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Base64:    b64,
		Bytes:     len(data),
		Hash:      processing.PerceptualHash(data),
		Screen:    *screen,
		Element:   *el,
	}
	log := logger.L(ctx).With(zap.String("observation", obs.ID))

	if o.opts.Dir != "" {
		path, err := persist(o.opts.Dir, obs.ID, data)
		if err != nil {
			// a failed copy does not invalidate the observation
			log.Warn("failed to persist screenshot", zap.Error(err))
		} else {
			obs.Path = path
		}
	}

	obs.Changed = o.update(obs.Hash)

	log.Debug("captured screenshot",
		zap.Int("screen_width", screen.Width), zap.Int("screen_height", screen.Height),
		zap.Int("width", el.Width), zap.Int("height", el.Height),
		zap.Int("bytes", obs.Bytes),
		zap.String("hash", fmt.Sprintf("%016x", obs.Hash)),
		zap.Bool("changed", obs.Changed))
	return obs, nil
}

// update records h as the latest hash and reports whether the screen changed
func (o *Observer) update(h uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.lastHash
	o.lastHash = h
	return !processing.SameScreen(prev, h, o.opts.HashThreshold)
}

// Reset forgets the previous capture so the next one counts as changed
func (o *Observer) Reset() {
	o.mu.Lock()
	o.lastHash = 0
	o.mu.Unlock()
}

func persist(dir, id string, data []byte) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	ext := processing.ImageFormat(data)
	if ext == "jpeg" {
		ext = "jpg"
	}
	path := utils.ScreenshotFilename(dir, "screenshot_", id, ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
