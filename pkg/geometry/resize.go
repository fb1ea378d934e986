package geometry

import (
	"fmt"
	"math"
)

// MaxAspectRatio is the largest long-side/short-side ratio SmartResize accepts.
const MaxAspectRatio = 200

// ResizeOptions holds the grid and pixel budget for SmartResize
type ResizeOptions struct {
	Factor      int `json:"factor" yaml:"factor"`
	MinPixels   int `json:"min_pixels" yaml:"min_pixels"`
	MaxPixels   int `json:"max_pixels" yaml:"max_pixels"`
	MaxLongSide int `json:"max_long_side" yaml:"max_long_side"`
}

// DefaultResizeOptions returns the budget used by Qwen-VL style models
func DefaultResizeOptions() ResizeOptions {
	return ResizeOptions{
		Factor:      28,
		MinPixels:   56 * 56,
		MaxPixels:   14 * 14 * 4 * 1280,
		MaxLongSide: 8192,
	}
}

// Validate checks that the options describe a usable budget
func (o ResizeOptions) Validate() error {
	if err := checkFactor(o.Factor); err != nil {
		return err
	}
	if o.MaxPixels <= 0 {
		return fmt.Errorf("%w: max_pixels must be positive, got %d", ErrInvalidArgument, o.MaxPixels)
	}
	if o.MinPixels < 0 || o.MinPixels > o.MaxPixels {
		return fmt.Errorf("%w: min_pixels %d outside [0, %d]", ErrInvalidArgument, o.MinPixels, o.MaxPixels)
	}
	return nil
}

// SmartResize computes a grid-aligned size for a height x width image.
//
// Both returned dimensions are multiples of opts.Factor. The image is scaled
// uniformly so the aspect ratio only drifts by grid rounding. When the snapped
// area exceeds MaxPixels the result is floored under the budget; when it falls
// below MinPixels the result is ceiled above it. A long side beyond
// MaxLongSide is scaled down first, independent of the pixel budget.
//
// Flooring can collapse the short side to 0 when MaxPixels is tight and the
// aspect ratio is extreme, e.g. 30x6000 under 7840 pixels gives 0x1232. The
// zero is returned as is; an element sized that way reports Sized() false.
func SmartResize(height, width int, opts ResizeOptions) (int, int, error) {
	if err := opts.Validate(); err != nil {
		return 0, 0, err
	}
	if height < 2 || width < 2 {
		return 0, 0, fmt.Errorf("%w: height:%d and width:%d must both be at least 2", ErrInvalidDimensions, height, width)
	}

	long, short := max(height, width), min(height, width)
	if float64(long)/float64(short) > MaxAspectRatio {
		return 0, 0, fmt.Errorf("%w: absolute aspect ratio must not exceed %d, got %d / %d",
			ErrAspectRatioTooExtreme, MaxAspectRatio, height, width)
	}

	h, w := float64(height), float64(width)
	if opts.MaxLongSide > 0 && long > opts.MaxLongSide {
		beta := float64(long) / float64(opts.MaxLongSide)
		h = math.Max(math.Trunc(h/beta), 1)
		w = math.Max(math.Trunc(w/beta), 1)
	}

	factor := opts.Factor
	hBar := roundBy(h, factor)
	wBar := roundBy(w, factor)

	switch area := hBar * wBar; {
	case area > opts.MaxPixels:
		beta := math.Sqrt(h * w / float64(opts.MaxPixels))
		hBar = floorBy(h/beta, factor)
		wBar = floorBy(w/beta, factor)
	case area < opts.MinPixels:
		beta := math.Sqrt(float64(opts.MinPixels) / (h * w))
		hBar = ceilBy(h*beta, factor)
		wBar = ceilBy(w*beta, factor)
	}

	return hBar, wBar, nil
}
