package geometry

import "fmt"

// tokenLongSide is large enough that the long-side pre-clamp practically
// never fires when sizing by token budget.
const tokenLongSide = 50000

// framingTokens are the fixed start/end tokens wrapped around every image.
const framingTokens = 2

// ImageElement describes one screenshot's geometry.
//
// Width and Height are the raw pixel dimensions. ResizedWidth, ResizedHeight
// and SeqLen are zero until UpdateImageSize annotates the element. Size an
// element once and treat it as read-only afterwards; sizing the same element
// from two goroutines is a data race.
type ImageElement struct {
	Width         int `json:"width" yaml:"width"`
	Height        int `json:"height" yaml:"height"`
	ResizedWidth  int `json:"resized_width,omitempty" yaml:"resized_width,omitempty"`
	ResizedHeight int `json:"resized_height,omitempty" yaml:"resized_height,omitempty"`
	SeqLen        int `json:"seq_len,omitempty" yaml:"seq_len,omitempty"`
}

// NewImageElement creates an unsized element for a width x height image
func NewImageElement(width, height int) *ImageElement {
	return &ImageElement{Width: width, Height: height}
}

// Sized reports whether the resized dimensions have been populated
func (e ImageElement) Sized() bool {
	return e.ResizedWidth > 0 && e.ResizedHeight > 0
}

// TokenBudget holds the vision-model geometry used to size an image
type TokenBudget struct {
	MinTokens int `json:"min_tokens" yaml:"min_tokens" mapstructure:"min_tokens"`
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	MergeBase int `json:"merge_base" yaml:"merge_base" mapstructure:"merge_base"`
	PatchSize int `json:"patch_size" yaml:"patch_size" mapstructure:"patch_size"`
}

// DefaultTokenBudget returns the Qwen2-VL budget: 14px patches merged 2x2, up to 12800 tokens
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{
		MinTokens: 1,
		MaxTokens: 12800,
		MergeBase: 2,
		PatchSize: 14,
	}
}

// Validate checks the budget parameters
func (b TokenBudget) Validate() error {
	if b.PatchSize <= 0 || b.MergeBase <= 0 {
		return fmt.Errorf("%w: patch_size and merge_base must be positive, got %d and %d",
			ErrInvalidArgument, b.PatchSize, b.MergeBase)
	}
	if b.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidArgument, b.MaxTokens)
	}
	if b.MinTokens < 0 || b.MinTokens > b.MaxTokens {
		return fmt.Errorf("%w: min_tokens %d outside [0, %d]", ErrInvalidArgument, b.MinTokens, b.MaxTokens)
	}
	return nil
}

// Factor is the grid every resized dimension is a multiple of
func (b TokenBudget) Factor() int {
	return b.MergeBase * b.PatchSize
}

// PixelsPerToken is the pixel area one vision token covers
func (b TokenBudget) PixelsPerToken() int {
	return b.PatchSize * b.PatchSize * b.MergeBase * b.MergeBase
}

// ResizeOptions converts the token budget to a pixel budget
func (b TokenBudget) ResizeOptions() ResizeOptions {
	ppt := b.PixelsPerToken()
	return ResizeOptions{
		Factor:      b.Factor(),
		MinPixels:   ppt * b.MinTokens,
		MaxPixels:   ppt * b.MaxTokens,
		MaxLongSide: tokenLongSide,
	}
}

// UpdateImageSize sizes el under the token budget.
//
// It writes ResizedHeight, ResizedWidth and SeqLen into el and returns el.
// Callers that need the original record untouched must pass a copy.
func UpdateImageSize(el *ImageElement, budget TokenBudget) (*ImageElement, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: nil image element", ErrInvalidArgument)
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	rh, rw, err := SmartResize(el.Height, el.Width, budget.ResizeOptions())
	if err != nil {
		return nil, err
	}

	el.ResizedHeight = rh
	el.ResizedWidth = rw
	el.SeqLen = rh*rw/budget.PixelsPerToken() + framingTokens
	return el, nil
}
