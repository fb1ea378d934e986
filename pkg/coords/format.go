package coords

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownFormat is returned for a format tag outside the five known encodings.
	ErrUnknownFormat = errors.New("unknown coordinate format")
	// ErrMissingResizedDimensions is returned when abs_resized is used on an unsized element.
	ErrMissingResizedDimensions = errors.New("image element has no resized dimensions")
	// ErrInvalidDimensions is returned when the element's raw width or height is not positive.
	ErrInvalidDimensions = errors.New("image element has invalid raw dimensions")
)

// Format identifies a coordinate encoding
type Format int

const (
	// AbsOrigin is pixel coordinates in the raw screenshot (canonical)
	AbsOrigin Format = iota + 1
	// AbsResized is pixel coordinates in the budget-resized screenshot
	AbsResized
	// QwenVL is integers in [0, 999] relative to the raw dimensions
	QwenVL
	// Rel is floats in [0, 1]
	Rel
	// Molmo is floats in [0, 100] with one decimal
	Molmo
)

var formatNames = map[Format]string{
	AbsOrigin:  "abs_origin",
	AbsResized: "abs_resized",
	QwenVL:     "qwen-vl",
	Rel:        "rel",
	Molmo:      "molmo",
}

// Formats returns every supported format in canonical order
func Formats() []Format {
	return []Format{AbsOrigin, AbsResized, QwenVL, Rel, Molmo}
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses a wire name such as "qwen-vl" or "abs_origin"
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// MarshalText implements encoding.TextMarshaler
func (f Format) MarshalText() ([]byte, error) {
	name, ok := formatNames[f]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
