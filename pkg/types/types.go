package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoLocation is returned when a model reply carries neither a point nor a box
var ErrNoLocation = errors.New("model reply has no point or bbox")

// Location is a UI element located by a vision model.
// Coordinates are in the model's native format until converted.
type Location struct {
	Label      string    `json:"label"`
	Point      []float64 `json:"point,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// HasPoint reports whether the location carries a usable point
func (l *Location) HasPoint() bool {
	return len(l.Point) == 2
}

// HasBBox reports whether the location carries a usable box
func (l *Location) HasBBox() bool {
	return len(l.BBox) == 4
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline       = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseLocation parses a model reply into a Location.
// Replies wrapped in code fences, carrying comments or trailing commas are accepted.
func ParseLocation(raw string) (*Location, error) {
	raw = SanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("%w: reply is not JSON", ErrNoLocation)
	}

	var loc Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return nil, fmt.Errorf("failed to parse model reply: %w", err)
	}
	if !loc.HasPoint() && !loc.HasBBox() {
		return nil, ErrNoLocation
	}
	return &loc, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from a model reply
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
