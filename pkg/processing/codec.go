package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

var (
	// ErrEncoding is returned when bytes handed to EncodeToBase64 are not an image.
	ErrEncoding = errors.New("input is not a recognizable image")
	// ErrCodec is returned when an in-memory image cannot be encoded to PNG.
	ErrCodec = errors.New("failed to encode image to png")
)

// Default limits applied before a screenshot is transmitted
const (
	DefaultMaxWidth  = 1280
	DefaultMaxHeight = 720
)

// EncodeToBase64 base64-encodes raw image bytes unchanged.
// The bytes must start with a PNG, JPEG, GIF or WebP header.
func EncodeToBase64(raw []byte) (string, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeImageToBase64 encodes a decoded image as PNG and base64-encodes the result
func EncodeImageToBase64(img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURL wraps PNG-encoded bytes for OpenAI-style image_url payloads
func DataURL(b64 string) string {
	return "data:image/png;base64," + b64
}

// Downscale shrinks raw image bytes to fit within maxW x maxH.
//
// The aspect ratio is kept and images are never enlarged. Images already
// within bounds, or bytes that fail to decode or re-encode, are returned
// unchanged. A non-positive bound leaves that axis unconstrained.
func Downscale(raw []byte, maxW, maxH int) []byte {
	img, err := DecodeImage(raw)
	if err != nil {
		return raw
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return raw
	}

	scale := 1.0
	if maxW > 0 {
		scale = min(scale, float64(maxW)/float64(width))
	}
	if maxH > 0 {
		scale = min(scale, float64(maxH)/float64(height))
	}
	if scale >= 1.0 {
		return raw
	}

	newW := fitAxis(width, scale, maxW)
	newH := fitAxis(height, scale, maxH)
	// area-averaging filter
	resized := imaging.Resize(img, newW, newH, imaging.Box)

	data, err := encodePNG(resized)
	if err != nil {
		return raw
	}
	return data
}

func fitAxis(size int, scale float64, bound int) int {
	n := max(int(math.Round(float64(size)*scale)), 1)
	if bound > 0 {
		n = min(n, bound)
	}
	return n
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrCodec)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

// ImageFormat names the encoding of raw ("png", "jpeg", "gif", "webp"), or "" when unknown
func ImageFormat(raw []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return format
}
