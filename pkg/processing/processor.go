package processing

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/screen-geometry/pkg/geometry"
)

// maxDownloadBytes bounds screenshots fetched over HTTP
const maxDownloadBytes = 64 << 20

// Processor handles screenshot I/O around the stateless codec helpers
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImageBytes reads raw screenshot bytes from a file path or an http(s) URL
func (p *Processor) LoadImageBytes(source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.loadBytesFromURL(source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func (p *Processor) loadBytesFromURL(imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "screen-geometry/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// DecodeImage decodes PNG, JPEG, GIF or WebP bytes
func DecodeImage(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// some encoders emit WebP variants x/image cannot read
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ElementFromBytes reads the raw dimensions of an encoded screenshot
func ElementFromBytes(data []byte) (*geometry.ImageElement, error) {
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return geometry.NewImageElement(cfg.Width, cfg.Height), nil
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return geometry.NewImageElement(b.Dx(), b.Dy()), nil
}

// PrepareForModel resizes img to the element's budgeted size and returns it base64 PNG encoded.
// An unsized element sends the image at its raw size.
func (p *Processor) PrepareForModel(img image.Image, el geometry.ImageElement) (string, error) {
	if el.Sized() {
		img = ResizeTo(img, el.ResizedWidth, el.ResizedHeight)
	}
	return EncodeImageToBase64(img)
}

// ResizeTo resizes img to exactly width x height, skipping the work when it already matches
func ResizeTo(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// SaveImage saves an image to a file with the format taken from the extension
func (p *Processor) SaveImage(img image.Image, path string, quality int, lossless bool) error {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}
