package screengeometry

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/screen-geometry/internal/config"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
)

// createTestScreenshot creates a desktop-like image with one bright window
func createTestScreenshot(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{40, 60, 90, 255}
			if x > width/4 && x < 3*width/4 && y > height/4 && y < 3*height/4 {
				c = color.RGBA{250, 250, 250, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodedSize(t *testing.T, b64 string) (int, int) {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestForModel(t *testing.T) {
	for _, p := range config.BuiltinProfiles() {
		t.Run(p.Name, func(t *testing.T) {
			n, err := ForModel(p.Name)
			require.NoError(t, err)
			assert.Equal(t, p.Format, n.Format().String())
			assert.Equal(t, p.Budget, n.Budget())
		})
	}

	_, err := ForModel("gpt-vision")
	assert.ErrorIs(t, err, config.ErrUnknownProfile)
}

func TestNewValidates(t *testing.T) {
	_, err := New(coords.Format(0), geometry.DefaultTokenBudget())
	assert.ErrorIs(t, err, coords.ErrUnknownFormat)

	_, err = New(coords.Rel, geometry.TokenBudget{})
	assert.ErrorIs(t, err, geometry.ErrInvalidArgument)
}

func TestPrepareAbsResized(t *testing.T) {
	n, err := ForModel("qwen2.5-vl")
	require.NoError(t, err)

	shot, err := n.Prepare(createTestScreenshot(t, 400, 300))
	require.NoError(t, err)

	assert.Equal(t, geometry.ImageElement{
		Width: 400, Height: 300, ResizedWidth: 392, ResizedHeight: 308, SeqLen: 392*308/784 + 2,
	}, shot.Element)
	w, h := decodedSize(t, shot.Base64)
	assert.Equal(t, 392, w)
	assert.Equal(t, 308, h)
	assert.NotZero(t, shot.Hash)

	pt, err := n.ToScreen(coords.Point{196, 154}, shot.Element)
	require.NoError(t, err)
	assert.Equal(t, coords.Point{200, 150}, pt)

	back, err := n.FromScreen(pt, shot.Element)
	require.NoError(t, err)
	assert.Equal(t, coords.Point{196, 154}, back)
}

func TestPrepareRelativeFormatSendsOriginal(t *testing.T) {
	raw := createTestScreenshot(t, 400, 300)
	n, err := ForModel("qwen2-vl")
	require.NoError(t, err)

	shot, err := n.Prepare(raw)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), shot.Base64)

	box, err := n.BoxToScreen(coords.BBox{0, 0, 999, 999}, shot.Element)
	require.NoError(t, err)
	assert.Equal(t, coords.BBox{0, 0, 400, 300}, box)

	pt, err := n.ToScreen(coords.Point{1200, -3}, shot.Element)
	require.NoError(t, err)
	assert.Equal(t, coords.Point{399, 0}, pt)
}

func TestPrepareErrors(t *testing.T) {
	n, err := ForModel("molmo")
	require.NoError(t, err)

	_, err = n.Prepare([]byte("not an image"))
	assert.Error(t, err)

	_, err = n.Prepare(createTestScreenshot(t, 1, 300))
	assert.ErrorIs(t, err, geometry.ErrInvalidDimensions)
}

func TestElement(t *testing.T) {
	n, err := New(coords.Rel, geometry.DefaultTokenBudget())
	require.NoError(t, err)

	el, err := n.Element(1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, 1932, el.ResizedWidth)
	assert.Equal(t, 1092, el.ResizedHeight)
	assert.Equal(t, 2693, el.SeqLen)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
