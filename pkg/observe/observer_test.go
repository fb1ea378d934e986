package observe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/screen-geometry/internal/logger"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
)

// scriptedSource replays screenshots in order, repeating the last one
type scriptedSource struct {
	mu    sync.Mutex
	shots [][]byte
	err   error
}

func (s *scriptedSource) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	shot := s.shots[0]
	if len(s.shots) > 1 {
		s.shots = s.shots[1:]
	}
	return shot, nil
}

// window draws a bright window at (x, y) over a dark desktop
func window(t *testing.T, w, h, x, y int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			c := color.RGBA{30, 30, 40, 255}
			if px >= x && px < x+w/3 && py >= y && py < y+h/3 {
				c = color.RGBA{240, 240, 240, 255}
			}
			img.Set(px, py, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func flat(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestCaptureTracksChanges(t *testing.T) {
	left := window(t, 320, 240, 20, 80)
	right := window(t, 320, 240, 200, 80)
	src := &scriptedSource{shots: [][]byte{left, left, right}}
	opts := DefaultOptions()
	opts.HashThreshold = 0
	o := NewObserver(src, opts)
	ctx := logger.NopContext()

	first, err := o.Capture(ctx)
	require.NoError(t, err)
	assert.True(t, first.Changed, "the first capture always counts as changed")
	assert.NotEmpty(t, first.ID)
	assert.NotZero(t, first.Hash)

	second, err := o.Capture(ctx)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Hash, second.Hash)
	assert.NotEqual(t, first.ID, second.ID)

	third, err := o.Capture(ctx)
	require.NoError(t, err)
	assert.True(t, third.Changed)

	o.Reset()
	fourth, err := o.Capture(ctx)
	require.NoError(t, err)
	assert.True(t, fourth.Changed)
}

func TestCaptureUnavailableHashAlwaysChanged(t *testing.T) {
	src := &scriptedSource{shots: [][]byte{flat(t, 64, 64)}}
	o := NewObserver(src, DefaultOptions())

	for i := 0; i < 3; i++ {
		obs, err := o.Capture(logger.NopContext())
		require.NoError(t, err)
		assert.Zero(t, obs.Hash)
		assert.True(t, obs.Changed)
	}
}

func TestCaptureDownscalesAndSizes(t *testing.T) {
	src := &scriptedSource{shots: [][]byte{window(t, 2560, 1440, 100, 100)}}
	o := NewObserver(src, DefaultOptions())

	obs, err := o.Capture(logger.NopContext())
	require.NoError(t, err)

	assert.Equal(t, 1280, obs.Element.Width)
	assert.Equal(t, 720, obs.Element.Height)
	assert.Equal(t, geometry.ImageElement{Width: 2560, Height: 1440}, obs.Screen)
	assert.True(t, obs.Downscaled())
	assert.True(t, obs.Element.Sized())
	assert.Zero(t, obs.Element.ResizedWidth%geometry.DefaultTokenBudget().Factor())
	assert.NotEmpty(t, obs.Base64)
}

func TestCaptureKeepsScreenGeometry(t *testing.T) {
	src := &scriptedSource{shots: [][]byte{window(t, 1920, 1080, 100, 100)}}
	o := NewObserver(src, DefaultOptions())

	obs, err := o.Capture(logger.NopContext())
	require.NoError(t, err)

	assert.Equal(t, 1920, obs.Screen.Width)
	assert.Equal(t, 1080, obs.Screen.Height)
	assert.Equal(t, 1280, obs.Element.Width)
	assert.Equal(t, 720, obs.Element.Height)

	// a model answer converted against Element lands back on the real screen
	pt, err := coords.ConvertPoint(coords.Point{500, 500}, obs.Element, coords.QwenVL, coords.AbsOrigin)
	require.NoError(t, err)
	assert.Equal(t, coords.Point{640, 360}, pt)
	assert.Equal(t, coords.Point{960, 540}, obs.ScreenPoint(pt))
	assert.Equal(t, coords.Point{1919, 1079}, obs.ScreenPoint(coords.Point{1280, 720}))
}

func TestScreenPointWithoutDownscale(t *testing.T) {
	src := &scriptedSource{shots: [][]byte{window(t, 320, 240, 20, 20)}}
	obs, err := NewObserver(src, DefaultOptions()).Capture(logger.NopContext())
	require.NoError(t, err)

	assert.False(t, obs.Downscaled())
	assert.Equal(t, obs.Screen.Width, obs.Element.Width)
	assert.Equal(t, coords.Point{100, 50}, obs.ScreenPoint(coords.Point{100, 50}))
	assert.Equal(t, coords.Point{319, 0}, obs.ScreenPoint(coords.Point{400, -2}))
}

func TestCapturePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	opts := DefaultOptions()
	opts.Dir = dir
	o := NewObserver(&scriptedSource{shots: [][]byte{window(t, 64, 64, 0, 0)}}, opts)

	obs, err := o.Capture(logger.NopContext())
	require.NoError(t, err)

	require.NotEmpty(t, obs.Path)
	assert.Equal(t, dir, filepath.Dir(obs.Path))
	assert.Equal(t, ".png", filepath.Ext(obs.Path))
	data, err := os.ReadFile(obs.Path)
	require.NoError(t, err)
	assert.Len(t, data, obs.Bytes)
}

func TestCaptureErrors(t *testing.T) {
	boom := errors.New("display unavailable")
	_, err := NewObserver(&scriptedSource{err: boom}, DefaultOptions()).Capture(logger.NopContext())
	assert.ErrorIs(t, err, boom)

	_, err = NewObserver(&scriptedSource{shots: [][]byte{[]byte("nope")}}, DefaultOptions()).Capture(logger.NopContext())
	assert.Error(t, err)
}

func TestCaptureConcurrent(t *testing.T) {
	src := &scriptedSource{shots: [][]byte{window(t, 160, 120, 10, 10)}}
	o := NewObserver(src, DefaultOptions())

	var wg sync.WaitGroup
	changed := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs, err := o.Capture(context.Background())
			if assert.NoError(t, err) {
				changed <- obs.Changed
			}
		}()
	}
	wg.Wait()
	close(changed)

	count := 0
	for c := range changed {
		if c {
			count++
		}
	}
	assert.Equal(t, 1, count, "only one capture sees the screen as new")
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	shot := window(t, 32, 32, 0, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), shot, 0o644))

	got, err := NewFileSource(filepath.Join(dir, "a.png")).CaptureScreenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shot, got)

	got, err = NewFileSource(dir).CaptureScreenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shot, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileSource(dir).CaptureScreenshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
