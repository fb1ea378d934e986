package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/screen-geometry/pkg/types"
)

func newChatServer(t *testing.T, reply string, seen *api.ChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(seen))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   seen.Model,
			Message: api.Message{Role: "assistant", Content: reply},
			Done:    true,
		})
	}))
}

func TestLocate(t *testing.T) {
	var seen api.ChatRequest
	srv := newChatServer(t, "```json\n{\"label\":\"ok\",\"point\":[500,250]}\n```", &seen)
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	loc, err := c.Locate(context.Background(), "qwen2.5vl", "find ok", img)
	require.NoError(t, err)
	assert.Equal(t, []float64{500, 250}, loc.Point)

	assert.Equal(t, "qwen2.5vl", seen.Model)
	require.Len(t, seen.Messages, 1)
	require.Len(t, seen.Messages[0].Images, 1)
	assert.Equal(t, "png-bytes", string(seen.Messages[0].Images[0]))
	assert.EqualValues(t, 0, seen.Options["temperature"])
}

func TestLocateWithoutCoordinates(t *testing.T) {
	var seen api.ChatRequest
	srv := newChatServer(t, "I don't see that button.", &seen)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Locate(context.Background(), "m", "find it", "")
	assert.ErrorIs(t, err, types.ErrNoLocation)
}

func TestSimpleQuery(t *testing.T) {
	var seen api.ChatRequest
	srv := newChatServer(t, "A terminal window.", &seen)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	out, err := c.SimpleQuery(context.Background(), "m", "describe", "")
	require.NoError(t, err)
	assert.Equal(t, "A terminal window.", out)
	assert.Empty(t, seen.Messages[0].Images)
}

func TestClientErrors(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)

	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "m", "p", "!!not-base64!!")
	assert.ErrorContains(t, err, "base64")
}
