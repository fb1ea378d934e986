package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/screen-geometry/pkg/types"
)

type rawRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string        `json:"role"`
		Content []ContentPart `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, status int, content any, seen *rawRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("model not loaded"))
			return
		}
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			ID:      "chatcmpl-1",
			Object:  "chat.completion",
			Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}},
		})
	}))
}

func TestLocate(t *testing.T) {
	var seen rawRequest
	srv := completionServer(t, http.StatusOK, `{"label":"close","bbox":[0.9,0.0,1.0,0.05]}`, &seen)
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)

	loc, err := c.Locate(context.Background(), "ui-tars", "find close", "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "close", loc.Label)
	assert.Equal(t, []float64{0.9, 0.0, 1.0, 0.05}, loc.BBox)

	assert.Equal(t, "ui-tars", seen.Model)
	assert.Zero(t, seen.Temperature)
	require.Len(t, seen.Messages, 1)
	parts := seen.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "find close", parts[0].Text)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", parts[1].ImageURL.URL)
}

func TestSimpleQueryPartsContent(t *testing.T) {
	content := []map[string]any{{"type": "text", "text": "a settings dialog"}}
	srv := completionServer(t, http.StatusOK, content, nil)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	out, err := c.SimpleQuery(context.Background(), "m", "describe", "")
	require.NoError(t, err)
	assert.Equal(t, "a settings dialog", out)
}

func TestErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := completionServer(t, http.StatusServiceUnavailable, nil, nil)
		defer srv.Close()

		c, _ := NewClient(srv.URL)
		_, err := c.Locate(context.Background(), "m", "p", "")
		assert.ErrorContains(t, err, "status 503")
	})

	t.Run("empty", func(t *testing.T) {
		srv := completionServer(t, http.StatusOK, "", nil)
		defer srv.Close()

		c, _ := NewClient(srv.URL)
		_, err := c.SimpleQuery(context.Background(), "m", "p", "")
		assert.ErrorContains(t, err, "empty response")
	})

	t.Run("no coordinates", func(t *testing.T) {
		srv := completionServer(t, http.StatusOK, `{"label":"none"}`, nil)
		defer srv.Close()

		c, _ := NewClient(srv.URL)
		_, err := c.Locate(context.Background(), "m", "p", "")
		assert.ErrorIs(t, err, types.ErrNoLocation)
	})
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, c.baseURL)
}
