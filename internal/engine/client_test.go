package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanvideo/generation-be/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testParams() *pipeline.GenerationParameters {
	return &pipeline.GenerationParameters{
		Mode:              pipeline.ModeTextToVideo,
		Prompt:            "a cat surfing",
		NegativePrompt:    "blurry",
		Resolution:        "480p",
		Width:             4,
		Height:            2,
		NumFrames:         2,
		GuidanceScale:     5.0,
		NumInferenceSteps: 30,
		Seed:              42,
	}
}

// rgb24Frame builds a base64 RGB24 payload filled with one color.
func rgb24Frame(w, h int, r, g, b byte) string {
	raw := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		raw[i*3+0] = r
		raw[i*3+1] = g
		raw[i*3+2] = b
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, discardLogger())
}

func TestSynthesizeFromText(t *testing.T) {
	var gotPath string
	var gotReq map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"frames": []string{
				rgb24Frame(4, 2, 255, 0, 0),
				rgb24Frame(4, 2, 0, 255, 0),
			},
		})
	})

	frames, err := client.SynthesizeFromText(context.Background(), testParams())
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, "/synthesize", gotPath)
	assert.Equal(t, "t2v", gotReq["mode"])
	assert.Equal(t, "a cat surfing", gotReq["prompt"])
	assert.Equal(t, "blurry", gotReq["negative_prompt"])
	assert.Equal(t, float64(4), gotReq["width"])
	assert.Equal(t, float64(2), gotReq["height"])
	assert.Equal(t, float64(2), gotReq["num_frames"])
	assert.Equal(t, float64(42), gotReq["seed"])
	_, hasImage := gotReq["image"]
	assert.False(t, hasImage)

	first, ok := frames[0].(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, first.NRGBAAt(0, 0))
	assert.Equal(t, 4, first.Bounds().Dx())
	assert.Equal(t, 2, first.Bounds().Dy())
}

func TestSynthesizeFromImage(t *testing.T) {
	var gotImage string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotImage, _ = req["image"].(string)
		json.NewEncoder(w).Encode(map[string]any{
			"frames": []string{rgb24Frame(4, 2, 1, 2, 3)},
		})
	})

	params := testParams()
	params.Mode = pipeline.ModeImageToVideo
	source := image.NewNRGBA(image.Rect(0, 0, 4, 2))

	frames, err := client.SynthesizeFromImage(context.Background(), params, source)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	// The source image travels as base64 PNG.
	raw, err := base64.StdEncoding.DecodeString(gotImage)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(raw[:4]))
}

func TestSynthesize_EngineError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "CUDA out of memory"})
	})

	frames, err := client.SynthesizeFromText(context.Background(), testParams())
	require.Error(t, err)
	assert.Nil(t, frames)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestSynthesize_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := client.SynthesizeFromText(context.Background(), testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestSynthesize_NoFrames(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"frames": []string{}})
	})

	_, err := client.SynthesizeFromText(context.Background(), testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no frames")
}

func TestSynthesize_WrongFrameSize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 4x2 expected, 1x1 delivered.
		json.NewEncoder(w).Encode(map[string]any{
			"frames": []string{rgb24Frame(1, 1, 0, 0, 0)},
		})
	})

	_, err := client.SynthesizeFromText(context.Background(), testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 24 bytes")
}

func TestSynthesize_ConnectionRefused(t *testing.T) {
	client := NewClient(&Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, discardLogger())

	_, err := client.SynthesizeFromText(context.Background(), testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine request failed")
}
