// Package engine provides the HTTP client for the Wan 2.2 inference
// sidecar. The sidecar owns model weights and device placement; this
// client only moves canonical parameters in and raw frames out.
package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wanvideo/generation-be/internal/pipeline"
)

// Config holds engine client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds a single synthesis round trip. Generation runs for
	// seconds to minutes, so this is much larger than a typical HTTP
	// client timeout.
	Timeout time.Duration
}

// Client talks to one inference sidecar instance. It is created once at
// process start and shared by all jobs; the dispatcher serializes
// invocations.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an engine client.
func NewClient(config *Config, logger *slog.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// synthesisRequest is the wire form of one generation call.
type synthesisRequest struct {
	Mode              string  `json:"mode"`
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Image             string  `json:"image,omitempty"` // base64 PNG, i2v only
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumFrames         int     `json:"num_frames"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Seed              uint32  `json:"seed"`
}

// synthesisResponse carries the generated frames as base64 raw RGB24,
// one entry per frame, each width*height*3 bytes.
type synthesisResponse struct {
	Frames []string `json:"frames,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// SynthesizeFromText generates a frame sequence from a text prompt.
func (c *Client) SynthesizeFromText(ctx context.Context, params *pipeline.GenerationParameters) (pipeline.FrameSequence, error) {
	return c.synthesize(ctx, requestFromParams(params))
}

// SynthesizeFromImage generates a frame sequence conditioned on a source
// image already resized to the target geometry.
func (c *Client) SynthesizeFromImage(ctx context.Context, params *pipeline.GenerationParameters, img image.Image) (pipeline.FrameSequence, error) {
	req := requestFromParams(params)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode source image: %w", err)
	}
	req.Image = base64.StdEncoding.EncodeToString(buf.Bytes())

	return c.synthesize(ctx, req)
}

func requestFromParams(params *pipeline.GenerationParameters) *synthesisRequest {
	return &synthesisRequest{
		Mode:              string(params.Mode),
		Prompt:            params.Prompt,
		NegativePrompt:    params.NegativePrompt,
		Width:             params.Width,
		Height:            params.Height,
		NumFrames:         params.NumFrames,
		GuidanceScale:     params.GuidanceScale,
		NumInferenceSteps: params.NumInferenceSteps,
		Seed:              params.Seed,
	}
}

// synthesize performs one blocking generation round trip.
func (c *Client) synthesize(ctx context.Context, req *synthesisRequest) (pipeline.FrameSequence, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := c.config.BaseURL + "/synthesize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("Invoking engine",
		slog.String("mode", req.Mode),
		slog.Int("num_frames", req.NumFrames),
		slog.Int("width", req.Width),
		slog.Int("height", req.Height),
	)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	var out synthesisResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("failed to parse engine response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("engine failure: %s", out.Error)
	}
	if len(out.Frames) == 0 {
		return nil, fmt.Errorf("engine returned no frames")
	}

	frames, err := decodeFrames(out.Frames, req.Width, req.Height)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Engine invocation complete",
		slog.Int("frames", len(frames)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return frames, nil
}

// decodeFrames turns base64 RGB24 payloads into raster frames.
func decodeFrames(encoded []string, width, height int) (pipeline.FrameSequence, error) {
	frames := make(pipeline.FrameSequence, 0, len(encoded))
	for i, e := range encoded {
		raw, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("frame %d: invalid base64: %w", i, err)
		}
		if len(raw) != width*height*3 {
			return nil, fmt.Errorf("frame %d: expected %d bytes of RGB data, got %d", i, width*height*3, len(raw))
		}
		frames = append(frames, frameFromRGB24(raw, width, height))
	}
	return frames, nil
}

// frameFromRGB24 expands packed RGB bytes into an opaque NRGBA image.
func frameFromRGB24(raw []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = raw[i*3+0]
		img.Pix[i*4+1] = raw[i*3+1]
		img.Pix[i*4+2] = raw[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}
