package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	textCalls  int
	imageCalls int
	lastParams *GenerationParameters
	lastImage  image.Image
	frames     FrameSequence
	err        error
}

func (e *fakeEngine) SynthesizeFromText(_ context.Context, params *GenerationParameters) (FrameSequence, error) {
	e.textCalls++
	e.lastParams = params
	return e.frames, e.err
}

func (e *fakeEngine) SynthesizeFromImage(_ context.Context, params *GenerationParameters, img image.Image) (FrameSequence, error) {
	e.imageCalls++
	e.lastParams = params
	e.lastImage = img
	return e.frames, e.err
}

type fakeEncoder struct {
	calls   int
	lastFPS int
	data    []byte
	err     error
}

func (e *fakeEncoder) EncodeFrames(_ context.Context, frames FrameSequence, fps int) ([]byte, error) {
	e.calls++
	e.lastFPS = fps
	return e.data, e.err
}

// steppingClock returns each instant in sequence, so the measured elapsed
// time is deterministic.
func steppingClock(instants ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := instants[i%len(instants)]
		i++
		return t
	}
}

func testFrames(n, w, h int) FrameSequence {
	frames := make(FrameSequence, n)
	for i := range frames {
		frames[i] = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	return frames
}

// pngDataURI builds a data-URI-wrapped PNG of the given size.
func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDispatcher_ProcessTextToVideo(t *testing.T) {
	engine := &fakeEngine{frames: testFrames(49, 8, 4)}
	encoder := &fakeEncoder{data: []byte("mp4-bytes")}
	base := time.Unix(1700000000, 0)
	d := NewDispatcher(&DispatcherConfig{
		Engine:  engine,
		Encoder: encoder,
		// The explicit seed leaves only the start and end timestamps.
		Now: steppingClock(base, base.Add(12345*time.Millisecond)),
	})

	resp := d.Process(context.Background(), JobRequest{
		Prompt:    "a cat surfing",
		NumFrames: intPtr(50),
		Seed:      int64Ptr(7),
	})

	require.False(t, resp.Failed())
	assert.Equal(t, "t2v", resp.Mode)
	assert.Equal(t, "480p", resp.Resolution)
	assert.Equal(t, 49, resp.NumFrames)
	require.NotNil(t, resp.Seed)
	assert.Equal(t, uint32(7), *resp.Seed)
	require.NotNil(t, resp.GenerationTimeSeconds)
	assert.Equal(t, 12.35, *resp.GenerationTimeSeconds)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp4-bytes")), resp.Video)
	assert.Empty(t, resp.Error)

	assert.Equal(t, 1, engine.textCalls)
	assert.Equal(t, 0, engine.imageCalls)
	require.NotNil(t, engine.lastParams)
	assert.Equal(t, 848, engine.lastParams.Width)
	assert.Equal(t, 480, engine.lastParams.Height)
	assert.Equal(t, 49, engine.lastParams.NumFrames)

	assert.Equal(t, 1, encoder.calls)
	assert.Equal(t, OutputFPS, encoder.lastFPS)
}

func TestDispatcher_ProcessImageToVideo(t *testing.T) {
	engine := &fakeEngine{frames: testFrames(17, 8, 4)}
	encoder := &fakeEncoder{data: []byte("mp4")}
	d := NewDispatcher(&DispatcherConfig{Engine: engine, Encoder: encoder})

	resp := d.Process(context.Background(), JobRequest{
		Mode:      "i2v",
		Prompt:    "make it move",
		Image:     pngDataURI(t, 64, 64),
		NumFrames: intPtr(17),
	})

	require.False(t, resp.Failed())
	assert.Equal(t, "i2v", resp.Mode)
	assert.Equal(t, 0, engine.textCalls)
	assert.Equal(t, 1, engine.imageCalls)

	// The source image reaches the engine already scaled to the preset.
	require.NotNil(t, engine.lastImage)
	bounds := engine.lastImage.Bounds()
	assert.Equal(t, 848, bounds.Dx())
	assert.Equal(t, 480, bounds.Dy())
}

func TestDispatcher_ValidationFailureShortCircuits(t *testing.T) {
	engine := &fakeEngine{frames: testFrames(17, 8, 4)}
	encoder := &fakeEncoder{data: []byte("mp4")}
	d := NewDispatcher(&DispatcherConfig{Engine: engine, Encoder: encoder})

	resp := d.Process(context.Background(), JobRequest{Mode: "i2v", Prompt: "x"})

	require.True(t, resp.Failed())
	assert.Equal(t, "Image is required for I2V mode.", resp.Error)
	assert.Equal(t, KindMissingImage, resp.FailureKind)
	assert.Empty(t, resp.Video)
	assert.Nil(t, resp.Seed)
	assert.Nil(t, resp.GenerationTimeSeconds)

	assert.Equal(t, 0, engine.textCalls)
	assert.Equal(t, 0, engine.imageCalls)
	assert.Equal(t, 0, encoder.calls)
}

func TestDispatcher_EngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("CUDA out of memory")}
	encoder := &fakeEncoder{}
	d := NewDispatcher(&DispatcherConfig{Engine: engine, Encoder: encoder})

	resp := d.Process(context.Background(), JobRequest{Prompt: "a cat"})

	require.True(t, resp.Failed())
	assert.Equal(t, "CUDA out of memory", resp.Error)
	assert.Equal(t, KindEngineFailure, resp.FailureKind)
	assert.Equal(t, 0, encoder.calls)
}

func TestDispatcher_EncoderFailure(t *testing.T) {
	engine := &fakeEngine{frames: testFrames(17, 8, 4)}
	encoder := &fakeEncoder{err: errors.New("ffmpeg exited with status 1")}
	d := NewDispatcher(&DispatcherConfig{Engine: engine, Encoder: encoder})

	resp := d.Process(context.Background(), JobRequest{Prompt: "a cat"})

	require.True(t, resp.Failed())
	assert.Equal(t, "ffmpeg exited with status 1", resp.Error)
	assert.Equal(t, KindEncodingFailure, resp.FailureKind)
	assert.Equal(t, 1, engine.textCalls)
}

func TestResizeImage(t *testing.T) {
	t.Run("matching geometry returned as is", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 848, 480))
		out := resizeImage(img, 848, 480)
		assert.Same(t, image.Image(img), out)
	})

	t.Run("mismatched geometry stretched", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
		out := resizeImage(img, 848, 480)
		assert.Equal(t, 848, out.Bounds().Dx())
		assert.Equal(t, 480, out.Bounds().Dy())
	})
}
