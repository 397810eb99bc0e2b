package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

// OutputFPS is the fixed frame rate the engine's frame sequences are
// muxed at.
const OutputFPS = 16

// FrameSequence is the ordered raster output of one engine invocation.
// It is held only until encoding and discarded immediately afterwards.
type FrameSequence []image.Image

// Engine is the generation capability the dispatcher drives. The actual
// synthesis runs elsewhere on dedicated accelerator hardware; both calls
// block for the full duration of the generation.
type Engine interface {
	SynthesizeFromText(ctx context.Context, params *GenerationParameters) (FrameSequence, error)
	SynthesizeFromImage(ctx context.Context, params *GenerationParameters, img image.Image) (FrameSequence, error)
}

// VideoEncoder muxes a frame sequence into a video container and returns
// the raw container bytes. Implementations must release any scratch
// resources on every exit path.
type VideoEncoder interface {
	EncodeFrames(ctx context.Context, frames FrameSequence, fps int) ([]byte, error)
}

// DispatcherConfig holds the dispatcher's injected collaborators.
type DispatcherConfig struct {
	Engine  Engine
	Encoder VideoEncoder
	Logger  *slog.Logger
	// Now overrides the wall clock used for seeds and timing. Nil means
	// time.Now.
	Now func() time.Time
}

// Dispatcher sequences one job through validation, engine invocation and
// encoding, converting every failure into a structured error envelope.
// States are never revisited; the first failure short-circuits straight
// to the error response.
type Dispatcher struct {
	normalizer *Normalizer
	engine     Engine
	encoder    VideoEncoder
	logger     *slog.Logger
	now        func() time.Time

	// The engine instance is a process-wide singleton and the worker pool
	// runs jobs concurrently, so invocations are serialized here.
	engineMu sync.Mutex
}

// NewDispatcher creates a Dispatcher around an already initialized engine.
func NewDispatcher(cfg *DispatcherConfig) *Dispatcher {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		normalizer: NewNormalizer(now),
		engine:     cfg.Engine,
		encoder:    cfg.Encoder,
		logger:     logger,
		now:        now,
	}
}

// Process runs one job end to end and always returns an envelope, never
// a panic: Validating -> Dispatching -> Generating -> Encoding.
func (d *Dispatcher) Process(ctx context.Context, req JobRequest) JobResponse {
	// Validating
	params, err := d.normalizer.Normalize(req)
	if err != nil {
		d.logger.Warn("Job rejected during validation",
			slog.String("kind", string(KindOf(err))),
			slog.String("error", err.Error()),
		)
		return NewErrorResponse(err)
	}

	d.logger.Info("Job validated",
		slog.String("mode", string(params.Mode)),
		slog.String("resolution", params.Resolution),
		slog.Int("num_frames", params.NumFrames),
		slog.Uint64("seed", uint64(params.Seed)),
	)

	// Dispatching: for i2v the source image is brought to the target
	// geometry here; the engine never resizes.
	var source image.Image
	if params.Mode == ModeImageToVideo {
		source = resizeImage(params.SourceImage, params.Width, params.Height)
	}

	// Generating
	start := d.now()
	frames, err := d.invokeEngine(ctx, params, source)
	if err != nil {
		d.logger.Error("Engine invocation failed",
			slog.String("mode", string(params.Mode)),
			slog.String("error", err.Error()),
		)
		return NewErrorResponse(wrapError(KindEngineFailure, err.Error(), err))
	}

	// Encoding
	data, err := d.encoder.EncodeFrames(ctx, frames, OutputFPS)
	frames = nil // frames are not retained past muxing
	if err != nil {
		d.logger.Error("Video encoding failed",
			slog.String("error", err.Error()),
		)
		return NewErrorResponse(wrapError(KindEncodingFailure, err.Error(), err))
	}
	elapsed := d.now().Sub(start)

	video := EncodeVideo(data)

	d.logger.Info("Job completed",
		slog.String("mode", string(params.Mode)),
		slog.Int("num_frames", params.NumFrames),
		slog.Float64("generation_time_seconds", elapsed.Seconds()),
	)

	return NewSuccessResponse(video, params, elapsed)
}

// invokeEngine selects the capability for the job's mode and serializes
// access to the shared engine instance.
func (d *Dispatcher) invokeEngine(ctx context.Context, params *GenerationParameters, source image.Image) (FrameSequence, error) {
	d.engineMu.Lock()
	defer d.engineMu.Unlock()

	if params.Mode == ModeImageToVideo {
		return d.engine.SynthesizeFromImage(ctx, params, source)
	}
	return d.engine.SynthesizeFromText(ctx, params)
}

// resizeImage scales img to w x h. Preset geometries do not preserve
// arbitrary aspect ratios; the source is stretched to fit.
func resizeImage(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == w && bounds.Dy() == h {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, bounds, draw.Over, nil)
	return out
}
