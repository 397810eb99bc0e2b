// Package media muxes frame sequences into transportable video
// containers with ffmpeg.
package media

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wanvideo/generation-be/internal/pipeline"
)

// CommandRunner executes an external command and returns its combined
// output. Swappable in tests.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config holds encoder configuration.
type Config struct {
	// FFmpegBinary is the muxer executable. Empty means "ffmpeg" on PATH.
	FFmpegBinary string
	// WorkDir is the parent for per-job scratch directories. Empty means
	// the system temp dir.
	WorkDir string
}

// FFmpegEncoder implements pipeline.VideoEncoder by writing frames to a
// scratch directory and muxing them with ffmpeg. The scratch directory is
// scoped to a single call and removed on every exit path.
type FFmpegEncoder struct {
	binary  string
	workDir string
	run     CommandRunner
	logger  *slog.Logger
}

// NewFFmpegEncoder creates an encoder. A nil runner uses exec.CommandContext.
func NewFFmpegEncoder(config *Config, logger *slog.Logger, run CommandRunner) *FFmpegEncoder {
	binary := config.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		}
	}
	return &FFmpegEncoder{
		binary:  binary,
		workDir: config.WorkDir,
		run:     run,
		logger:  logger,
	}
}

// EncodeFrames muxes frames into an H.264 MP4 at the given frame rate and
// returns the container bytes.
func (e *FFmpegEncoder) EncodeFrames(ctx context.Context, frames pipeline.FrameSequence, fps int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to encode")
	}

	scratch, err := os.MkdirTemp(e.workDir, "wan-encode-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	start := time.Now()
	for i, frame := range frames {
		path := filepath.Join(scratch, fmt.Sprintf("frame_%05d.png", i))
		if err := writeFrame(path, frame); err != nil {
			return nil, err
		}
	}

	output := filepath.Join(scratch, "output.mp4")
	args := []string{
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", filepath.Join(scratch, "frame_%05d.png"),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		output,
	}

	if out, err := e.run(ctx, e.binary, args...); err != nil {
		return nil, fmt.Errorf("ffmpeg mux: %w: %s", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("failed to read muxed video: %w", err)
	}

	e.logger.Info("Frame sequence muxed",
		slog.Int("frames", len(frames)),
		slog.Int("fps", fps),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return data, nil
}

func writeFrame(path string, frame image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
