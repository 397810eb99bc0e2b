package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Normalizer validates and coerces raw job requests into canonical
// GenerationParameters. It is a pure function over its input except for
// the default seed, which is derived from the injected clock when the
// caller omits one.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer. A nil clock falls back to time.Now.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize applies defaults and validates every field of req, returning
// the engine-ready parameter set or a typed validation error. All
// validation happens here, before any engine resource is consumed.
func (n *Normalizer) Normalize(req JobRequest) (*GenerationParameters, error) {
	req = req.withDefaults()

	mode := Mode(strings.ToLower(req.Mode))
	if mode != ModeTextToVideo && mode != ModeImageToVideo {
		return nil, newError(KindInvalidMode,
			fmt.Sprintf("Invalid mode: %s. Must be 't2v' or 'i2v'.", mode))
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, newError(KindMissingPrompt, "Prompt is required.")
	}

	// Image presence is checked before the resolution so an i2v request
	// that is wrong on both counts reports the missing image.
	if mode == ModeImageToVideo && req.Image == "" {
		return nil, newError(KindMissingImage, "Image is required for I2V mode.")
	}

	preset, ok := resolutionPresets[req.Resolution]
	if !ok {
		return nil, newError(KindInvalidResolution,
			fmt.Sprintf("Invalid resolution: %s. Must be '480p' or '720p'.", req.Resolution))
	}

	params := &GenerationParameters{
		Mode:              mode,
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		Resolution:        req.Resolution,
		Width:             preset.Width,
		Height:            preset.Height,
		NumFrames:         snapFrameCount(*req.NumFrames),
		GuidanceScale:     *req.GuidanceScale,
		NumInferenceSteps: *req.NumInferenceSteps,
		Seed:              n.seed(req.Seed),
	}

	if mode == ModeImageToVideo {
		img, err := DecodeImage(req.Image)
		if err != nil {
			return nil, err
		}
		params.SourceImage = img
	}

	return params, nil
}

// seed passes an explicit seed through unchanged so results stay
// reproducible, and otherwise derives one from the clock modulo 2^32.
func (n *Normalizer) seed(explicit *int64) uint32 {
	if explicit != nil {
		return uint32(*explicit)
	}
	return uint32(n.now().Unix())
}
