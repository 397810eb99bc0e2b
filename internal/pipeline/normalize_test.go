package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time {
		return time.Unix(unix, 0)
	}
}

func intPtr(n int) *int { return &n }

func int64Ptr(n int64) *int64 { return &n }

func floatPtr(f float64) *float64 { return &f }

func TestNormalize_Validation(t *testing.T) {
	tests := []struct {
		name     string
		req      JobRequest
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "unknown mode",
			req:      JobRequest{Mode: "v2v", Prompt: "a cat"},
			wantKind: KindInvalidMode,
			wantMsg:  "Invalid mode: v2v. Must be 't2v' or 'i2v'.",
		},
		{
			name:     "unknown mode reported lowercase",
			req:      JobRequest{Mode: "V2V", Prompt: "a cat"},
			wantKind: KindInvalidMode,
			wantMsg:  "Invalid mode: v2v. Must be 't2v' or 'i2v'.",
		},
		{
			name:     "empty prompt",
			req:      JobRequest{Mode: "t2v", Prompt: ""},
			wantKind: KindMissingPrompt,
			wantMsg:  "Prompt is required.",
		},
		{
			name:     "whitespace prompt",
			req:      JobRequest{Mode: "t2v", Prompt: "   "},
			wantKind: KindMissingPrompt,
			wantMsg:  "Prompt is required.",
		},
		{
			name:     "i2v without image",
			req:      JobRequest{Mode: "i2v", Prompt: "x"},
			wantKind: KindMissingImage,
			wantMsg:  "Image is required for I2V mode.",
		},
		{
			name:     "i2v missing image wins over bad resolution",
			req:      JobRequest{Mode: "i2v", Prompt: "x", Resolution: "1080p"},
			wantKind: KindMissingImage,
			wantMsg:  "Image is required for I2V mode.",
		},
		{
			name:     "i2v with malformed image",
			req:      JobRequest{Mode: "i2v", Prompt: "x", Image: "!!!not-base64!!!"},
			wantKind: KindInvalidImageEncoding,
			wantMsg:  "Image could not be decoded.",
		},
		{
			name:     "unknown resolution",
			req:      JobRequest{Mode: "t2v", Prompt: "a cat", Resolution: "1080p"},
			wantKind: KindInvalidResolution,
			wantMsg:  "Invalid resolution: 1080p. Must be '480p' or '720p'.",
		},
	}

	n := NewNormalizer(fixedClock(1700000000))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := n.Normalize(tt.req)

			require.Error(t, err)
			assert.Nil(t, params)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	n := NewNormalizer(fixedClock(1700000000))

	params, err := n.Normalize(JobRequest{Prompt: "a cat"})
	require.NoError(t, err)

	assert.Equal(t, ModeTextToVideo, params.Mode)
	assert.Equal(t, "480p", params.Resolution)
	assert.Equal(t, 848, params.Width)
	assert.Equal(t, 480, params.Height)
	assert.Equal(t, 49, params.NumFrames)
	assert.Equal(t, 5.0, params.GuidanceScale)
	assert.Equal(t, 30, params.NumInferenceSteps)
	assert.Equal(t, uint32(1700000000), params.Seed)
	assert.Nil(t, params.SourceImage)
}

func TestNormalize_ModeCaseInsensitive(t *testing.T) {
	n := NewNormalizer(nil)

	params, err := n.Normalize(JobRequest{Mode: "T2V", Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, ModeTextToVideo, params.Mode)
}

func TestNormalize_ResolutionPresets(t *testing.T) {
	tests := []struct {
		resolution string
		wantWidth  int
		wantHeight int
	}{
		{resolution: "480p", wantWidth: 848, wantHeight: 480},
		{resolution: "720p", wantWidth: 1280, wantHeight: 720},
	}

	n := NewNormalizer(nil)

	for _, tt := range tests {
		t.Run(tt.resolution, func(t *testing.T) {
			params, err := n.Normalize(JobRequest{Prompt: "a cat", Resolution: tt.resolution})
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, params.Width)
			assert.Equal(t, tt.wantHeight, params.Height)
			assert.Equal(t, tt.resolution, params.Resolution)
		})
	}
}

func TestSnapFrameCount(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "already valid", in: 49, want: 49},
		{name: "just above snaps down", in: 50, want: 49},
		{name: "just below snaps up", in: 48, want: 49},
		{name: "exact tie takes smaller", in: 19, want: 17},
		{name: "another tie takes smaller", in: 51, want: 49},
		{name: "below range clamps to minimum", in: 1, want: 17},
		{name: "above range clamps to maximum", in: 500, want: 81},
		{name: "negative clamps to minimum", in: -10, want: 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, snapFrameCount(tt.in))
		})
	}
}

func TestNormalize_FrameSnappingApplied(t *testing.T) {
	n := NewNormalizer(nil)

	params, err := n.Normalize(JobRequest{Prompt: "a cat", NumFrames: intPtr(50)})
	require.NoError(t, err)
	assert.Equal(t, 49, params.NumFrames)
}

func TestNormalize_Seed(t *testing.T) {
	t.Run("explicit seed passes through", func(t *testing.T) {
		n := NewNormalizer(fixedClock(1700000000))

		params, err := n.Normalize(JobRequest{Prompt: "a cat", Seed: int64Ptr(12345)})
		require.NoError(t, err)
		assert.Equal(t, uint32(12345), params.Seed)
	})

	t.Run("omitted seed derives from clock modulo 2^32", func(t *testing.T) {
		// A unix timestamp past 2^32 must wrap, not truncate arbitrarily.
		n := NewNormalizer(fixedClock(1 << 33))

		params, err := n.Normalize(JobRequest{Prompt: "a cat"})
		require.NoError(t, err)
		assert.Equal(t, uint32(0), params.Seed)
	})
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer(fixedClock(1700000000))
	req := JobRequest{
		Mode:              "t2v",
		Prompt:            "a cat",
		NegativePrompt:    "blurry",
		NumFrames:         intPtr(50),
		Resolution:        "720p",
		GuidanceScale:     floatPtr(7.5),
		NumInferenceSteps: intPtr(40),
		Seed:              int64Ptr(99),
	}

	first, err := n.Normalize(req)
	require.NoError(t, err)
	second, err := n.Normalize(req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize_PassthroughFields(t *testing.T) {
	n := NewNormalizer(nil)

	// guidance_scale and num_inference_steps are not range-checked.
	params, err := n.Normalize(JobRequest{
		Prompt:            "a cat",
		GuidanceScale:     floatPtr(-3.0),
		NumInferenceSteps: intPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, -3.0, params.GuidanceScale)
	assert.Equal(t, 0, params.NumInferenceSteps)
}
