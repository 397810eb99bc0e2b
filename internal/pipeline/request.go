package pipeline

// Request field defaults, applied before normalization.
const (
	DefaultMode              = "t2v"
	DefaultResolution        = "480p"
	DefaultNumFrames         = 49
	DefaultGuidanceScale     = 5.0
	DefaultNumInferenceSteps = 30
)

// JobRequest is the raw, untrusted job input. Optional numeric fields are
// pointers so that an omitted field can be told apart from an explicit
// zero; no invariants hold until the request passes through the Normalizer.
type JobRequest struct {
	Mode              string   `json:"mode"`
	Prompt            string   `json:"prompt"`
	NegativePrompt    string   `json:"negative_prompt"`
	Image             string   `json:"image,omitempty"`
	NumFrames         *int     `json:"num_frames,omitempty"`
	Resolution        string   `json:"resolution"`
	GuidanceScale     *float64 `json:"guidance_scale,omitempty"`
	NumInferenceSteps *int     `json:"num_inference_steps,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
}

// withDefaults returns a copy of the request with documented defaults
// filled in for every omitted field except the seed, whose default is
// clock-derived and belongs to the Normalizer.
func (r JobRequest) withDefaults() JobRequest {
	if r.Mode == "" {
		r.Mode = DefaultMode
	}
	if r.Resolution == "" {
		r.Resolution = DefaultResolution
	}
	if r.NumFrames == nil {
		n := DefaultNumFrames
		r.NumFrames = &n
	}
	if r.GuidanceScale == nil {
		g := DefaultGuidanceScale
		r.GuidanceScale = &g
	}
	if r.NumInferenceSteps == nil {
		s := DefaultNumInferenceSteps
		r.NumInferenceSteps = &s
	}
	return r
}
