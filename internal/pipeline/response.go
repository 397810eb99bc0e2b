package pipeline

import (
	"math"
	"time"
)

// JobResponse is the single envelope returned for every processed job.
// Exactly one of the two shapes is ever populated: the success fields
// together, or Error alone. Seed and GenerationTimeSeconds are pointers
// so that legitimate zero values survive serialization.
type JobResponse struct {
	Video                 string   `json:"video,omitempty"`
	Seed                  *uint32  `json:"seed,omitempty"`
	Mode                  string   `json:"mode,omitempty"`
	Resolution            string   `json:"resolution,omitempty"`
	NumFrames             int      `json:"num_frames,omitempty"`
	GenerationTimeSeconds *float64 `json:"generation_time_seconds,omitempty"`
	Error                 string   `json:"error,omitempty"`

	// FailureKind classifies the failure for in-process callers (retry
	// decisions and the like). It never crosses the wire.
	FailureKind Kind `json:"-"`
}

// Failed reports whether the response carries the error shape.
func (r JobResponse) Failed() bool {
	return r.Error != ""
}

// NewSuccessResponse assembles the success envelope for an encoded video.
// Elapsed is the wall-clock delta from just before engine invocation to
// just after encoding, rounded to two decimal places.
func NewSuccessResponse(video string, params *GenerationParameters, elapsed time.Duration) JobResponse {
	seed := params.Seed
	secs := math.Round(elapsed.Seconds()*100) / 100
	return JobResponse{
		Video:                 video,
		Seed:                  &seed,
		Mode:                  string(params.Mode),
		Resolution:            params.Resolution,
		NumFrames:             params.NumFrames,
		GenerationTimeSeconds: &secs,
	}
}

// NewErrorResponse assembles the error envelope from any terminal failure.
func NewErrorResponse(err error) JobResponse {
	return JobResponse{Error: err.Error(), FailureKind: KindOf(err)}
}
