package pipeline

import "image"

// Mode selects which synthesis capability a job invokes.
type Mode string

const (
	ModeTextToVideo  Mode = "t2v"
	ModeImageToVideo Mode = "i2v"
)

// Resolution is a fixed output geometry. Width and height are never
// independently supplied; they always come from a named preset.
type Resolution struct {
	Width  int
	Height int
}

// resolutionPresets maps the recognized preset keys to their geometry.
var resolutionPresets = map[string]Resolution{
	"480p": {Width: 848, Height: 480},
	"720p": {Width: 1280, Height: 720},
}

// validFrameCounts is the closed, ascending set of frame counts the engine
// accepts (4k+1 for the Wan architecture).
var validFrameCounts = []int{17, 21, 25, 29, 33, 37, 41, 45, 49, 53, 57, 61, 65, 69, 73, 77, 81}

// snapFrameCount returns the member of validFrameCounts nearest to n.
// On an exact tie the smaller candidate wins; a caller asking for 19
// frames gets 17, not 21.
func snapFrameCount(n int) int {
	best := validFrameCounts[0]
	bestDist := abs(n - best)
	for _, v := range validFrameCounts[1:] {
		if d := abs(n - v); d < bestDist {
			best = v
			bestDist = d
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// GenerationParameters is the canonical, validated parameter set consumed
// by the engine. Instances are produced only by Normalizer.Normalize and
// consumed exactly once by the dispatcher.
type GenerationParameters struct {
	Mode              Mode
	Prompt            string
	NegativePrompt    string
	Resolution        string // preset key, echoed back in the response
	Width             int
	Height            int
	NumFrames         int
	GuidanceScale     float64
	NumInferenceSteps int
	Seed              uint32

	// SourceImage is set only for i2v jobs. It is owned exclusively by
	// this parameter set and is resized to Width x Height by the
	// dispatcher before the engine sees it.
	SourceImage image.Image
}
