package dto

import "encoding/json"

// SubmitJobRequest is the HTTP form of a generation request. Only the
// prompt is checked at the edge; authoritative validation happens in the
// worker's pipeline so the envelope semantics stay in one place.
type SubmitJobRequest struct {
	UserID            string   `json:"user_id"`
	Mode              string   `json:"mode"`
	Prompt            string   `json:"prompt" binding:"required"`
	NegativePrompt    string   `json:"negative_prompt"`
	Image             string   `json:"image"`
	NumFrames         *int     `json:"num_frames"`
	Resolution        string   `json:"resolution"`
	GuidanceScale     *float64 `json:"guidance_scale"`
	NumInferenceSteps *int     `json:"num_inference_steps"`
	Seed              *int64   `json:"seed"`
}

// SubmitJobResponse acknowledges an accepted job.
type SubmitJobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// JobDTO is the external representation of a job. Result carries the
// pipeline's success-or-error envelope verbatim once the job is terminal.
type JobDTO struct {
	JobID        string          `json:"job_id"`
	UserID       string          `json:"user_id,omitempty"`
	Mode         string          `json:"mode"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type ListJobsRequest struct {
	UserID   string `form:"user_id"`
	Mode     string `form:"mode"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}
