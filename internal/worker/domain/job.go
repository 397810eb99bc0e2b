package domain

// Job is a generation job row as the worker sees it. Payload holds the
// raw JSON job request exactly as the API accepted it.
type Job struct {
	JobID          string
	Payload        string
	Status         string
	WorkerID       string
	RetryCount     int
	MaxRetries     int
	TimeoutSeconds int
}

// JobMessage is the queue message that points the worker at a job row.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
