package model

import (
	"database/sql"
	"time"
)

// Job is a generation job row as the API sees it. Payload is the raw JSON
// request; Result holds the response envelope once the worker finishes.
type Job struct {
	JobID        string         `db:"job_id"`
	UserID       string         `db:"user_id"`
	Mode         string         `db:"mode"`
	Payload      string         `db:"payload"`
	Status       string         `db:"status"`
	Result       sql.NullString `db:"result"`
	ErrorMessage sql.NullString `db:"error_message"`
	MaxRetries   int            `db:"max_retries"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
