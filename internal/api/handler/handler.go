package handler

import (
	"context"
	"log/slog"

	"github.com/wanvideo/generation-be/internal/api/model"
	"github.com/wanvideo/generation-be/internal/api/storage"
	"github.com/wanvideo/generation-be/shared/postgresql"
	"github.com/wanvideo/generation-be/shared/rabbitmq"
)

// jobStore is the storage surface the handlers need.
type jobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	CancelJob(ctx context.Context, jobID string) (bool, error)
}

// jobPublisher hands a job message to the queue.
type jobPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
	// MaxRetries is stamped onto every new job row.
	MaxRetries int
}

// JobHandler handles generation-job HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	storage    jobStore
	publisher  jobPublisher
	maxRetries int
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		storage:    storage.NewStorage(deps.DBClient),
		publisher:  deps.RabbitClient,
		maxRetries: deps.MaxRetries,
	}
}
