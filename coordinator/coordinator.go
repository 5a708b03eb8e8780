package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/path-ml/path-backend/config"
	"github.com/path-ml/path-backend/models"
	"github.com/path-ml/path-backend/repository"
)

// JobStore is the slice of the record store the submission path needs.
type JobStore interface {
	CreateJob(ctx context.Context, job *config.Job) error
	ListJobs(ctx context.Context) ([]config.Job, error)
	ListJobsByStatus(ctx context.Context, status string) ([]config.Job, error)
	GetJob(ctx context.Context, id string) (*config.Job, error)
	DeleteJob(ctx context.Context, id string) error
}

// EventPublisher hands a submission event to the work queue. Delivery
// is at-least-once: a returned error does not guarantee the event was
// never delivered.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.JobSubmissionEvent) error
}

// Coordinator orchestrates job submission: validate the request,
// persist the record with status queued, then publish the submission
// event. The write always completes before the publish begins, so no
// event ever refers to a job that is not durably recorded.
type Coordinator struct {
	store     JobStore
	publisher EventPublisher
}

// New creates a coordinator with explicit collaborators so the failure
// handling can be exercised against fake store and queue implementations.
func New(store JobStore, publisher EventPublisher) *Coordinator {
	return &Coordinator{
		store:     store,
		publisher: publisher,
	}
}

// Submit runs the submission pipeline and returns the created record.
//
// On a publish failure the persisted record is NOT rolled back: a
// compensating delete could itself fail and would discard a job the
// requeue sweep can still recover. The caller gets a QueueError
// carrying the job id instead. Submission is not idempotent; two calls
// with identical fields create two distinct records.
func (c *Coordinator) Submit(ctx context.Context, req *models.CreateJobRequest) (*config.Job, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &config.Job{
		ID:            uuid.New().String(),
		Name:          req.Name,
		ModelType:     req.ModelType,
		TrainingSteps: *req.TrainingSteps,
		LearningRate:  req.LearningRate,
		Description:   req.Description,
		Status:        models.StatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, &PersistenceError{Err: err}
	}
	log.Printf("Created job %s (%s) in database", job.ID, job.Name)

	// The submission is logically committed once the write succeeds.
	// Caller cancellation must not abort the publish at this point, or
	// every disconnect would leave an orphan for the sweep to clean up.
	pubCtx := context.WithoutCancel(ctx)
	if err := c.publisher.Publish(pubCtx, models.NewSubmissionEvent(job)); err != nil {
		log.Printf("Publish failed for job %s, record left queued for requeue: %v", job.ID, err)
		return job, &QueueError{JobID: job.ID, Err: err}
	}
	log.Printf("Published submission event for job %s", job.ID)

	return job, nil
}

// ListJobs returns all job records, newest first.
func (c *Coordinator) ListJobs(ctx context.Context) ([]config.Job, error) {
	jobs, err := c.store.ListJobs(ctx)
	if err != nil {
		return nil, &StoreUnavailableError{Err: err}
	}
	return jobs, nil
}

// ListJobsByStatus returns job records with the given status, newest first.
func (c *Coordinator) ListJobsByStatus(ctx context.Context, status string) ([]config.Job, error) {
	jobs, err := c.store.ListJobsByStatus(ctx, status)
	if err != nil {
		return nil, &StoreUnavailableError{Err: err}
	}
	return jobs, nil
}

// GetJob returns a single job record by id. A missing record comes
// back as repository.ErrNotFound; any other store failure is wrapped
// like the listing methods wrap theirs.
func (c *Coordinator) GetJob(ctx context.Context, id string) (*config.Job, error) {
	job, err := c.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &StoreUnavailableError{Err: err}
	}
	return job, nil
}

// DeleteJob removes a job record by id.
func (c *Coordinator) DeleteJob(ctx context.Context, id string) error {
	if err := c.store.DeleteJob(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return &StoreUnavailableError{Err: err}
	}
	return nil
}

// validate checks the request before any side effect. A request that
// fails here never reaches the store or the queue.
func validate(req *models.CreateJobRequest) error {
	if req.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if req.ModelType == "" {
		return &ValidationError{Field: "model_type", Reason: "required"}
	}
	if req.TrainingSteps == nil {
		return &ValidationError{Field: "training_steps", Reason: "required"}
	}
	if *req.TrainingSteps < 0 {
		return &ValidationError{Field: "training_steps", Reason: "must be non-negative"}
	}
	// model_type is an open set: unknown values are forwarded to the
	// worker rather than rejected here.
	return nil
}
