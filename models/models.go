package models

import (
	"time"

	"github.com/path-ml/path-backend/config"
)

// Job statuses. The progression is one-directional:
// queued -> training -> completed|failed. The API only ever writes
// queued; everything after that is written by the worker.
const (
	StatusQueued    = "queued"
	StatusTraining  = "training"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CreateJobRequest represents the submission payload from the frontend.
// TrainingSteps and LearningRate are pointers so that a missing field
// can be told apart from an explicit zero; non-numeric input fails JSON
// binding before it reaches the coordinator.
type CreateJobRequest struct {
	Name          string   `json:"name" binding:"required"`
	ModelType     string   `json:"model_type" binding:"required"`
	TrainingSteps *int64   `json:"training_steps" binding:"required"`
	LearningRate  *float64 `json:"learning_rate"`
	Description   string   `json:"description"`
}

// JobResponse represents a job record sent back to the frontend.
type JobResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ModelType     string     `json:"model_type"`
	TrainingSteps int64      `json:"training_steps"`
	LearningRate  *float64   `json:"learning_rate,omitempty"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Logs          string     `json:"logs,omitempty"`
}

// JobSubmissionEvent is the queue message payload. It is a snapshot of
// the job fields taken at submission time, keyed by the same id as the
// stored record so the worker can correlate the two. Field names are
// the worker's wire contract; once published an event is never mutated.
type JobSubmissionEvent struct {
	JobID         string   `json:"jobId"`
	JobName       string   `json:"jobName"`
	ModelType     string   `json:"modelType"`
	TrainingSteps int64    `json:"trainingSteps"`
	LearningRate  *float64 `json:"learningRate,omitempty"`
	Description   string   `json:"description"`
}

// NewSubmissionEvent builds the queue event for a stored job record.
// Used on first publish and again by the requeue sweep, so both paths
// put identical payloads on the stream for a given id.
func NewSubmissionEvent(job *config.Job) *JobSubmissionEvent {
	return &JobSubmissionEvent{
		JobID:         job.ID,
		JobName:       job.Name,
		ModelType:     job.ModelType,
		TrainingSteps: job.TrainingSteps,
		LearningRate:  job.LearningRate,
		Description:   job.Description,
	}
}
