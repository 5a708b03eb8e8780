package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/path-ml/path-backend/config"
	"github.com/path-ml/path-backend/models"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// Repository handles database operations for job records
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateJob inserts a new job record. The caller owns id generation;
// the repository never overwrites an existing record.
func (r *Repository) CreateJob(ctx context.Context, job *config.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}
	return nil
}

// GetJob retrieves a job record by ID
func (r *Repository) GetJob(ctx context.Context, id string) (*config.Job, error) {
	var job config.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

// ListJobs lists all job records, newest first. Records sharing a
// created_at timestamp come back in reverse insertion order.
func (r *Repository) ListJobs(ctx context.Context) ([]config.Job, error) {
	var jobs []config.Job
	err := r.db.WithContext(ctx).
		Order("created_at DESC, seq DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ListJobsByStatus lists job records with the given status, newest first
func (r *Repository) ListJobsByStatus(ctx context.Context, status string) ([]config.Job, error) {
	var jobs []config.Job
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC, seq DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs with status %s: %w", status, err)
	}
	return jobs, nil
}

// ListStaleQueued lists queued records created before the cutoff. These
// are candidates for event re-publication: a record that stays queued
// past the cutoff either has a lost submission event or a very slow
// worker, and re-publishing is harmless in both cases.
func (r *Repository) ListStaleQueued(ctx context.Context, cutoff time.Time) ([]config.Job, error) {
	var jobs []config.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusQueued, cutoff).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale queued jobs: %w", err)
	}
	return jobs, nil
}

// ClaimForTraining atomically transitions a queued record to training.
// The status predicate runs inside the UPDATE, so of any number of
// workers holding deliveries for the same id, exactly one claims it.
// Returns false when the record is absent or already left queued.
func (r *Repository) ClaimForTraining(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&config.Job{}).
		Where("id = ? AND status = ?", id, models.StatusQueued).
		Updates(map[string]interface{}{
			"status":     models.StatusTraining,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim job %s for training: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpdateJobStatus updates the status and log output of a job record.
// Terminal statuses also set completed_at. Only the worker side calls
// this; the submission path never transitions a record out of queued.
func (r *Repository) UpdateJobStatus(ctx context.Context, id, status, logs string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if logs != "" {
		updates["logs"] = logs
	}
	if status == models.StatusCompleted || status == models.StatusFailed {
		updates["completed_at"] = time.Now().UTC()
	}

	result := r.db.WithContext(ctx).Model(&config.Job{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update job %s status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteJob removes a job record
func (r *Repository) DeleteJob(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&config.Job{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ToResponse converts a database Job to an API response
func ToResponse(job *config.Job) *models.JobResponse {
	return &models.JobResponse{
		ID:            job.ID,
		Name:          job.Name,
		ModelType:     job.ModelType,
		TrainingSteps: job.TrainingSteps,
		LearningRate:  job.LearningRate,
		Description:   job.Description,
		Status:        job.Status,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		CompletedAt:   job.CompletedAt,
		Logs:          job.Logs,
	}
}

// ToResponses converts a slice of database Jobs, preserving order
func ToResponses(jobs []config.Job) []*models.JobResponse {
	responses := make([]*models.JobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, ToResponse(&jobs[i]))
	}
	return responses
}
