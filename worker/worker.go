package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/path-ml/path-backend/config"
	"github.com/path-ml/path-backend/models"
	"github.com/path-ml/path-backend/queue"
	"github.com/path-ml/path-backend/repository"
	"github.com/path-ml/path-backend/trainer"
)

// Source abstracts the queue consumer side.
type Source interface {
	Read(ctx context.Context, block time.Duration) ([]queue.Message, error)
	Ack(ctx context.Context, id string) error
}

// JobStore is the slice of the record store the worker needs. The
// worker is the only component that moves a record out of queued.
type JobStore interface {
	ClaimForTraining(ctx context.Context, id string) (bool, error)
	GetJob(ctx context.Context, id string) (*config.Job, error)
	UpdateJobStatus(ctx context.Context, id, status, logs string) error
}

// Worker consumes submission events and drives each job through
// queued -> training -> completed|failed. Processing is idempotent per
// job id: the queued -> training transition is a single conditional
// store update, so of any number of workers holding deliveries for the
// same id, exactly one claims it and the rest ack and skip. That is
// what makes at-least-once delivery and the requeue sweep safe.
type Worker struct {
	source  Source
	store   JobStore
	trainer trainer.Trainer
}

// New creates a worker with explicit collaborators.
func New(source Source, store JobStore, t trainer.Trainer) *Worker {
	return &Worker{
		source:  source,
		store:   store,
		trainer: t,
	}
}

// Run consumes the stream until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Println("Worker started, polling for submission events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := w.source.Read(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Failed to read from queue: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range messages {
			w.process(ctx, msg)
		}
	}
}

// process handles one delivery, including its ack. A message is left
// unacked (and thus redelivered) only when the store could not be
// reached; every decided outcome acks.
func (w *Worker) process(ctx context.Context, msg queue.Message) {
	var event models.JobSubmissionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// Malformed payloads would redeliver forever; drop them.
		log.Printf("Dropping malformed message %s: %v", msg.ID, err)
		w.ack(ctx, msg.ID)
		return
	}

	log.Printf("Processing job %s (%s)", event.JobID, event.JobName)

	claimed, err := w.store.ClaimForTraining(ctx, event.JobID)
	if err != nil {
		log.Printf("Failed to claim job %s, leaving message for redelivery: %v", event.JobID, err)
		return
	}

	if !claimed && !w.shouldResume(ctx, msg, &event) {
		return
	}

	logs, trainErr := w.trainer.Train(ctx, &event)
	if trainErr != nil {
		log.Printf("Training failed for job %s: %v", event.JobID, trainErr)
		if err := w.store.UpdateJobStatus(ctx, event.JobID, models.StatusFailed, trainErr.Error()); err != nil {
			log.Printf("Failed to mark job %s failed: %v", event.JobID, err)
		}
	} else {
		log.Printf("Training completed for job %s", event.JobID)
		if err := w.store.UpdateJobStatus(ctx, event.JobID, models.StatusCompleted, logs); err != nil {
			log.Printf("Failed to mark job %s completed: %v", event.JobID, err)
		}
	}

	w.ack(ctx, msg.ID)
}

// shouldResume decides what to do with a delivery whose claim found the
// record no longer queued. A fresh delivery is a duplicate: ack and
// skip. A reclaimed delivery whose record is still training means the
// consumer that claimed it died mid-run, so the job is picked up again.
// Reports whether the caller should run training; when false the
// message has been acked or deliberately left for redelivery.
func (w *Worker) shouldResume(ctx context.Context, msg queue.Message, event *models.JobSubmissionEvent) bool {
	if !msg.Reclaimed {
		log.Printf("Job %s already claimed, skipping duplicate delivery", event.JobID)
		w.ack(ctx, msg.ID)
		return false
	}

	job, err := w.store.GetJob(ctx, event.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("Job %s no longer exists, dropping reclaimed message", event.JobID)
			w.ack(ctx, msg.ID)
			return false
		}
		log.Printf("Failed to load job %s, leaving message for redelivery: %v", event.JobID, err)
		return false
	}

	if job.Status != models.StatusTraining {
		log.Printf("Job %s already %s, skipping reclaimed delivery", job.ID, job.Status)
		w.ack(ctx, msg.ID)
		return false
	}

	log.Printf("Resuming job %s abandoned mid-training", event.JobID)
	return true
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.source.Ack(ctx, id); err != nil {
		log.Printf("Failed to ack message %s: %v", id, err)
	}
}
