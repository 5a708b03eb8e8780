package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/path-ml/path-backend/models"
)

// Publisher appends job submission events to a Redis stream.
//
// Delivery is at-least-once: a failed XAdd may still have appended the
// entry (the error can come from the acknowledgment path), and the
// requeue sweep may append the same job id again. Consumers must treat
// duplicate ids as no-ops.
type Publisher struct {
	client redis.UniversalClient
	stream string
}

// NewPublisher creates a publisher writing to the given stream.
func NewPublisher(client redis.UniversalClient, stream string) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
	}
}

// Publish appends one event to the stream. Exactly one append attempt
// is made per call; retries belong to the requeue sweep.
func (p *Publisher) Publish(ctx context.Context, event *models.JobSubmissionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"jobId":   event.JobID,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}
