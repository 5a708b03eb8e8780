package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/path-ml/path-backend/config"
	"github.com/path-ml/path-backend/models"
)

// JobStore is the slice of the record store the sweep needs.
type JobStore interface {
	ListStaleQueued(ctx context.Context, cutoff time.Time) ([]config.Job, error)
}

// EventPublisher hands a submission event to the work queue.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.JobSubmissionEvent) error
}

// Requeuer periodically re-publishes submission events for records that
// stayed queued past a threshold. Such records exist when the original
// publish failed after the write committed; re-publishing under the
// SAME id recovers them without creating duplicates, since consumers
// skip ids that already left the queued state.
type Requeuer struct {
	store     JobStore
	publisher EventPublisher
	maxAge    time.Duration
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewRequeuer creates a requeue sweep over records queued longer than maxAge.
func NewRequeuer(store JobStore, publisher EventPublisher, maxAge, interval time.Duration) *Requeuer {
	return &Requeuer{
		store:     store,
		publisher: publisher,
		maxAge:    maxAge,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the sweep loop
func (m *Requeuer) Start() {
	m.wg.Add(1)
	go m.sweepLoop()
	log.Printf("Requeue sweep started - interval %s, threshold %s", m.interval, m.maxAge)
}

// Stop stops the sweep gracefully
func (m *Requeuer) Stop() {
	close(m.stopChan)
	m.wg.Wait()
	log.Println("Requeue sweep stopped")
}

func (m *Requeuer) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.Sweep(context.Background())
		}
	}
}

// Sweep re-publishes one event per stale queued record. A failed
// publish is left for the next pass; other records in the same pass
// are still attempted.
func (m *Requeuer) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-m.maxAge)
	jobs, err := m.store.ListStaleQueued(ctx, cutoff)
	if err != nil {
		log.Printf("Failed to list stale queued jobs: %v", err)
		return
	}

	if len(jobs) == 0 {
		return
	}
	log.Printf("Re-publishing %d stale queued jobs", len(jobs))

	for i := range jobs {
		job := &jobs[i]
		if err := m.publisher.Publish(ctx, models.NewSubmissionEvent(job)); err != nil {
			log.Printf("Failed to re-publish job %s: %v", job.ID, err)
			continue
		}
		log.Printf("Re-published job %s (queued since %s)", job.ID, job.CreatedAt.Format(time.RFC3339))
	}
}
