package coordinator

import "fmt"

// The submission pipeline distinguishes four failure kinds so callers
// know what, if anything, was left behind:
//
//   - ValidationError:   no side effects, safe to retry as-is
//   - PersistenceError:  no side effects, safe to retry (new id)
//   - QueueError:        record persisted, delivery unconfirmed; do NOT
//     re-submit, the requeue sweep recovers the existing record
//   - StoreUnavailableError: store failure outside the submission
//     write path (queries and deletes), no data loss

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// PersistenceError reports a failed record write. Nothing durable
// exists for the attempted submission.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist job record: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// QueueError reports a failed event publish for a record that was
// already persisted. JobID identifies the record, which stays queued
// in the store until a re-publish picks it up.
type QueueError struct {
	JobID string
	Err   error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("job %s persisted but event publish unconfirmed: %v", e.JobID, e.Err)
}

func (e *QueueError) Unwrap() error { return e.Err }

// StoreUnavailableError reports a store failure on the query or delete
// path. Missing records are reported as repository.ErrNotFound, never
// wrapped here.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("job store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
