package trainer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/path-ml/path-backend/models"
)

func testEvent() *models.JobSubmissionEvent {
	return &models.JobSubmissionEvent{
		JobID:         "j1",
		JobName:       "run",
		ModelType:     "ppo",
		TrainingSteps: 1000,
	}
}

func TestCommandPassesPayload(t *testing.T) {
	tr := NewCommand("echo")

	out, err := tr.Train(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if !strings.Contains(out, `"jobId":"j1"`) {
		t.Errorf("payload not passed to command, got %q", out)
	}
}

func TestCommandFailureIncludesStderr(t *testing.T) {
	tr := NewCommand("sh", "-c", "echo boom >&2; exit 1")

	_, err := tr.Train(context.Background(), testEvent())
	if err == nil {
		t.Fatal("expected an error from a failing command")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("stderr should be folded into the error, got %v", err)
	}
}

func TestCommandMissingBinary(t *testing.T) {
	tr := NewCommand("definitely-not-a-real-binary")

	if _, err := tr.Train(context.Background(), testEvent()); err == nil {
		t.Fatal("expected an error for a missing binary")
	}
}

func TestCommandTimeout(t *testing.T) {
	tr := NewCommand("sh", "-c", "sleep 10")
	tr.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := tr.Train(context.Background(), testEvent())
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not take effect")
	}
}
