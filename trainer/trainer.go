package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/path-ml/path-backend/models"
)

// Trainer runs the actual model training for one submission event and
// returns the training log output. The training internals are opaque to
// the worker; it only cares about success or failure.
type Trainer interface {
	Train(ctx context.Context, event *models.JobSubmissionEvent) (string, error)
}

// Command invokes an external training tool, passing the event as a
// JSON payload argument. This mirrors how the training runtime is
// launched in production (a CLI taking --payload <json>).
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// NewCommand creates a command trainer with a default 10 minute timeout.
func NewCommand(path string, args ...string) *Command {
	return &Command{
		Path:    path,
		Args:    args,
		Timeout: 10 * time.Minute,
	}
}

// Train runs the configured command to completion. Stdout is returned
// as the job log; stderr is folded into the error on failure.
func (t *Command) Train(ctx context.Context, event *models.JobSubmissionEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal training payload: %w", err)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, t.Args...), "--payload", string(payload))
	cmd := exec.CommandContext(ctx, t.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("training command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
