package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
)

// Common store errors used across all task store implementations.
var (
	// ErrTaskNotFound is returned when the requested task does not exist,
	// or is not visible to the requesting user.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotQueued is returned by Claim when the task is no longer in
	// the queued state, typically because another worker claimed it first.
	ErrTaskNotQueued = errors.New("task is not queued")

	// ErrTaskTerminal is returned when a mutation targets a task that has
	// already reached a terminal state (completed, failed, or cancelled).
	ErrTaskTerminal = errors.New("task is already in a terminal state")
)

// Store persists task records and enforces the task state machine. It is
// the single source of truth for task state: the runner, the API, and the
// reaper all communicate through it rather than sharing task objects.
//
// Implementations must be safe for concurrent use, must serialize
// mutations per task ID, and must never expose a half-written record to
// readers.
type Store interface {
	// Create persists a new queued task.
	Create(ctx context.Context, t *domain.Task) error

	// Get retrieves a task by ID regardless of owner.
	// Returns ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetForUser retrieves a task by ID scoped to its owner. A task that
	// exists but belongs to another user yields ErrTaskNotFound so that
	// foreign task IDs are indistinguishable from unknown ones.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error)

	// Claim atomically moves a queued task to processing and returns the
	// claimed record. At most one concurrent caller succeeds; the rest
	// receive ErrTaskNotQueued and must not touch the task.
	Claim(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateProgress records a progress checkpoint and stage message for a
	// processing task. Progress must not decrease. Returns ErrTaskTerminal
	// if the task has meanwhile reached a terminal state (including a
	// cooperative cancellation).
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) error

	// Complete moves a processing task to completed and attaches the
	// result payload. Progress is forced to 100 in the same mutation.
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	// Fail moves a processing task to failed and records the stage error.
	// No partial result is retained.
	Fail(ctx context.Context, id uuid.UUID, taskErr domain.TaskError) error

	// RequestCancel moves a queued or processing task to cancelled.
	// A queued task is cancelled immediately and will never run; a
	// processing task keeps running until its worker observes the new
	// status at the next stage boundary. Returns ErrTaskTerminal if the
	// task already finished.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// ListQueued returns the IDs of all queued tasks in FIFO order by
	// creation time, ties broken by task ID.
	ListQueued(ctx context.Context) ([]uuid.UUID, error)

	// Reap deletes every task whose ExpiresAt precedes now, regardless of
	// status, and reports how many were removed.
	Reap(ctx context.Context, now time.Time) (int, error)
}

// StoreError wraps task store failures with operation context.
type StoreError struct {
	Operation string // The operation that failed (e.g., "claim", "complete")
	Message   string // Human-readable description
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task store %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task store %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}
