package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/events"
)

// DispatchPayload is the event payload carried by task request events.
type DispatchPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// DispatchHandler consumes task request events and hands the referenced
// task to the runner's dispatch queue.
type DispatchHandler struct {
	runner *Runner
	logger *slog.Logger
}

// Ensure DispatchHandler implements the events.EventHandler interface
var _ events.EventHandler = (*DispatchHandler)(nil)

// NewDispatchHandler creates a DispatchHandler over the given runner.
func NewDispatchHandler(runner *Runner, logger *slog.Logger) (*DispatchHandler, error) {
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &DispatchHandler{
		runner: runner,
		logger: logger.With("component", "dispatch_handler"),
	}, nil
}

// HandleEvent enqueues the task named by the event. A full dispatch queue
// is tolerated: the task record stays queued and the runner's sweeper
// picks it up on its next pass.
func (h *DispatchHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	var payload DispatchPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal event payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	if payload.TaskID == uuid.Nil {
		return errors.New("event payload has no task ID")
	}

	if err := h.runner.Enqueue(payload.TaskID); err != nil {
		if errors.Is(err, ErrQueueFull) {
			h.logger.Warn("dispatch queue full, task left for sweeper",
				"task_id", payload.TaskID,
				"event_id", event.ID)
			return nil
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	h.logger.Debug("task dispatched", "task_id", payload.TaskID, "event_id", event.ID)
	return nil
}
