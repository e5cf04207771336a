package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/events"
	"github.com/phrazzld/recall-api/internal/task"
)

// Common sentinel errors for ProcessorService
var (
	// ErrTaskNotFound indicates the task does not exist or is not visible
	// to the requesting user.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskFinished indicates an operation that requires a live task was
	// attempted against one that already reached a terminal state.
	ErrTaskFinished = errors.New("task already finished")
)

// ProcessorService is the application service behind the processor API:
// it creates task records, reads them back for their owners, and accepts
// cancellation requests. Execution itself is the runner's job; the
// service only announces new work through the event emitter.
type ProcessorService interface {
	// Submit validates and stores a new queued task, then announces it
	// for dispatch. It returns the created task record immediately; the
	// caller polls for progress.
	Submit(ctx context.Context, userID uuid.UUID, taskType domain.TaskType, payload task.Payload) (*domain.Task, error)

	// GetTask retrieves a task scoped to its owner.
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error)

	// CancelTask requests cancellation of an owned task. Queued tasks are
	// cancelled immediately; processing tasks are cancelled cooperatively
	// at the worker's next stage boundary. Returns ErrTaskFinished if the
	// task is already terminal.
	CancelTask(ctx context.Context, userID, taskID uuid.UUID) error
}

// ProcessorServiceError wraps errors from the processor service with context.
type ProcessorServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ProcessorServiceError.
func (e *ProcessorServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processor service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("processor service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ProcessorServiceError) Unwrap() error {
	return e.Err
}

// processorServiceImpl implements the ProcessorService interface
type processorServiceImpl struct {
	taskStore task.Store
	emitter   events.EventEmitter
	retention time.Duration
	logger    *slog.Logger
}

// NewProcessorService creates a new ProcessorService. The retention
// duration fixes each task's ExpiresAt at creation; zero selects the
// domain default.
func NewProcessorService(
	taskStore task.Store,
	emitter events.EventEmitter,
	retention time.Duration,
	logger *slog.Logger,
) (ProcessorService, error) {
	if taskStore == nil {
		return nil, &ProcessorServiceError{Operation: "create_service", Message: "taskStore cannot be nil"}
	}
	if emitter == nil {
		return nil, &ProcessorServiceError{Operation: "create_service", Message: "emitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &processorServiceImpl{
		taskStore: taskStore,
		emitter:   emitter,
		retention: retention,
		logger:    logger.With("component", "processor_service"),
	}, nil
}

// Submit validates and stores a new queued task, then announces it for dispatch.
func (s *processorServiceImpl) Submit(
	ctx context.Context,
	userID uuid.UUID,
	taskType domain.TaskType,
	payload task.Payload,
) (*domain.Task, error) {
	if err := payload.Options.Normalize(); err != nil {
		return nil, &ProcessorServiceError{Operation: "submit", Message: "invalid generation options", Err: err}
	}

	encoded, err := payload.Encode()
	if err != nil {
		return nil, &ProcessorServiceError{Operation: "submit", Message: "failed to encode payload", Err: err}
	}

	t, err := domain.NewTask(userID, taskType, encoded, s.retention)
	if err != nil {
		return nil, &ProcessorServiceError{Operation: "submit", Message: "failed to create task", Err: err}
	}

	if err := s.taskStore.Create(ctx, t); err != nil {
		s.logger.Error("failed to persist task",
			"error", err,
			"task_type", taskType,
			"user_id", userID)
		return nil, &ProcessorServiceError{Operation: "submit", Message: "failed to persist task", Err: err}
	}

	s.logger.Info("task created",
		"task_id", t.ID,
		"task_type", taskType,
		"user_id", userID)

	event, err := events.NewTaskRequestEvent(string(taskType), task.DispatchPayload{TaskID: t.ID})
	if err != nil {
		s.logger.Error("failed to create dispatch event", "error", err, "task_id", t.ID)
		return t, nil
	}

	// A dispatch failure is not a submission failure: the record is
	// already queued and the runner's sweeper will find it.
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Warn("failed to dispatch task, sweeper will retry",
			"error", err,
			"task_id", t.ID,
			"event_id", event.ID)
	}

	return t, nil
}

// GetTask retrieves a task scoped to its owner.
func (s *processorServiceImpl) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	t, err := s.taskStore.GetForUser(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, &ProcessorServiceError{Operation: "get_task", Message: "failed to retrieve task", Err: err}
	}
	return t, nil
}

// CancelTask requests cancellation of an owned task.
func (s *processorServiceImpl) CancelTask(ctx context.Context, userID, taskID uuid.UUID) error {
	// Ownership check first so foreign task IDs read as not found rather
	// than as a cancellation conflict.
	if _, err := s.taskStore.GetForUser(ctx, taskID, userID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return &ProcessorServiceError{Operation: "cancel_task", Message: "failed to retrieve task", Err: err}
	}

	if err := s.taskStore.RequestCancel(ctx, taskID); err != nil {
		switch {
		case errors.Is(err, task.ErrTaskTerminal):
			return ErrTaskFinished
		case errors.Is(err, task.ErrTaskNotFound):
			// Reaped between the ownership check and the cancel.
			return ErrTaskNotFound
		default:
			return &ProcessorServiceError{Operation: "cancel_task", Message: "failed to cancel task", Err: err}
		}
	}

	s.logger.Info("task cancellation requested", "task_id", taskID, "user_id", userID)
	return nil
}
