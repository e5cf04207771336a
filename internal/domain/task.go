package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a processing task
type TaskStatus string

// Possible task status values
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskType identifies the kind of work a task performs
type TaskType string

// Possible task type values
const (
	TaskTypeFileUpload          TaskType = "file_upload"
	TaskTypeURLProcessing       TaskType = "url_processing"
	TaskTypeTextProcessing      TaskType = "text_processing"
	TaskTypeFlashcardGeneration TaskType = "flashcard_generation"
	TaskTypeExport              TaskType = "export"
)

// DefaultTaskRetention is how long a task record is kept after creation
// before the reaper removes it, regardless of status.
const DefaultTaskRetention = 24 * time.Hour

// Common validation errors for Task
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID    = errors.New("task user ID cannot be empty")
	ErrInvalidTaskType    = errors.New("invalid task type")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrInvalidProgress    = errors.New("progress must be between 0 and 100")
	ErrProgressRegression = errors.New("progress cannot decrease")
	ErrInvalidTransition  = errors.New("invalid task status transition")
)

// TaskError describes why a task entered the failed state. Code is one of
// the stable stage failure codes (ExtractionError, GenerationError,
// PersistenceError) so clients can branch without parsing the message.
type TaskError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Task is a unit of asynchronous work tracked from submission to a
// terminal outcome. It is mutated only through the task store, which
// enforces the status transition graph.
type Task struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Type      TaskType        `json:"type"`
	Status    TaskStatus      `json:"status"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *TaskError      `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewTask creates a new queued Task owned by the given user. The payload
// carries the submitted input and generation options as opaque JSON.
// ExpiresAt is fixed at creation time and never extended.
func NewTask(userID uuid.UUID, taskType TaskType, payload json.RawMessage, retention time.Duration) (*Task, error) {
	if retention <= 0 {
		retention = DefaultTaskRetention
	}

	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      taskType,
		Status:    TaskStatusQueued,
		Progress:  0,
		Message:   "Task queued",
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(retention),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if !IsValidTaskType(t.Type) {
		return ErrInvalidTaskType
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.Progress < 0 || t.Progress > 100 {
		return ErrInvalidProgress
	}

	return nil
}

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a valid edge in
// the task state machine:
//
//	queued     -> processing | cancelled
//	processing -> completed | failed | cancelled
//
// Terminal states have no outgoing edges.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusQueued:
		return next == TaskStatusProcessing || next == TaskStatusCancelled
	case TaskStatusProcessing:
		return next == TaskStatusCompleted || next == TaskStatusFailed || next == TaskStatusCancelled
	default:
		return false
	}
}

// IsValidTaskStatus checks if the given status is a valid TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidTaskType checks if the given type is a valid TaskType.
func IsValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeFileUpload, TaskTypeURLProcessing, TaskTypeTextProcessing,
		TaskTypeFlashcardGeneration, TaskTypeExport:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of the task. Stores hand out clones so callers
// can never mutate shared records.
func (t *Task) Clone() *Task {
	clone := *t

	if t.Payload != nil {
		clone.Payload = append(json.RawMessage(nil), t.Payload...)
	}
	if t.Result != nil {
		clone.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.Error != nil {
		errCopy := *t.Error
		clone.Error = &errCopy
	}

	return &clone
}
