package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	payload := json.RawMessage(`{"text":"hello"}`)

	t.Run("creates queued task with fixed expiry", func(t *testing.T) {
		t.Parallel()

		task, err := domain.NewTask(userID, domain.TaskTypeTextProcessing, payload, 2*time.Hour)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, userID, task.UserID)
		assert.Equal(t, domain.TaskStatusQueued, task.Status)
		assert.Equal(t, 0, task.Progress)
		assert.Nil(t, task.Error)
		assert.Nil(t, task.Result)
		assert.Equal(t, task.CreatedAt.Add(2*time.Hour), task.ExpiresAt)
	})

	t.Run("zero retention falls back to default", func(t *testing.T) {
		t.Parallel()

		task, err := domain.NewTask(userID, domain.TaskTypeURLProcessing, payload, 0)
		require.NoError(t, err)
		assert.Equal(t, task.CreatedAt.Add(domain.DefaultTaskRetention), task.ExpiresAt)
	})

	t.Run("rejects empty user ID", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewTask(uuid.Nil, domain.TaskTypeTextProcessing, payload, time.Hour)
		assert.ErrorIs(t, err, domain.ErrEmptyTaskUserID)
	})

	t.Run("rejects unknown task type", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewTask(userID, domain.TaskType("bogus"), payload, time.Hour)
		assert.ErrorIs(t, err, domain.ErrInvalidTaskType)
	})
}

func TestTaskStatusCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    domain.TaskStatus
		to      domain.TaskStatus
		allowed bool
	}{
		{"queued to processing", domain.TaskStatusQueued, domain.TaskStatusProcessing, true},
		{"queued to cancelled", domain.TaskStatusQueued, domain.TaskStatusCancelled, true},
		{"queued to completed", domain.TaskStatusQueued, domain.TaskStatusCompleted, false},
		{"queued to failed", domain.TaskStatusQueued, domain.TaskStatusFailed, false},
		{"processing to completed", domain.TaskStatusProcessing, domain.TaskStatusCompleted, true},
		{"processing to failed", domain.TaskStatusProcessing, domain.TaskStatusFailed, true},
		{"processing to cancelled", domain.TaskStatusProcessing, domain.TaskStatusCancelled, true},
		{"processing to queued", domain.TaskStatusProcessing, domain.TaskStatusQueued, false},
		{"completed is terminal", domain.TaskStatusCompleted, domain.TaskStatusCancelled, false},
		{"failed is terminal", domain.TaskStatusFailed, domain.TaskStatusQueued, false},
		{"cancelled is terminal", domain.TaskStatusCancelled, domain.TaskStatusProcessing, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, domain.TaskStatusQueued.IsTerminal())
	assert.False(t, domain.TaskStatusProcessing.IsTerminal())
	assert.True(t, domain.TaskStatusCompleted.IsTerminal())
	assert.True(t, domain.TaskStatusFailed.IsTerminal())
	assert.True(t, domain.TaskStatusCancelled.IsTerminal())
}

func TestTaskClone(t *testing.T) {
	t.Parallel()

	task, err := domain.NewTask(uuid.New(), domain.TaskTypeTextProcessing,
		json.RawMessage(`{"text":"original"}`), time.Hour)
	require.NoError(t, err)
	task.Error = &domain.TaskError{Code: "GenerationError", Message: "boom"}

	clone := task.Clone()
	require.Equal(t, task, clone)

	// Mutating the clone must not reach the original.
	clone.Payload[2] = 'X'
	clone.Error.Message = "changed"
	clone.Status = domain.TaskStatusFailed

	assert.Equal(t, json.RawMessage(`{"text":"original"}`), task.Payload)
	assert.Equal(t, "boom", task.Error.Message)
	assert.Equal(t, domain.TaskStatusQueued, task.Status)
}
