package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandler captures every event it receives.
type recordingHandler struct {
	events []*events.TaskRequestEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestNewTaskRequestEvent(t *testing.T) {
	t.Parallel()

	type payload struct {
		TaskID uuid.UUID `json:"task_id"`
	}
	taskID := uuid.New()

	event, err := events.NewTaskRequestEvent("text_processing", payload{TaskID: taskID})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "text_processing", event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded payload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, taskID, decoded.TaskID)
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	t.Run("delivers to all handlers", func(t *testing.T) {
		t.Parallel()

		emitter := events.NewInMemoryEventEmitter(discardLogger())
		first := &recordingHandler{}
		second := &recordingHandler{}
		emitter.RegisterHandler(first)
		emitter.RegisterHandler(second)

		event, err := events.NewTaskRequestEvent("text_processing", map[string]string{})
		require.NoError(t, err)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Len(t, first.events, 1)
		assert.Len(t, second.events, 1)
	})

	t.Run("first error wins but later handlers still run", func(t *testing.T) {
		t.Parallel()

		emitter := events.NewInMemoryEventEmitter(discardLogger())
		boom := errors.New("dispatch failed")
		failing := &recordingHandler{err: boom}
		after := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(after)

		event, err := events.NewTaskRequestEvent("url_processing", map[string]string{})
		require.NoError(t, err)

		assert.ErrorIs(t, emitter.EmitEvent(context.Background(), event), boom)
		assert.Len(t, after.events, 1)
	})

	t.Run("no handlers is not an error", func(t *testing.T) {
		t.Parallel()

		emitter := events.NewInMemoryEventEmitter(discardLogger())
		event, err := events.NewTaskRequestEvent("export", map[string]string{})
		require.NoError(t, err)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})
}
