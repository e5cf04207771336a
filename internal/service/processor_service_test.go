package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/events"
	"github.com/phrazzld/recall-api/internal/service"
	"github.com/phrazzld/recall-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingEmitter captures emitted events and can simulate a dispatch
// failure.
type recordingEmitter struct {
	events []*events.TaskRequestEvent
	err    error
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	e.events = append(e.events, event)
	return e.err
}

func newService(t *testing.T, store task.Store, emitter events.EventEmitter) service.ProcessorService {
	t.Helper()

	svc, err := service.NewProcessorService(store, emitter, time.Hour, discardLogger())
	require.NoError(t, err)
	return svc
}

func TestProcessorServiceSubmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates queued task and announces it", func(t *testing.T) {
		t.Parallel()

		store := task.NewMemoryStore()
		emitter := &recordingEmitter{}
		svc := newService(t, store, emitter)
		userID := uuid.New()

		created, err := svc.Submit(ctx, userID, domain.TaskTypeTextProcessing,
			task.Payload{Text: "some content"})
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, created.Status)
		assert.Equal(t, userID, created.UserID)

		stored, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, stored.Status)

		require.Len(t, emitter.events, 1)
		assert.Equal(t, string(domain.TaskTypeTextProcessing), emitter.events[0].Type)

		var dispatch task.DispatchPayload
		require.NoError(t, emitter.events[0].UnmarshalPayload(&dispatch))
		assert.Equal(t, created.ID, dispatch.TaskID)
	})

	t.Run("normalizes generation options into the stored payload", func(t *testing.T) {
		t.Parallel()

		store := task.NewMemoryStore()
		svc := newService(t, store, &recordingEmitter{})

		created, err := svc.Submit(ctx, uuid.New(), domain.TaskTypeTextProcessing,
			task.Payload{Text: "content"})
		require.NoError(t, err)

		stored, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		payload, err := task.DecodePayload(stored.Payload)
		require.NoError(t, err)
		assert.Equal(t, "en", payload.Options.Language)
		assert.Equal(t, 10, payload.Options.MaxFlashcards)
	})

	t.Run("rejects invalid generation options", func(t *testing.T) {
		t.Parallel()

		svc := newService(t, task.NewMemoryStore(), &recordingEmitter{})

		_, err := svc.Submit(ctx, uuid.New(), domain.TaskTypeTextProcessing,
			task.Payload{Text: "content", Options: domain.GenerationOptions{MaxFlashcards: 999}})
		assert.ErrorIs(t, err, domain.ErrTooManyFlashcards)
	})

	t.Run("dispatch failure does not fail the submission", func(t *testing.T) {
		t.Parallel()

		store := task.NewMemoryStore()
		emitter := &recordingEmitter{err: errors.New("queue full")}
		svc := newService(t, store, emitter)

		created, err := svc.Submit(ctx, uuid.New(), domain.TaskTypeTextProcessing,
			task.Payload{Text: "content"})
		require.NoError(t, err)

		// The record is queued; the sweeper picks it up later.
		stored, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, stored.Status)
	})
}

func TestProcessorServiceGetTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := task.NewMemoryStore()
	svc := newService(t, store, &recordingEmitter{})
	owner := uuid.New()

	created, err := svc.Submit(ctx, owner, domain.TaskTypeTextProcessing, task.Payload{Text: "c"})
	require.NoError(t, err)

	got, err := svc.GetTask(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetTask(ctx, uuid.New(), created.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)

	_, err = svc.GetTask(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
}

func TestProcessorServiceCancelTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := task.NewMemoryStore()
	svc := newService(t, store, &recordingEmitter{})
	owner := uuid.New()

	t.Run("cancels a queued task", func(t *testing.T) {
		created, err := svc.Submit(ctx, owner, domain.TaskTypeTextProcessing, task.Payload{Text: "c"})
		require.NoError(t, err)

		require.NoError(t, svc.CancelTask(ctx, owner, created.ID))
		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCancelled, got.Status)
	})

	t.Run("terminal task reports conflict", func(t *testing.T) {
		created, err := svc.Submit(ctx, owner, domain.TaskTypeTextProcessing, task.Payload{Text: "c"})
		require.NoError(t, err)
		_, err = store.Claim(ctx, created.ID)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, created.ID, nil))

		assert.ErrorIs(t, svc.CancelTask(ctx, owner, created.ID), service.ErrTaskFinished)
	})

	t.Run("foreign task reads as not found", func(t *testing.T) {
		created, err := svc.Submit(ctx, owner, domain.TaskTypeTextProcessing, task.Payload{Text: "c"})
		require.NoError(t, err)

		err = svc.CancelTask(ctx, uuid.New(), created.ID)
		assert.ErrorIs(t, err, service.ErrTaskNotFound)

		// Still queued: the failed cancel touched nothing.
		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, got.Status)
	})
}
