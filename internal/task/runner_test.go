package task_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/extraction"
	"github.com/phrazzld/recall-api/internal/store"
	"github.com/phrazzld/recall-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runnerEnv bundles a runner with its collaborators for tests.
type runnerEnv struct {
	store     *task.MemoryStore
	extractor *stubExtractor
	generator *stubGenerator
	sets      *store.MemorySetRepository
	runner    *task.Runner
}

func newRunnerEnv(t *testing.T) *runnerEnv {
	t.Helper()

	env := &runnerEnv{
		store:     task.NewMemoryStore(),
		extractor: &stubExtractor{content: &extraction.NormalizedContent{Text: "content"}},
		generator: &stubGenerator{cards: testCards(t, 2)},
		sets:      store.NewMemorySetRepository(),
	}

	pipeline, err := task.NewPipeline(env.extractor, env.generator, env.sets, discardLogger())
	require.NoError(t, err)

	runner, err := task.NewRunner(env.store, pipeline, task.RunnerConfig{
		WorkerCount:   2,
		QueueSize:     8,
		StageTimeout:  5 * time.Second,
		SweepInterval: 20 * time.Millisecond,
	}, discardLogger())
	require.NoError(t, err)
	env.runner = runner

	return env
}

func (env *runnerEnv) submit(t *testing.T, userID uuid.UUID) *domain.Task {
	t.Helper()

	payload := task.Payload{Text: "content"}
	encoded, err := payload.Encode()
	require.NoError(t, err)
	tk, err := domain.NewTask(userID, domain.TaskTypeTextProcessing, encoded, time.Hour)
	require.NoError(t, err)
	require.NoError(t, env.store.Create(context.Background(), tk))
	return tk
}

func waitForStatus(t *testing.T, s task.Store, id uuid.UUID, status domain.TaskStatus) *domain.Task {
	t.Helper()

	var got *domain.Task
	require.Eventually(t, func() bool {
		tk, err := s.Get(context.Background(), id)
		if err != nil {
			return false
		}
		got = tk
		return tk.Status == status
	}, 5*time.Second, 10*time.Millisecond, "task never reached status %s", status)
	return got
}

func TestRunnerProcessesTaskToCompletion(t *testing.T) {
	t.Parallel()

	env := newRunnerEnv(t)
	userID := uuid.New()
	tk := env.submit(t, userID)

	require.NoError(t, env.runner.Start())
	defer env.runner.Stop()
	require.NoError(t, env.runner.Enqueue(tk.ID))

	done := waitForStatus(t, env.store, tk.ID, domain.TaskStatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.Nil(t, done.Error)
	require.NotNil(t, done.Result)

	var result task.GenerationResult
	require.NoError(t, json.Unmarshal(done.Result, &result))
	assert.Equal(t, 2, result.CardCount)

	set, err := env.sets.GetSet(context.Background(), result.SetID, userID)
	require.NoError(t, err)
	assert.Len(t, set.Cards, 2)
}

func TestRunnerRecordsStageFailure(t *testing.T) {
	t.Parallel()

	env := newRunnerEnv(t)
	env.extractor.err = extraction.ErrFetchFailed
	tk := env.submit(t, uuid.New())

	require.NoError(t, env.runner.Start())
	defer env.runner.Stop()
	require.NoError(t, env.runner.Enqueue(tk.ID))

	failed := waitForStatus(t, env.store, tk.ID, domain.TaskStatusFailed)
	require.NotNil(t, failed.Error)
	assert.Equal(t, task.CodeExtractionError, failed.Error.Code)
	assert.Nil(t, failed.Result)
	assert.Equal(t, 0, env.generator.callCount())
}

func TestRunnerSkipsTaskCancelledWhileQueued(t *testing.T) {
	t.Parallel()

	env := newRunnerEnv(t)
	tk := env.submit(t, uuid.New())
	require.NoError(t, env.store.RequestCancel(context.Background(), tk.ID))

	require.NoError(t, env.runner.Start())
	defer env.runner.Stop()
	require.NoError(t, env.runner.Enqueue(tk.ID))

	// Give the worker time to pick the task up; it must not execute any
	// stage on a cancelled record.
	time.Sleep(100 * time.Millisecond)

	got, err := env.store.Get(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, got.Status)
	assert.Equal(t, 0, env.extractor.callCount())
}

func TestRunnerObservesCancellationAtStageBoundary(t *testing.T) {
	t.Parallel()

	env := newRunnerEnv(t)
	tk := env.submit(t, uuid.New())

	// Cancel while the extract stage is running: the worker finishes the
	// stage, then sees the terminal status at the next checkpoint and
	// never calls the generator.
	env.extractor.onCall = func() {
		require.NoError(t, env.store.RequestCancel(context.Background(), tk.ID))
	}

	require.NoError(t, env.runner.Start())
	defer env.runner.Stop()
	require.NoError(t, env.runner.Enqueue(tk.ID))

	require.Eventually(t, func() bool {
		return env.extractor.callCount() > 0
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	got, err := env.store.Get(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, got.Status)
	assert.Equal(t, 0, env.generator.callCount())
}

func TestRunnerSweeperPicksUpUndispatchedTasks(t *testing.T) {
	t.Parallel()

	env := newRunnerEnv(t)

	// The task is only in the store, never enqueued, simulating a full
	// dispatch queue at submission time.
	tk := env.submit(t, uuid.New())

	require.NoError(t, env.runner.Start())
	defer env.runner.Stop()

	waitForStatus(t, env.store, tk.ID, domain.TaskStatusCompleted)
}

func TestRunnerStartResetsInterruptedTasks(t *testing.T) {
	t.Parallel()

	env := newRunnerEnv(t)

	// A processing task with no live worker is an orphan from a previous
	// run. The memory store does not survive restarts, so simulate a
	// durable store's view with a recovering wrapper.
	tk := env.submit(t, uuid.New())
	_, err := env.store.Claim(context.Background(), tk.ID)
	require.NoError(t, err)

	rec := &recoveringStore{MemoryStore: env.store, orphans: []uuid.UUID{tk.ID}}
	pipeline, err := task.NewPipeline(env.extractor, env.generator, env.sets, discardLogger())
	require.NoError(t, err)
	runner, err := task.NewRunner(rec, pipeline, task.RunnerConfig{
		WorkerCount:   1,
		QueueSize:     8,
		SweepInterval: 20 * time.Millisecond,
	}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, runner.Start())
	defer runner.Stop()

	waitForStatus(t, env.store, tk.ID, domain.TaskStatusCompleted)
	assert.Equal(t, 1, rec.resets)
}

// recoveringStore adds the durable-store recovery hook to the memory
// store. The orphan IDs are supplied by the test; a durable store would
// find them with a single conditional UPDATE.
type recoveringStore struct {
	*task.MemoryStore
	orphans []uuid.UUID
	resets  int
}

func (r *recoveringStore) ResetProcessing(ctx context.Context) (int, error) {
	for _, id := range r.orphans {
		tk, err := r.Get(ctx, id)
		if err != nil {
			return r.resets, err
		}
		if tk.Status != domain.TaskStatusProcessing {
			continue
		}
		fresh := tk.Clone()
		fresh.Status = domain.TaskStatusQueued
		fresh.Progress = 0
		// Create overwrites by ID, which is exactly the reset we need.
		if err := r.Create(ctx, fresh); err != nil {
			return r.resets, err
		}
		r.resets++
	}
	return r.resets, nil
}

func TestRunnerEnqueueLimits(t *testing.T) {
	t.Parallel()

	env := newRunnerEnv(t)
	pipeline, err := task.NewPipeline(env.extractor, env.generator, env.sets, discardLogger())
	require.NoError(t, err)

	runner, err := task.NewRunner(env.store, pipeline, task.RunnerConfig{
		WorkerCount: 1,
		QueueSize:   1,
	}, discardLogger())
	require.NoError(t, err)

	// Not started: nothing drains the queue.
	require.NoError(t, runner.Enqueue(uuid.New()))
	assert.ErrorIs(t, runner.Enqueue(uuid.New()), task.ErrQueueFull)

	require.NoError(t, runner.Start())
	runner.Stop()
	assert.ErrorIs(t, runner.Enqueue(uuid.New()), task.ErrQueueClosed)
}
