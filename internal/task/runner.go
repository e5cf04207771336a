package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the Runner
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks.
	// It bounds the number of tasks in the processing state at once;
	// tasks beyond capacity simply stay queued.
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory dispatch queue
	QueueSize int

	// StageTimeout bounds each stage's collaborator call. Zero disables
	// the per-stage timeout.
	StageTimeout time.Duration

	// SweepInterval defines how often the background sweeper requeues
	// queued tasks that missed the dispatch queue and reaps expired
	// records. If zero, defaults to 1 minute.
	SweepInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:   2,
		QueueSize:     100,
		StageTimeout:  2 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Recoverer is an optional Store capability: durable stores reset tasks
// that were mid-processing when the previous process died back to queued,
// since any in-memory claim died with that process.
type Recoverer interface {
	ResetProcessing(ctx context.Context) (int, error)
}

// Runner owns the worker pool that drives queued tasks through the stage
// pipeline. Workers claim a task exclusively, write a progress checkpoint
// to the store after every stage, and check for cooperative cancellation
// at each stage boundary. A worker mid-stage is never interrupted:
// cancellation latency equals the remaining duration of the current
// stage's collaborator call.
type Runner struct {
	store    Store
	pipeline *Pipeline
	queue    chan uuid.UUID
	config   RunnerConfig
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a Runner over the given store and pipeline.
// Returns an error if a required dependency is nil.
func NewRunner(store Store, pipeline *Pipeline, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      store,
		pipeline:   pipeline,
		queue:      make(chan uuid.UUID, config.QueueSize),
		config:     config,
		logger:     logger.With("component", "task_runner"),
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// Start recovers any tasks left over from a previous run, then launches
// the worker pool and the background sweeper.
func (r *Runner) Start() error {
	if rec, ok := r.store.(Recoverer); ok {
		reset, err := rec.ResetProcessing(context.Background())
		if err != nil {
			return fmt.Errorf("failed to reset interrupted tasks: %w", err)
		}
		if reset > 0 {
			r.logger.Info("reset interrupted tasks to queued", "count", reset)
		}
	}

	// Requeue whatever is already queued in the store.
	r.sweepOnce()

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.sweeper()

	r.logger.Info("task runner started",
		"worker_count", r.config.WorkerCount,
		"queue_size", r.config.QueueSize)
	return nil
}

// Stop gracefully shuts down the runner, waiting for in-flight workers to
// finish their current task.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	close(r.queue)
	r.logger.Info("task runner stopped")
}

// Enqueue hands a queued task's ID to the worker pool. A full queue is
// not an error for the caller's task: the record stays queued in the
// store and the sweeper will pick it up.
func (r *Runner) Enqueue(taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrQueueClosed
	}

	select {
	case r.queue <- taskID:
		r.logger.Debug("task enqueued",
			"task_id", taskID,
			"queue_len", len(r.queue),
			"queue_cap", cap(r.queue))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(r.queue))
	}
}

// worker processes tasks from the dispatch queue until shutdown.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case taskID, ok := <-r.queue:
			if !ok {
				r.logger.Debug("dispatch queue closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(taskID, id)
		}
	}
}

// processTask drives a single task through its stage pipeline.
func (r *Runner) processTask(taskID uuid.UUID, workerID int) {
	ctx := context.Background()
	logger := r.logger.With("task_id", taskID, "worker_id", workerID)

	claimed, err := r.store.Claim(ctx, taskID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotQueued):
			// Another worker claimed it, or it was cancelled while queued.
			logger.Debug("task no longer queued, skipping")
		case errors.Is(err, ErrTaskNotFound):
			logger.Debug("task disappeared before claim, skipping")
		default:
			logger.Error("failed to claim task", "error", err)
		}
		return
	}

	logger = logger.With("task_type", claimed.Type)
	logger.Info("processing task")

	if !r.checkpoint(ctx, logger, taskID, ProgressAccepted, "Task accepted") {
		return
	}

	x, stages, stageErr := r.pipeline.Stages(claimed)
	if stageErr != nil {
		r.failTask(ctx, logger, taskID, stageErr)
		return
	}

	for i, stage := range stages {
		if r.cancellationRequested(ctx, logger, taskID) {
			return
		}

		stageCtx := ctx
		var cancel context.CancelFunc
		if r.config.StageTimeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, r.config.StageTimeout)
		}
		serr := stage.Run(stageCtx)
		if cancel != nil {
			cancel()
		}

		if serr != nil {
			logger.Error("stage failed", "stage", stage.Name, "error", serr)
			r.failTask(ctx, logger, taskID, serr)
			return
		}

		if i == len(stages)-1 {
			if err := r.store.Complete(ctx, taskID, x.Result()); err != nil {
				if errors.Is(err, ErrTaskTerminal) {
					logger.Info("task cancelled before completion could be recorded")
					return
				}
				logger.Error("failed to mark task completed", "error", err)
				return
			}
			logger.Info("task completed successfully")
			return
		}

		if !r.checkpoint(ctx, logger, taskID, stage.Progress, stage.Message) {
			return
		}
	}
}

// checkpoint writes a progress update, reporting false when the task has
// meanwhile reached a terminal state and the worker must stop.
func (r *Runner) checkpoint(ctx context.Context, logger *slog.Logger, taskID uuid.UUID, progress int, message string) bool {
	err := r.store.UpdateProgress(ctx, taskID, progress, message)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrTaskTerminal) {
		logger.Info("task reached terminal state mid-run, aborting", "progress", progress)
		return false
	}
	logger.Error("failed to record progress checkpoint", "error", err, "progress", progress)
	return false
}

// cancellationRequested checks the store's view of the task at a stage
// boundary. The cancellation flag is the task's own status, read through
// the same store that serializes all task mutations.
func (r *Runner) cancellationRequested(ctx context.Context, logger *slog.Logger, taskID uuid.UUID) bool {
	t, err := r.store.Get(ctx, taskID)
	if err != nil {
		logger.Error("failed to read task at stage boundary", "error", err)
		return true
	}
	if t.Status.IsTerminal() {
		logger.Info("cancellation observed at stage boundary", "status", t.Status)
		return true
	}
	return false
}

// failTask records a typed stage failure on the task.
func (r *Runner) failTask(ctx context.Context, logger *slog.Logger, taskID uuid.UUID, serr *StageError) {
	if err := r.store.Fail(ctx, taskID, serr.TaskError()); err != nil {
		if errors.Is(err, ErrTaskTerminal) {
			logger.Info("task cancelled before failure could be recorded")
			return
		}
		logger.Error("failed to mark task failed", "error", err)
	}
}

// sweeper periodically requeues queued tasks that are not sitting in the
// dispatch queue (for example because it was full at submission time) and
// reaps expired task records.
func (r *Runner) sweeper() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

// sweepOnce requeues queued tasks and reaps expired ones. Requeueing an
// ID that is already in the dispatch queue is harmless: the losing claim
// is a no-op.
func (r *Runner) sweepOnce() {
	ctx := context.Background()

	queued, err := r.store.ListQueued(ctx)
	if err != nil {
		r.logger.Error("failed to list queued tasks", "error", err)
	} else {
		for _, id := range queued {
			select {
			case r.queue <- id:
			default:
				// Queue still full; the next sweep will retry.
				r.logger.Debug("dispatch queue full during sweep", "task_id", id)
			}
		}
	}

	reaped, err := r.store.Reap(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to reap expired tasks", "error", err)
	} else if reaped > 0 {
		r.logger.Info("reaped expired tasks", "count", reaped)
	}
}
