package task

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
)

// MemoryStore is an in-memory Store implementation. It is the default
// backend: task records do not survive a process restart, which matches
// the single-process semantics of the runner. A single mutex serializes
// all mutations, and every read hands out a clone so callers can never
// observe or produce a half-written record.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
}

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// Create persists a new queued task.
func (s *MemoryStore) Create(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return &StoreError{Operation: "create", Message: "invalid task", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get retrieves a task by ID regardless of owner.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// GetForUser retrieves a task by ID scoped to its owner. Ownership
// mismatches are reported as ErrTaskNotFound to avoid leaking existence.
func (s *MemoryStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Claim atomically moves a queued task to processing. Exactly one of any
// set of concurrent claimers succeeds; the rest get ErrTaskNotQueued.
func (s *MemoryStore) Claim(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if t.Status != domain.TaskStatusQueued {
		return nil, ErrTaskNotQueued
	}

	t.Status = domain.TaskStatusProcessing
	t.Message = "Task accepted"
	t.UpdatedAt = time.Now().UTC()
	return t.Clone(), nil
}

// UpdateProgress records a progress checkpoint for a processing task.
func (s *MemoryStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) error {
	if progress < 0 || progress > 100 {
		return domain.ErrInvalidProgress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		return ErrTaskTerminal
	}
	if t.Status != domain.TaskStatusProcessing {
		return domain.ErrInvalidTransition
	}
	if progress < t.Progress {
		return domain.ErrProgressRegression
	}

	t.Progress = progress
	t.Message = message
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete moves a processing task to completed with its result payload.
func (s *MemoryStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		return ErrTaskTerminal
	}
	if !t.Status.CanTransition(domain.TaskStatusCompleted) {
		return domain.ErrInvalidTransition
	}

	t.Status = domain.TaskStatusCompleted
	t.Progress = 100
	t.Message = "Task completed"
	t.Result = append(json.RawMessage(nil), result...)
	t.Error = nil
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves a processing task to failed and records the stage error.
func (s *MemoryStore) Fail(ctx context.Context, id uuid.UUID, taskErr domain.TaskError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		return ErrTaskTerminal
	}
	if !t.Status.CanTransition(domain.TaskStatusFailed) {
		return domain.ErrInvalidTransition
	}

	t.Status = domain.TaskStatusFailed
	t.Message = taskErr.Message
	t.Error = &taskErr
	t.Result = nil
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// RequestCancel moves a queued or processing task to cancelled.
func (s *MemoryStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status.IsTerminal() {
		return ErrTaskTerminal
	}

	t.Status = domain.TaskStatusCancelled
	t.Message = "Task cancelled"
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ListQueued returns queued task IDs in FIFO order by creation time,
// ties broken by task ID.
func (s *MemoryStore) ListQueued(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queued := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.Status == domain.TaskStatusQueued {
			queued = append(queued, t)
		}
	}

	sort.Slice(queued, func(i, j int) bool {
		if !queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].CreatedAt.Before(queued[j].CreatedAt)
		}
		return queued[i].ID.String() < queued[j].ID.String()
	})

	ids := make([]uuid.UUID, len(queued))
	for i, t := range queued {
		ids[i] = t.ID
	}
	return ids, nil
}

// Reap deletes every task past its ExpiresAt, regardless of status.
func (s *MemoryStore) Reap(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, t := range s.tasks {
		if now.After(t.ExpiresAt) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}
