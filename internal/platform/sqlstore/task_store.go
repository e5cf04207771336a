package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/task"
)

// TaskStore is a SQL-backed task.Store. State transitions are enforced
// with conditional UPDATEs keyed on the current status, so the database
// itself serializes concurrent claimers and cancellations; a zero-row
// update is then classified by re-reading the record.
type TaskStore struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure TaskStore implements the Store interface and the recovery hook.
var (
	_ task.Store     = (*TaskStore)(nil)
	_ task.Recoverer = (*TaskStore)(nil)
)

// NewTaskStore creates a SQL-backed task store on an open handle.
func NewTaskStore(db *sql.DB, dialect Dialect) (*TaskStore, error) {
	if db == nil {
		return nil, errors.New("db handle cannot be nil")
	}
	return &TaskStore{db: db, dialect: dialect}, nil
}

const taskColumns = `id, user_id, type, status, progress, message, payload, result,
	error_code, error_message, created_at, updated_at, expires_at`

// Create persists a new queued task.
func (s *TaskStore) Create(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return &task.StoreError{Operation: "create", Message: "invalid task", Err: err}
	}

	query := s.dialect.rebind(`INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	var errCode, errMsg sql.NullString
	if t.Error != nil {
		errCode = sql.NullString{String: t.Error.Code, Valid: true}
		errMsg = sql.NullString{String: t.Error.Message, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		t.ID.String(), t.UserID.String(), string(t.Type), string(t.Status),
		t.Progress, t.Message, nullString(t.Payload), nullString(t.Result),
		errCode, errMsg,
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt), encodeTime(t.ExpiresAt))
	if err != nil {
		return &task.StoreError{Operation: "create", Message: "failed to insert task", Err: err}
	}
	return nil
}

// Get retrieves a task by ID regardless of owner.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := s.dialect.rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	return s.scanTask(s.db.QueryRowContext(ctx, query, id.String()))
}

// GetForUser retrieves a task by ID scoped to its owner. Ownership
// mismatches are reported as ErrTaskNotFound to avoid leaking existence.
func (s *TaskStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error) {
	query := s.dialect.rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`)
	return s.scanTask(s.db.QueryRowContext(ctx, query, id.String(), userID.String()))
}

// Claim atomically moves a queued task to processing. Exactly one of any
// set of concurrent claimers succeeds; the rest get ErrTaskNotQueued.
func (s *TaskStore) Claim(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := s.dialect.rebind(`UPDATE tasks
		SET status = ?, message = ?, updated_at = ?
		WHERE id = ? AND status = ?`)

	res, err := s.db.ExecContext(ctx, query,
		string(domain.TaskStatusProcessing), "Task accepted", encodeTime(time.Now()),
		id.String(), string(domain.TaskStatusQueued))
	if err != nil {
		return nil, &task.StoreError{Operation: "claim", Message: "failed to claim task", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, &task.StoreError{Operation: "claim", Message: "failed to read rows affected", Err: err}
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, task.ErrTaskNotQueued
	}

	return s.Get(ctx, id)
}

// UpdateProgress records a progress checkpoint for a processing task.
func (s *TaskStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) error {
	if progress < 0 || progress > 100 {
		return domain.ErrInvalidProgress
	}

	query := s.dialect.rebind(`UPDATE tasks
		SET progress = ?, message = ?, updated_at = ?
		WHERE id = ? AND status = ? AND progress <= ?`)

	res, err := s.db.ExecContext(ctx, query,
		progress, message, encodeTime(time.Now()),
		id.String(), string(domain.TaskStatusProcessing), progress)
	if err != nil {
		return &task.StoreError{Operation: "update_progress", Message: "failed to update task", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &task.StoreError{Operation: "update_progress", Message: "failed to read rows affected", Err: err}
	}
	if affected == 0 {
		return s.classifyMiss(ctx, id, progress)
	}
	return nil
}

// Complete moves a processing task to completed with its result payload.
func (s *TaskStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	query := s.dialect.rebind(`UPDATE tasks
		SET status = ?, progress = 100, message = ?, result = ?,
			error_code = NULL, error_message = NULL, updated_at = ?
		WHERE id = ? AND status = ?`)

	res, err := s.db.ExecContext(ctx, query,
		string(domain.TaskStatusCompleted), "Task completed", nullString(result), encodeTime(time.Now()),
		id.String(), string(domain.TaskStatusProcessing))
	if err != nil {
		return &task.StoreError{Operation: "complete", Message: "failed to complete task", Err: err}
	}
	return s.checkTransition(ctx, res, id)
}

// Fail moves a processing task to failed and records the stage error.
func (s *TaskStore) Fail(ctx context.Context, id uuid.UUID, taskErr domain.TaskError) error {
	query := s.dialect.rebind(`UPDATE tasks
		SET status = ?, message = ?, error_code = ?, error_message = ?,
			result = NULL, updated_at = ?
		WHERE id = ? AND status = ?`)

	res, err := s.db.ExecContext(ctx, query,
		string(domain.TaskStatusFailed), taskErr.Message, taskErr.Code, taskErr.Message,
		encodeTime(time.Now()),
		id.String(), string(domain.TaskStatusProcessing))
	if err != nil {
		return &task.StoreError{Operation: "fail", Message: "failed to mark task failed", Err: err}
	}
	return s.checkTransition(ctx, res, id)
}

// RequestCancel moves a queued or processing task to cancelled.
func (s *TaskStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	query := s.dialect.rebind(`UPDATE tasks
		SET status = ?, message = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`)

	res, err := s.db.ExecContext(ctx, query,
		string(domain.TaskStatusCancelled), "Task cancelled", encodeTime(time.Now()),
		id.String(), string(domain.TaskStatusQueued), string(domain.TaskStatusProcessing))
	if err != nil {
		return &task.StoreError{Operation: "request_cancel", Message: "failed to cancel task", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &task.StoreError{Operation: "request_cancel", Message: "failed to read rows affected", Err: err}
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return task.ErrTaskTerminal
	}
	return nil
}

// ListQueued returns queued task IDs in FIFO order by creation time,
// ties broken by task ID.
func (s *TaskStore) ListQueued(ctx context.Context) ([]uuid.UUID, error) {
	query := s.dialect.rebind(`SELECT id FROM tasks WHERE status = ?
		ORDER BY created_at ASC, id ASC`)

	rows, err := s.db.QueryContext(ctx, query, string(domain.TaskStatusQueued))
	if err != nil {
		return nil, &task.StoreError{Operation: "list_queued", Message: "failed to query tasks", Err: err}
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &task.StoreError{Operation: "list_queued", Message: "failed to scan task id", Err: err}
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, &task.StoreError{Operation: "list_queued", Message: "invalid stored task id", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &task.StoreError{Operation: "list_queued", Message: "failed to iterate tasks", Err: err}
	}
	return ids, nil
}

// Reap deletes every task past its ExpiresAt, regardless of status.
func (s *TaskStore) Reap(ctx context.Context, now time.Time) (int, error) {
	query := s.dialect.rebind(`DELETE FROM tasks WHERE expires_at < ?`)

	res, err := s.db.ExecContext(ctx, query, encodeTime(now))
	if err != nil {
		return 0, &task.StoreError{Operation: "reap", Message: "failed to delete expired tasks", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &task.StoreError{Operation: "reap", Message: "failed to read rows affected", Err: err}
	}
	return int(affected), nil
}

// ResetProcessing moves every processing task back to queued. Called once
// at startup: a task mid-processing at that point was orphaned by a
// previous process, and its claim died with it. Progress restarts from
// zero so the fresh run's checkpoints never read as regressions.
func (s *TaskStore) ResetProcessing(ctx context.Context) (int, error) {
	query := s.dialect.rebind(`UPDATE tasks
		SET status = ?, progress = 0, message = ?, updated_at = ?
		WHERE status = ?`)

	res, err := s.db.ExecContext(ctx, query,
		string(domain.TaskStatusQueued), "Task queued", encodeTime(time.Now()),
		string(domain.TaskStatusProcessing))
	if err != nil {
		return 0, &task.StoreError{Operation: "reset_processing", Message: "failed to reset tasks", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &task.StoreError{Operation: "reset_processing", Message: "failed to read rows affected", Err: err}
	}
	return int(affected), nil
}

// checkTransition classifies a zero-row terminal transition: the task is
// missing, already terminal, or not yet processing.
func (s *TaskStore) checkTransition(ctx context.Context, res sql.Result, id uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return &task.StoreError{Operation: "transition", Message: "failed to read rows affected", Err: err}
	}
	if affected > 0 {
		return nil
	}

	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status.IsTerminal() {
		return task.ErrTaskTerminal
	}
	return domain.ErrInvalidTransition
}

// classifyMiss explains a progress update that matched no row.
func (s *TaskStore) classifyMiss(ctx context.Context, id uuid.UUID, progress int) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case t.Status.IsTerminal():
		return task.ErrTaskTerminal
	case t.Status != domain.TaskStatusProcessing:
		return domain.ErrInvalidTransition
	case progress < t.Progress:
		return domain.ErrProgressRegression
	default:
		// The row moved between the update and this read; report the
		// conservative outcome.
		return domain.ErrProgressRegression
	}
}

// scanTask reads one task row.
func (s *TaskStore) scanTask(row *sql.Row) (*domain.Task, error) {
	var (
		rawID, rawUserID, taskType, status   string
		progress                             int
		message                              string
		payload, result                      []byte
		errCode, errMsg                      sql.NullString
		createdAt, updatedAt, expiresAt      string
	)

	err := row.Scan(&rawID, &rawUserID, &taskType, &status, &progress, &message,
		&payload, &result, &errCode, &errMsg, &createdAt, &updatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, &task.StoreError{Operation: "get", Message: "failed to scan task", Err: err}
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, &task.StoreError{Operation: "get", Message: "invalid stored task id", Err: err}
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, &task.StoreError{Operation: "get", Message: "invalid stored user id", Err: err}
	}

	t := &domain.Task{
		ID:       id,
		UserID:   userID,
		Type:     domain.TaskType(taskType),
		Status:   domain.TaskStatus(status),
		Progress: progress,
		Message:  message,
	}
	if len(payload) > 0 {
		t.Payload = append(json.RawMessage(nil), payload...)
	}
	if len(result) > 0 {
		t.Result = append(json.RawMessage(nil), result...)
	}
	if errCode.Valid {
		t.Error = &domain.TaskError{Code: errCode.String, Message: errMsg.String}
	}

	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, &task.StoreError{Operation: "get", Message: "invalid created_at", Err: err}
	}
	if t.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, &task.StoreError{Operation: "get", Message: "invalid updated_at", Err: err}
	}
	if t.ExpiresAt, err = decodeTime(expiresAt); err != nil {
		return nil, &task.StoreError{Operation: "get", Message: "invalid expires_at", Err: err}
	}

	return t, nil
}
