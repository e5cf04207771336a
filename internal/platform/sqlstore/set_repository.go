package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/store"
)

// SetRepository is a SQL-backed store.SetRepository. Cards are stored as
// a JSON document alongside the set row, so a set and its cards are
// always written in a single statement.
type SetRepository struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure SetRepository implements the SetRepository interface
var _ store.SetRepository = (*SetRepository)(nil)

// NewSetRepository creates a SQL-backed set repository on an open handle.
func NewSetRepository(db *sql.DB, dialect Dialect) (*SetRepository, error) {
	if db == nil {
		return nil, errors.New("db handle cannot be nil")
	}
	return &SetRepository{db: db, dialect: dialect}, nil
}

// SaveSet persists a flashcard set and its cards atomically.
func (r *SetRepository) SaveSet(ctx context.Context, set *domain.FlashcardSet) error {
	if set == nil || set.ID == uuid.Nil {
		return &store.StoreError{Entity: "flashcard_set", Operation: "save",
			Message: "invalid set", Err: store.ErrInvalidEntity}
	}

	cards, err := json.Marshal(set.Cards)
	if err != nil {
		return &store.StoreError{Entity: "flashcard_set", Operation: "save",
			Message: "failed to encode cards", Err: err}
	}

	query := r.dialect.rebind(`INSERT INTO flashcard_sets (id, user_id, title, cards, created_at)
		VALUES (?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		set.ID.String(), set.UserID.String(), set.Title, string(cards), encodeTime(set.CreatedAt))
	if err != nil {
		return &store.StoreError{Entity: "flashcard_set", Operation: "save",
			Message: "failed to insert set", Err: err}
	}
	return nil
}

// GetSet retrieves a set by ID scoped to its owner.
func (r *SetRepository) GetSet(ctx context.Context, id, userID uuid.UUID) (*domain.FlashcardSet, error) {
	query := r.dialect.rebind(`SELECT id, user_id, title, cards, created_at
		FROM flashcard_sets WHERE id = ? AND user_id = ?`)

	set, err := r.scanSet(r.db.QueryRowContext(ctx, query, id.String(), userID.String()))
	if err != nil {
		return nil, err
	}
	return set, nil
}

// ListSets returns all sets owned by the given user, newest first.
func (r *SetRepository) ListSets(ctx context.Context, userID uuid.UUID) ([]*domain.FlashcardSet, error) {
	query := r.dialect.rebind(`SELECT id, user_id, title, cards, created_at
		FROM flashcard_sets WHERE user_id = ? ORDER BY created_at DESC, id ASC`)

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, &store.StoreError{Entity: "flashcard_set", Operation: "list",
			Message: "failed to query sets", Err: err}
	}
	defer rows.Close()

	var sets []*domain.FlashcardSet
	for rows.Next() {
		set, err := r.scanSetRow(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StoreError{Entity: "flashcard_set", Operation: "list",
			Message: "failed to iterate sets", Err: err}
	}
	return sets, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SetRepository) scanSet(row *sql.Row) (*domain.FlashcardSet, error) {
	set, err := r.scanFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSetNotFound
	}
	return set, err
}

func (r *SetRepository) scanSetRow(rows *sql.Rows) (*domain.FlashcardSet, error) {
	return r.scanFrom(rows)
}

func (r *SetRepository) scanFrom(sc rowScanner) (*domain.FlashcardSet, error) {
	var (
		rawID, rawUserID, title, createdAt string
		cards                              []byte
	)
	if err := sc.Scan(&rawID, &rawUserID, &title, &cards, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &store.StoreError{Entity: "flashcard_set", Operation: "get",
			Message: "failed to scan set", Err: err}
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, &store.StoreError{Entity: "flashcard_set", Operation: "get",
			Message: "invalid stored set id", Err: err}
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, &store.StoreError{Entity: "flashcard_set", Operation: "get",
			Message: "invalid stored user id", Err: err}
	}

	set := &domain.FlashcardSet{ID: id, UserID: userID, Title: title}
	if err := json.Unmarshal(cards, &set.Cards); err != nil {
		return nil, &store.StoreError{Entity: "flashcard_set", Operation: "get",
			Message: "failed to decode cards", Err: err}
	}
	if set.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, &store.StoreError{Entity: "flashcard_set", Operation: "get",
			Message: "invalid created_at", Err: err}
	}
	return set, nil
}
