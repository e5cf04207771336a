package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
)

// SetRepository persists flashcard sets produced by completed tasks.
// It is the storage collaborator behind the pipeline's persist stage.
type SetRepository interface {
	// SaveSet persists a flashcard set and its cards atomically.
	SaveSet(ctx context.Context, set *domain.FlashcardSet) error

	// GetSet retrieves a set by ID scoped to its owner. A set that exists
	// but belongs to another user yields ErrSetNotFound.
	GetSet(ctx context.Context, id, userID uuid.UUID) (*domain.FlashcardSet, error)

	// ListSets returns all sets owned by the given user, newest first.
	ListSets(ctx context.Context, userID uuid.UUID) ([]*domain.FlashcardSet, error)
}
