package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
)

// MemorySetRepository is an in-memory SetRepository implementation used
// when the service runs without a database.
type MemorySetRepository struct {
	mu   sync.RWMutex
	sets map[uuid.UUID]*domain.FlashcardSet
}

// Ensure MemorySetRepository implements the SetRepository interface
var _ SetRepository = (*MemorySetRepository)(nil)

// NewMemorySetRepository creates an empty in-memory set repository.
func NewMemorySetRepository() *MemorySetRepository {
	return &MemorySetRepository{
		sets: make(map[uuid.UUID]*domain.FlashcardSet),
	}
}

// SaveSet persists a flashcard set and its cards.
func (r *MemorySetRepository) SaveSet(ctx context.Context, set *domain.FlashcardSet) error {
	if set == nil || set.ID == uuid.Nil {
		return &StoreError{Entity: "flashcard_set", Operation: "create", Message: "invalid set", Err: ErrInvalidEntity}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sets[set.ID] = cloneSet(set)
	return nil
}

// GetSet retrieves a set by ID scoped to its owner.
func (r *MemorySetRepository) GetSet(ctx context.Context, id, userID uuid.UUID) (*domain.FlashcardSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[id]
	if !ok || set.UserID != userID {
		return nil, ErrSetNotFound
	}
	return cloneSet(set), nil
}

// ListSets returns all sets owned by the given user, newest first.
func (r *MemorySetRepository) ListSets(ctx context.Context, userID uuid.UUID) ([]*domain.FlashcardSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sets := make([]*domain.FlashcardSet, 0)
	for _, set := range r.sets {
		if set.UserID == userID {
			sets = append(sets, cloneSet(set))
		}
	}

	sort.Slice(sets, func(i, j int) bool {
		return sets[i].CreatedAt.After(sets[j].CreatedAt)
	})
	return sets, nil
}

func cloneSet(set *domain.FlashcardSet) *domain.FlashcardSet {
	clone := *set
	clone.Cards = make([]*domain.Flashcard, len(set.Cards))
	for i, card := range set.Cards {
		cardCopy := *card
		if card.Tags != nil {
			cardCopy.Tags = append([]string(nil), card.Tags...)
		}
		clone.Cards[i] = &cardCopy
	}
	return &clone
}
