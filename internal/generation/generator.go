package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
)

// Generator defines the interface for generating flashcards from
// normalized content. It is the boundary between the application core and
// external AI/LLM services.
type Generator interface {
	// GenerateCards creates flashcards from the given content, honoring
	// the user-supplied generation options (language, complexity, card
	// count, style). It returns the generated cards or an error mapped to
	// one of this package's sentinel errors.
	GenerateCards(
		ctx context.Context,
		content string,
		opts domain.GenerationOptions,
		userID uuid.UUID,
	) ([]*domain.Flashcard, error)
}
