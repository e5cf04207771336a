package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationOptionsNormalize(t *testing.T) {
	t.Parallel()

	t.Run("fills defaults", func(t *testing.T) {
		t.Parallel()

		opts := domain.GenerationOptions{}
		require.NoError(t, opts.Normalize())

		assert.Equal(t, "en", opts.Language)
		assert.Equal(t, domain.ComplexityMedium, opts.Complexity)
		assert.Equal(t, domain.StyleConcise, opts.Style)
		assert.Equal(t, 10, opts.MaxFlashcards)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		t.Parallel()

		opts := domain.GenerationOptions{
			Language:      "de",
			Complexity:    domain.ComplexityAdvanced,
			MaxFlashcards: 25,
			Style:         domain.StyleQuiz,
		}
		require.NoError(t, opts.Normalize())

		assert.Equal(t, "de", opts.Language)
		assert.Equal(t, domain.ComplexityAdvanced, opts.Complexity)
		assert.Equal(t, 25, opts.MaxFlashcards)
		assert.Equal(t, domain.StyleQuiz, opts.Style)
	})

	t.Run("rejects card counts over the limit", func(t *testing.T) {
		t.Parallel()

		opts := domain.GenerationOptions{MaxFlashcards: domain.MaxFlashcardsLimit + 1}
		assert.ErrorIs(t, opts.Normalize(), domain.ErrTooManyFlashcards)
	})

	t.Run("rejects negative card counts", func(t *testing.T) {
		t.Parallel()

		opts := domain.GenerationOptions{MaxFlashcards: -1}
		assert.ErrorIs(t, opts.Normalize(), domain.ErrTooManyFlashcards)
	})
}

func TestNewFlashcard(t *testing.T) {
	t.Parallel()

	card, err := domain.NewFlashcard("What is Go?", "A programming language", "starts with G", []string{"go"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, card.ID)
	assert.Equal(t, "What is Go?", card.Front)

	_, err = domain.NewFlashcard("", "back", "", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCardFront)

	_, err = domain.NewFlashcard("front", "", "", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCardBack)
}

func TestNewFlashcardSet(t *testing.T) {
	t.Parallel()

	card, err := domain.NewFlashcard("front", "back", "", nil)
	require.NoError(t, err)
	userID := uuid.New()

	t.Run("creates set with title", func(t *testing.T) {
		t.Parallel()

		set, err := domain.NewFlashcardSet(userID, "Biology", []*domain.Flashcard{card})
		require.NoError(t, err)
		assert.Equal(t, "Biology", set.Title)
		assert.Equal(t, userID, set.UserID)
		assert.Len(t, set.Cards, 1)
	})

	t.Run("empty title gets a default", func(t *testing.T) {
		t.Parallel()

		set, err := domain.NewFlashcardSet(userID, "", []*domain.Flashcard{card})
		require.NoError(t, err)
		assert.NotEmpty(t, set.Title)
	})

	t.Run("rejects empty card list", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewFlashcardSet(userID, "Empty", nil)
		assert.ErrorIs(t, err, domain.ErrEmptySet)
	})

	t.Run("rejects missing owner", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewFlashcardSet(uuid.Nil, "NoOwner", []*domain.Flashcard{card})
		assert.ErrorIs(t, err, domain.ErrEmptySetUserID)
	})
}
