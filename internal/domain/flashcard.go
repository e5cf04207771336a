package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Complexity controls how demanding generated flashcards should be.
type Complexity string

// Possible complexity values
const (
	ComplexitySimple   Complexity = "simple"
	ComplexityMedium   Complexity = "medium"
	ComplexityAdvanced Complexity = "advanced"
)

// CardStyle controls the presentation of generated flashcards.
type CardStyle string

// Possible card style values
const (
	StyleConcise  CardStyle = "concise"
	StyleDetailed CardStyle = "detailed"
	StyleQuiz     CardStyle = "quiz"
)

// MaxFlashcardsLimit bounds how many cards a single generation may request.
const MaxFlashcardsLimit = 50

// Common validation errors for flashcards and sets
var (
	ErrEmptyCardFront    = errors.New("flashcard front cannot be empty")
	ErrEmptyCardBack     = errors.New("flashcard back cannot be empty")
	ErrEmptySetID        = errors.New("flashcard set ID cannot be empty")
	ErrEmptySetUserID    = errors.New("flashcard set user ID cannot be empty")
	ErrEmptySet          = errors.New("flashcard set must contain at least one card")
	ErrTooManyFlashcards = errors.New("requested flashcard count exceeds limit")
)

// GenerationOptions are the user-supplied knobs for flashcard generation.
// Zero values mean "use defaults" and are normalized by Normalize.
type GenerationOptions struct {
	Language      string     `json:"language,omitempty"`
	Complexity    Complexity `json:"complexity,omitempty"`
	MaxFlashcards int        `json:"max_flashcards,omitempty"`
	IncludeHints  bool       `json:"include_hints,omitempty"`
	IncludeTags   bool       `json:"include_tags,omitempty"`
	Style         CardStyle  `json:"style,omitempty"`
}

// Normalize fills defaults and validates bounds.
func (o *GenerationOptions) Normalize() error {
	if o.Language == "" {
		o.Language = "en"
	}
	if o.Complexity == "" {
		o.Complexity = ComplexityMedium
	}
	if o.Style == "" {
		o.Style = StyleConcise
	}
	if o.MaxFlashcards == 0 {
		o.MaxFlashcards = 10
	}
	if o.MaxFlashcards < 0 || o.MaxFlashcards > MaxFlashcardsLimit {
		return ErrTooManyFlashcards
	}
	return nil
}

// Flashcard is a single generated question/answer pair.
type Flashcard struct {
	ID    uuid.UUID `json:"id"`
	Front string    `json:"front"`
	Back  string    `json:"back"`
	Hint  string    `json:"hint,omitempty"`
	Tags  []string  `json:"tags,omitempty"`
}

// NewFlashcard creates a flashcard with a fresh ID.
// Returns an error if either side is empty.
func NewFlashcard(front, back, hint string, tags []string) (*Flashcard, error) {
	if front == "" {
		return nil, ErrEmptyCardFront
	}
	if back == "" {
		return nil, ErrEmptyCardBack
	}

	return &Flashcard{
		ID:    uuid.New(),
		Front: front,
		Back:  back,
		Hint:  hint,
		Tags:  tags,
	}, nil
}

// FlashcardSet groups the cards produced by one completed task and is what
// the persist stage hands to the set repository.
type FlashcardSet struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Title     string       `json:"title"`
	Cards     []*Flashcard `json:"cards"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewFlashcardSet creates a set owned by the given user.
// Returns an error if the set would be empty.
func NewFlashcardSet(userID uuid.UUID, title string, cards []*Flashcard) (*FlashcardSet, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptySetUserID
	}
	if len(cards) == 0 {
		return nil, ErrEmptySet
	}
	if title == "" {
		title = "Generated flashcards"
	}

	return &FlashcardSet{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Cards:     cards,
		CreatedAt: time.Now().UTC(),
	}, nil
}
