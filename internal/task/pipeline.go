package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/extraction"
	"github.com/phrazzld/recall-api/internal/generation"
	"github.com/phrazzld/recall-api/internal/store"
)

// Stable stage failure codes recorded on failed tasks.
const (
	CodeExtractionError  = "ExtractionError"
	CodeGenerationError  = "GenerationError"
	CodePersistenceError = "PersistenceError"
)

// Fixed progress checkpoints. Progress is not a continuous measurement;
// each checkpoint is written once after its stage succeeds.
const (
	ProgressAccepted  = 10
	ProgressExtracted = 40
	ProgressGenerated = 85
	ProgressPersisted = 100
)

// Common construction errors
var (
	ErrNilExtractor     = errors.New("extractor cannot be nil")
	ErrNilGenerator     = errors.New("generator cannot be nil")
	ErrNilSetRepository = errors.New("set repository cannot be nil")
	ErrNilStore         = errors.New("task store cannot be nil")
	ErrNilLogger        = errors.New("logger cannot be nil")
)

// StageError is a typed stage failure. Code is one of the stable stage
// failure codes and determines the error recorded on the failed task.
type StageError struct {
	Code string
	Err  error
}

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// TaskError converts the stage failure into the error shape stored on the
// task record.
func (e *StageError) TaskError() domain.TaskError {
	return domain.TaskError{Code: e.Code, Message: e.Err.Error()}
}

// Stage is one step of a task's pipeline. Run mutates the shared stage
// state; Progress and Message are the checkpoint written after Run
// succeeds.
type Stage struct {
	Name     string
	Progress int
	Message  string
	Run      func(ctx context.Context) *StageError
}

// GenerationResult is the result payload attached to a completed
// generation task.
type GenerationResult struct {
	SetID     uuid.UUID           `json:"set_id"`
	CardCount int                 `json:"card_count"`
	Cards     []*domain.Flashcard `json:"cards"`
}

// ExportResult is the result payload attached to a completed export task.
type ExportResult struct {
	SetID    uuid.UUID       `json:"set_id"`
	Format   string          `json:"format"`
	Document json.RawMessage `json:"document"`
}

// Pipeline builds the ordered stage sequence for a task. The three fixed
// stages of a generation task are extract, generate, and persist; export
// tasks reuse the same shape with load, render, and persist steps. Stages
// only talk to collaborators and to the stage state; all task record
// mutations are the runner's job.
type Pipeline struct {
	extractor extraction.Extractor
	generator generation.Generator
	sets      store.SetRepository
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline over the given collaborators.
// Returns an error if any dependency is nil.
func NewPipeline(
	extractor extraction.Extractor,
	generator generation.Generator,
	sets store.SetRepository,
	logger *slog.Logger,
) (*Pipeline, error) {
	if extractor == nil {
		return nil, ErrNilExtractor
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if sets == nil {
		return nil, ErrNilSetRepository
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Pipeline{
		extractor: extractor,
		generator: generator,
		sets:      sets,
		logger:    logger.With("component", "pipeline"),
	}, nil
}

// execution carries intermediate state across the stages of one task run.
type execution struct {
	task    *domain.Task
	payload Payload
	content *extraction.NormalizedContent
	cards   []*domain.Flashcard
	result  json.RawMessage
}

// Result returns the payload produced by the final stage.
func (x *execution) Result() json.RawMessage {
	return x.result
}

// Stages decodes the task payload and returns the ordered stage sequence
// for the task's type together with the execution state the stages share.
// A payload that cannot be decoded is an extraction failure: the input was
// validated at submission, so a broken payload means the stored record is
// unusable.
func (p *Pipeline) Stages(t *domain.Task) (*execution, []Stage, *StageError) {
	payload, err := DecodePayload(t.Payload)
	if err != nil {
		return nil, nil, &StageError{Code: CodeExtractionError, Err: err}
	}

	x := &execution{task: t, payload: payload}

	if t.Type == domain.TaskTypeExport {
		return x, p.exportStages(x), nil
	}
	return x, p.generationStages(x), nil
}

// generationStages is the standard extract -> generate -> persist sequence.
func (p *Pipeline) generationStages(x *execution) []Stage {
	return []Stage{
		{
			Name:     "extract",
			Progress: ProgressExtracted,
			Message:  "Content extracted",
			Run: func(ctx context.Context) *StageError {
				content, err := p.extractor.Extract(ctx, sourceFor(x.task.Type, x.payload))
				if err != nil {
					return &StageError{Code: CodeExtractionError, Err: err}
				}
				x.content = content
				return nil
			},
		},
		{
			Name:     "generate",
			Progress: ProgressGenerated,
			Message:  "Flashcards generated",
			Run: func(ctx context.Context) *StageError {
				cards, err := p.generator.GenerateCards(ctx, x.content.Text, x.payload.Options, x.task.UserID)
				if err != nil {
					return &StageError{Code: CodeGenerationError, Err: err}
				}
				x.cards = cards
				return nil
			},
		},
		{
			Name:     "persist",
			Progress: ProgressPersisted,
			Message:  "Flashcards saved",
			Run: func(ctx context.Context) *StageError {
				set, err := domain.NewFlashcardSet(x.task.UserID, setTitle(x), x.cards)
				if err != nil {
					return &StageError{Code: CodePersistenceError, Err: err}
				}
				if err := p.sets.SaveSet(ctx, set); err != nil {
					return &StageError{Code: CodePersistenceError, Err: err}
				}

				result, err := json.Marshal(GenerationResult{
					SetID:     set.ID,
					CardCount: len(set.Cards),
					Cards:     set.Cards,
				})
				if err != nil {
					return &StageError{Code: CodePersistenceError, Err: err}
				}
				x.result = result
				return nil
			},
		},
	}
}

// exportStages loads an existing set and renders it as a JSON document.
func (p *Pipeline) exportStages(x *execution) []Stage {
	return []Stage{
		{
			Name:     "load",
			Progress: ProgressExtracted,
			Message:  "Flashcard set loaded",
			Run: func(ctx context.Context) *StageError {
				set, err := p.sets.GetSet(ctx, x.payload.SetID, x.task.UserID)
				if err != nil {
					return &StageError{Code: CodeExtractionError, Err: err}
				}
				x.cards = set.Cards
				return nil
			},
		},
		{
			Name:     "render",
			Progress: ProgressGenerated,
			Message:  "Export rendered",
			Run: func(ctx context.Context) *StageError {
				doc, err := json.Marshal(x.cards)
				if err != nil {
					return &StageError{Code: CodeGenerationError, Err: err}
				}
				x.content = &extraction.NormalizedContent{Text: string(doc)}
				return nil
			},
		},
		{
			Name:     "persist",
			Progress: ProgressPersisted,
			Message:  "Export ready",
			Run: func(ctx context.Context) *StageError {
				result, err := json.Marshal(ExportResult{
					SetID:    x.payload.SetID,
					Format:   "json",
					Document: json.RawMessage(x.content.Text),
				})
				if err != nil {
					return &StageError{Code: CodePersistenceError, Err: err}
				}
				x.result = result
				return nil
			},
		},
	}
}

// sourceFor maps a task type and payload to the extraction source.
func sourceFor(taskType domain.TaskType, p Payload) extraction.Source {
	switch taskType {
	case domain.TaskTypeURLProcessing:
		return extraction.Source{Kind: extraction.SourceURL, URL: p.URL}
	case domain.TaskTypeFileUpload:
		return extraction.Source{Kind: extraction.SourceFile, FileName: p.FileName, Data: p.FileData}
	default:
		return extraction.Source{Kind: extraction.SourceText, Text: p.Text}
	}
}

// setTitle picks a title for the persisted set, preferring the extracted
// document title.
func setTitle(x *execution) string {
	if x.content != nil && x.content.Title != "" {
		return x.content.Title
	}
	if x.payload.FileName != "" {
		return x.payload.FileName
	}
	return ""
}
