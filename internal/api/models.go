package api

import (
	"encoding/json"

	"github.com/phrazzld/recall-api/internal/domain"
)

// GenerationOptionsRequest carries the user-supplied generation knobs on
// submission requests. All fields are optional; zero values select
// server-side defaults.
type GenerationOptionsRequest struct {
	Language      string `json:"language,omitempty"       validate:"omitempty,min=2,max=8"`
	Complexity    string `json:"complexity,omitempty"     validate:"omitempty,oneof=simple medium advanced"`
	MaxFlashcards int    `json:"max_flashcards,omitempty" validate:"omitempty,gte=1,lte=50"`
	IncludeHints  bool   `json:"include_hints,omitempty"`
	IncludeTags   bool   `json:"include_tags,omitempty"`
	Style         string `json:"style,omitempty"          validate:"omitempty,oneof=concise detailed quiz"`
}

// ToDomain converts the request options to domain generation options.
func (o GenerationOptionsRequest) ToDomain() domain.GenerationOptions {
	return domain.GenerationOptions{
		Language:      o.Language,
		Complexity:    domain.Complexity(o.Complexity),
		MaxFlashcards: o.MaxFlashcards,
		IncludeHints:  o.IncludeHints,
		IncludeTags:   o.IncludeTags,
		Style:         domain.CardStyle(o.Style),
	}
}

// SubmitTextRequest is the body of POST /processor/text and
// POST /processor/generate.
type SubmitTextRequest struct {
	Content string                   `json:"content" validate:"required,min=1"`
	Options GenerationOptionsRequest `json:"options"`
}

// SubmitURLRequest is the body of POST /processor/url.
type SubmitURLRequest struct {
	URL     string                   `json:"url" validate:"required,url"`
	Options GenerationOptionsRequest `json:"options"`
}

// SubmitFileRequest is the body of POST /processor/file. Content is
// base64-encoded by the JSON codec.
type SubmitFileRequest struct {
	FileName string                   `json:"file_name" validate:"required,min=1,max=255"`
	Content  []byte                   `json:"content"   validate:"required"`
	Options  GenerationOptionsRequest `json:"options"`
}

// SubmitExportRequest is the body of POST /processor/export.
type SubmitExportRequest struct {
	SetID string `json:"set_id" validate:"required,uuid"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

// TaskErrorResponse is the wire shape of a task's recorded failure.
type TaskErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TaskResponse is the task projection exposed to clients. Result is
// present iff the task completed; Error is present iff it failed.
type TaskResponse struct {
	TaskID   string             `json:"task_id"`
	Status   string             `json:"status"`
	Progress int                `json:"progress"`
	Message  string             `json:"message,omitempty"`
	Result   json.RawMessage    `json:"result,omitempty"`
	Error    *TaskErrorResponse `json:"error,omitempty"`
}

// taskToResponse converts a domain.Task to its wire projection. The
// stored payload is deliberately not exposed.
func taskToResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		TaskID:   t.ID.String(),
		Status:   string(t.Status),
		Progress: t.Progress,
		Message:  t.Message,
		Result:   t.Result,
	}
	if t.Error != nil {
		resp.Error = &TaskErrorResponse{Code: t.Error.Code, Message: t.Error.Message}
	}
	return resp
}
