package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/api/middleware"
	"github.com/phrazzld/recall-api/internal/api/shared"
	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/service"
	"github.com/phrazzld/recall-api/internal/task"
)

// ProcessorHandler exposes the task submission and polling endpoints.
// Submissions are acknowledged with 202 Accepted and a task ID; clients
// poll GET /processor/task/{taskId} until the task is terminal.
type ProcessorHandler struct {
	processor service.ProcessorService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewProcessorHandler creates a new ProcessorHandler with its dependencies.
func NewProcessorHandler(
	processor service.ProcessorService,
	validate *validator.Validate,
	logger *slog.Logger,
) *ProcessorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessorHandler{
		processor: processor,
		validator: validate,
		logger:    logger.With("component", "processor_handler"),
	}
}

// SubmitText handles POST /processor/text.
func (h *ProcessorHandler) SubmitText(w http.ResponseWriter, r *http.Request) {
	var req SubmitTextRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.submit(w, r, domain.TaskTypeTextProcessing, task.Payload{
		Text:    req.Content,
		Options: req.Options.ToDomain(),
	})
}

// SubmitURL handles POST /processor/url.
func (h *ProcessorHandler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	var req SubmitURLRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.submit(w, r, domain.TaskTypeURLProcessing, task.Payload{
		URL:     req.URL,
		Options: req.Options.ToDomain(),
	})
}

// SubmitFile handles POST /processor/file.
func (h *ProcessorHandler) SubmitFile(w http.ResponseWriter, r *http.Request) {
	var req SubmitFileRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.submit(w, r, domain.TaskTypeFileUpload, task.Payload{
		FileName: req.FileName,
		FileData: req.Content,
		Options:  req.Options.ToDomain(),
	})
}

// SubmitGenerate handles POST /processor/generate. It shares the text
// request shape but records the task under the explicit generation type.
func (h *ProcessorHandler) SubmitGenerate(w http.ResponseWriter, r *http.Request) {
	var req SubmitTextRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.submit(w, r, domain.TaskTypeFlashcardGeneration, task.Payload{
		Text:    req.Content,
		Options: req.Options.ToDomain(),
	})
}

// SubmitExport handles POST /processor/export.
func (h *ProcessorHandler) SubmitExport(w http.ResponseWriter, r *http.Request) {
	var req SubmitExportRequest
	if !h.decode(w, r, &req) {
		return
	}

	setID, err := uuid.Parse(req.SetID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid set ID")
		return
	}

	h.submit(w, r, domain.TaskTypeExport, task.Payload{SetID: setID})
}

// GetTask handles GET /processor/task/{taskId}.
func (h *ProcessorHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "taskId"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	t, err := h.processor.GetTask(r.Context(), userID, taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// CancelTask handles DELETE /processor/task/{taskId}.
func (h *ProcessorHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "taskId"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.processor.CancelTask(r.Context(), userID, taskID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// decode parses and validates a request body, writing a 400 response on
// failure. Returns true when the body is valid.
func (h *ProcessorHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := h.validator.Struct(v); err != nil {
		h.logger.Debug("request validation failed", "error", err, "path", r.URL.Path)
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request parameters")
		return false
	}
	return true
}

// submit runs the common submission path: resolve the caller, hand the
// payload to the service, acknowledge with 202 and the task ID.
func (h *ProcessorHandler) submit(w http.ResponseWriter, r *http.Request, taskType domain.TaskType, payload task.Payload) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	t, err := h.processor.Submit(r.Context(), userID, taskType, payload)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitResponse{TaskID: t.ID.String()})
}
