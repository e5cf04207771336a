package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/recall-api/internal/api"
	apiMiddleware "github.com/phrazzld/recall-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	processorHandler := api.NewProcessorHandler(app.processor, app.validate, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Task submission endpoints
			r.Post("/processor/text", processorHandler.SubmitText)
			r.Post("/processor/url", processorHandler.SubmitURL)
			r.Post("/processor/file", processorHandler.SubmitFile)
			r.Post("/processor/generate", processorHandler.SubmitGenerate)
			r.Post("/processor/export", processorHandler.SubmitExport)

			// Task polling and cancellation
			r.Get("/processor/task/{taskId}", processorHandler.GetTask)
			r.Delete("/processor/task/{taskId}", processorHandler.CancelTask)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
