// Package gemini implements the generation.Generator interface using
// Google's Gemini API. It renders a prompt from the submitted content and
// generation options, calls the API with exponential backoff for
// transient failures, and maps the model's JSON response to domain
// flashcards.
package gemini
