// Package generation defines the boundary interface to flashcard
// generation collaborators and the error taxonomy they report through.
// The Gemini-backed implementation lives in internal/platform/gemini.
package generation
