// Package extraction turns raw submissions (text, URLs, uploaded files)
// into normalized content suitable for flashcard generation. It defines
// the Extractor boundary interface and a built-in implementation covering
// plain text, HTML pages, and plain-text file uploads.
package extraction
