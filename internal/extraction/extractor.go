package extraction

import (
	"context"
)

// SourceKind identifies where submitted content came from.
type SourceKind string

// Possible source kinds
const (
	SourceText SourceKind = "text"
	SourceURL  SourceKind = "url"
	SourceFile SourceKind = "file"
)

// Source is the raw input of an extraction: exactly one of Text, URL, or
// the FileName/Data pair is populated depending on Kind.
type Source struct {
	Kind     SourceKind
	Text     string
	URL      string
	FileName string
	Data     []byte
}

// NormalizedContent is the cleaned-up text handed to the generator.
type NormalizedContent struct {
	Title string
	Text  string
}

// Extractor turns a raw submission source into normalized content.
// This interface is the boundary to content-extraction collaborators;
// implementations for rich document formats (PDF, DOCX) live outside
// the core and plug in here.
type Extractor interface {
	// Extract normalizes the given source. Errors are reported through
	// the package sentinel errors so the pipeline can classify them.
	Extract(ctx context.Context, src Source) (*NormalizedContent, error)
}
