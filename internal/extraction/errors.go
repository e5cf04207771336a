package extraction

import "errors"

// Common errors returned by the extraction package
var (
	// ErrEmptySource is returned when the source carries no content at all.
	ErrEmptySource = errors.New("source contains no content")

	// ErrUnsupportedSource is returned for a source kind the extractor
	// does not handle.
	ErrUnsupportedSource = errors.New("unsupported source kind")

	// ErrUnsupportedFileType is returned when an uploaded file's format
	// has no registered extractor.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFetchFailed is returned when a URL source cannot be retrieved.
	ErrFetchFailed = errors.New("failed to fetch URL content")
)
