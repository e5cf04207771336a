package gemini

import "errors"

// ErrEmptyContent is returned when card generation is attempted on empty
// source content.
var ErrEmptyContent = errors.New("content cannot be empty")
