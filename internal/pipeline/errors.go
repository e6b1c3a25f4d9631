package pipeline

import "errors"

// Validation errors returned before any detector runs
var (
	ErrEmptyContent    = errors.New("content is empty")
	ErrInvalidEncoding = errors.New("content is not valid UTF-8")
	ErrContentTooLarge = errors.New("content exceeds maximum size")
)
