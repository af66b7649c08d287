package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an artifact id is unknown.
var ErrNotFound = errors.New("file not found")

// ErrNotGenerated is returned when a download is requested for a summary
// or quiz that has not been generated yet.
var ErrNotGenerated = errors.New("file not generated yet")

// ClientInputError reports a request the client must fix (bad file,
// bad download type, malformed body).
type ClientInputError struct {
	Message string
}

func (e *ClientInputError) Error() string { return e.Message }

// InvalidInput returns a *ClientInputError with a formatted message.
func InvalidInput(format string, args ...any) error {
	return &ClientInputError{Message: fmt.Sprintf(format, args...)}
}

// ExtractionError wraps a failure of the document extraction backend.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GenerationError wraps a failure of the generative model backend, including
// responses that do not have the required shape.
type GenerationError struct {
	Kind string
	Err  error
}

func (e *GenerationError) Error() string {
	return e.Kind + " generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }
