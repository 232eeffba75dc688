package engine

import (
	"errors"
	"fmt"

	"github.com/converge-sh/converge/internal/fsprobe"
)

// RunError represents a failure detected while converging.
//
// Run failures fall into four categories:
//   - Render failure: a template could not be resolved (always pre-mutation)
//   - I/O failure: a probe or mutation failed; the run aborts at that point
//   - Unsupported path type: the target exists as something the assertion
//     cannot manage (a directory where a file is asserted, for example)
//   - Handler failure: a dispatched handler returned an error; siblings still
//     ran, but the overall run is failed
//
// RunError includes structured fields so callers can report precisely which
// path or handler was involved without parsing messages.
type RunError struct {
	// Code identifies the failure category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the affected filesystem path or template ID, when one exists.
	Path string

	// Handler names the failed handler for handler failures.
	Handler string

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run failures.
type RunErrorCode string

const (
	// ErrCodeRenderFailure indicates a template failed to resolve.
	ErrCodeRenderFailure RunErrorCode = "RENDER_FAILURE"

	// ErrCodeIOFailure indicates a filesystem probe or mutation failed.
	ErrCodeIOFailure RunErrorCode = "IO_FAILURE"

	// ErrCodeUnsupportedPathType indicates the target exists as a type the
	// assertion cannot manage.
	ErrCodeUnsupportedPathType RunErrorCode = "UNSUPPORTED_PATH_TYPE"

	// ErrCodeHandlerFailure indicates a notified handler failed.
	ErrCodeHandlerFailure RunErrorCode = "HANDLER_FAILURE"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	switch {
	case e.Handler != "":
		return fmt.Sprintf("%s: %s (handler=%s)", e.Code, e.Message, e.Handler)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRenderFailure creates a RunError for a template that failed to resolve.
// Rendering happens before any mutation, so this error guarantees the
// filesystem is untouched.
func NewRenderFailure(templateID string, cause error) *RunError {
	return &RunError{
		Code:    ErrCodeRenderFailure,
		Message: "template rendering failed",
		Path:    templateID,
		Err:     cause,
	}
}

// NewIOFailure creates a RunError for a failed probe or mutation.
func NewIOFailure(path string, cause error) *RunError {
	return &RunError{
		Code:    ErrCodeIOFailure,
		Message: "filesystem operation failed",
		Path:    path,
		Err:     cause,
	}
}

// NewUnsupportedPathType creates a RunError for a target whose current type
// the assertion cannot manage.
func NewUnsupportedPathType(path string, got fsprobe.PathType, kind AssertionKind) *RunError {
	return &RunError{
		Code:    ErrCodeUnsupportedPathType,
		Message: fmt.Sprintf("cannot apply %s assertion to a %s", kind, got),
		Path:    path,
	}
}

// NewHandlerFailure creates a RunError for a handler that returned an error.
func NewHandlerFailure(handler string, cause error) *RunError {
	return &RunError{
		Code:    ErrCodeHandlerFailure,
		Message: "handler dispatch failed",
		Handler: handler,
		Err:     cause,
	}
}

// IsRenderFailure reports whether err is a render failure.
// Uses errors.As to handle wrapped errors.
func IsRenderFailure(err error) bool { return hasCode(err, ErrCodeRenderFailure) }

// IsIOFailure reports whether err is an I/O failure.
func IsIOFailure(err error) bool { return hasCode(err, ErrCodeIOFailure) }

// IsUnsupportedPathType reports whether err is an unsupported-path-type
// failure.
func IsUnsupportedPathType(err error) bool { return hasCode(err, ErrCodeUnsupportedPathType) }

// IsHandlerFailure reports whether err is (or aggregates) a handler failure.
func IsHandlerFailure(err error) bool { return hasCode(err, ErrCodeHandlerFailure) }

func hasCode(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
