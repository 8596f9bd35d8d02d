package types

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared across the loop's components
var (
	// ErrGenerationFailed marks a model invocation that produced no usable draft
	ErrGenerationFailed = errors.New("generation failed")

	// ErrEvaluationFailed marks a Scorer attempt that produced no valid result
	ErrEvaluationFailed = errors.New("evaluation failed")

	// ErrThreadNotFound is returned by stores when no checkpoint exists
	ErrThreadNotFound = errors.New("thread not found")

	// ErrThreadBusy is returned when another run owns the thread
	ErrThreadBusy = errors.New("thread is being processed by another run")
)

// ValidationError reports invalid caller-supplied parameters.
// It is fatal for the turn and raised before the loop starts.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// ExtractionKind classifies why structured extraction failed
type ExtractionKind string

const (
	ExtractionEmpty      ExtractionKind = "empty"
	ExtractionModel      ExtractionKind = "model"
	ExtractionParse      ExtractionKind = "parse"
	ExtractionSchema     ExtractionKind = "schema"
	ExtractionConstraint ExtractionKind = "constraint"
)

// ExtractionError reports that terminal content could not be mapped onto
// the target schema. It is fatal for the turn.
type ExtractionError struct {
	Kind   ExtractionKind
	Schema string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction into %s failed (%s): %s", e.Schema, e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ErrorKind is the user-facing classification carried by error events
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindExtraction  ErrorKind = "extraction"
	ErrorKindCanceled    ErrorKind = "canceled"
	ErrorKindBusy        ErrorKind = "busy"
	ErrorKindPersistence ErrorKind = "persistence"
	ErrorKindInternal    ErrorKind = "internal"
)

// PersistenceError wraps checkpoint load/save failures
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// KindOf classifies an error returned by a turn
func KindOf(err error) ErrorKind {
	var validationErr *ValidationError
	var extractionErr *ExtractionError
	var persistenceErr *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return ErrorKindValidation
	case errors.As(err, &extractionErr):
		return ErrorKindExtraction
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCanceled
	case errors.Is(err, ErrThreadBusy):
		return ErrorKindBusy
	case errors.As(err, &persistenceErr):
		return ErrorKindPersistence
	default:
		return ErrorKindInternal
	}
}

// UserMessage returns the generic notice shown to end users for an error
// kind. Raw error text only goes to logs.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case ErrorKindValidation:
		return "The request is missing required information or contains invalid values."
	case ErrorKindExtraction:
		return "The generated content could not be converted into the requested format. Please try again."
	case ErrorKindCanceled:
		return "The request was canceled before it finished."
	case ErrorKindBusy:
		return "This conversation is already being processed. Please wait for it to finish."
	case ErrorKindPersistence:
		return "The conversation could not be saved or loaded."
	default:
		return "Something went wrong while generating the content."
	}
}
