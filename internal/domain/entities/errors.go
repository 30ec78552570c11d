package entities

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy. Every failure surfaced by a collaborator is classified into one of these.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrTransport    = errors.New("transport failure")
)

// Common errors
var (
	ErrProjectNotFound   = fmt.Errorf("project %w", ErrNotFound)
	ErrTaskNotFound      = fmt.Errorf("task %w", ErrNotFound)
	ErrRowNotFound       = fmt.Errorf("row %w", ErrNotFound)
	ErrLabelNotFound     = fmt.Errorf("label %w", ErrNotFound)
	ErrChecklistNotFound = fmt.Errorf("checklist item %w", ErrNotFound)
	ErrInvalidDateRange  = fmt.Errorf("%w: end date is before start date", ErrValidation)
	ErrMissingDates      = fmt.Errorf("%w: start and end dates are required", ErrValidation)
)

// ErrorKind is the classification of a failure.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation"
	KindTransport    ErrorKind = "transport"
)

// Classify maps an error onto the taxonomy. Anything unrecognised, including
// deadlines and cancellations, counts as a transport failure.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTransport
	default:
		return KindTransport
	}
}
