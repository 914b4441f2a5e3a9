package domain

import (
	"errors"
	"fmt"
)

// Common domain errors returned by ledger operations. Typed errors below
// wrap these so callers can match with errors.Is.
var (
	// ErrValidation indicates that input failed bounds or format checks.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that a vote, problem, user, or report is absent.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateReport indicates that the reporter already reported the vote.
	ErrDuplicateReport = errors.New("already reported")

	// ErrDuplicateUser indicates that a username is already taken.
	ErrDuplicateUser = errors.New("username already exists")

	// ErrRateLimited indicates that a reporter exceeded the configured
	// report rate.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns ErrValidation so errors.Is matches every ValidationError.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// NotFoundError reports a lookup that found no live entity.
type NotFoundError struct {
	// Entity is the kind of entity that was looked up ("vote", "problem", ...).
	Entity string

	// ID is the identifier that was looked up.
	ID int
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: id=%d", e.Entity, e.ID)
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity string, id int) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// DuplicateReportError is returned when a (vote, reporter) pair already
// has a report.
type DuplicateReportError struct {
	VoteID     int
	ReporterID int
}

// Error implements the error interface for DuplicateReportError.
func (e *DuplicateReportError) Error() string {
	return fmt.Sprintf("vote %d already reported by user %d", e.VoteID, e.ReporterID)
}

// Unwrap returns ErrDuplicateReport.
func (e *DuplicateReportError) Unwrap() error { return ErrDuplicateReport }
