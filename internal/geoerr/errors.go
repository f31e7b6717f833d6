// Package geoerr defines the error taxonomy shared by the spatial engines.
//
// ValidationError rejects a request before any computation. InsufficientDataError
// signals an empty-but-valid result. UpstreamFetchError degrades one data source.
// ComputationError marks a single skipped point, zone or route.
package geoerr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or out-of-range parameters.
type ValidationError struct {
	Problems []string
}

// NewValidationError builds a ValidationError from one or more problems.
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// Validationf builds a ValidationError with a single formatted problem.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// InsufficientDataError reports that an operation needs more input than it got.
type InsufficientDataError struct {
	Operation string
	Have      int
	Need      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data (have %d, need %d)", e.Operation, e.Have, e.Need)
}

// UpstreamFetchError reports that one external data source could not be read.
type UpstreamFetchError struct {
	Source string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Source, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// ComputationError reports an input item that could not be processed.
type ComputationError struct {
	Subject string // "sensor", "zone", "route"
	ID      string
	Reason  string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s %s skipped: %s", e.Subject, e.ID, e.Reason)
}

// IsValidation reports whether err contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInsufficient reports whether err contains an InsufficientDataError.
func IsInsufficient(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}

// IsUpstream reports whether err contains an UpstreamFetchError.
func IsUpstream(err error) bool {
	var ue *UpstreamFetchError
	return errors.As(err, &ue)
}

// IsComputation reports whether err contains a ComputationError.
func IsComputation(err error) bool {
	var ce *ComputationError
	return errors.As(err, &ce)
}
