package ingest

import (
	"errors"
	"fmt"

	"github.com/akave-ai/meteringest/internal/model"
)

var (
	// ErrMissingField reports a required key absent from a section.
	ErrMissingField = errors.New("missing required field")
	// ErrMalformedShape reports a value whose shape or type does not match the contract.
	ErrMalformedShape = errors.New("malformed shape")
)

// ValidationError describes the first contract violation found in a section.
// Kind is ErrMissingField or ErrMalformedShape.
type ValidationError struct {
	Domain model.Domain
	Field  string
	Kind   error
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Domain, e.Kind)
	if e.Field != "" {
		msg += fmt.Sprintf(" '%s'", e.Field)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func missingField(d model.Domain, field string) *ValidationError {
	return &ValidationError{Domain: d, Field: field, Kind: ErrMissingField}
}

func malformed(d model.Domain, field, detail string) *ValidationError {
	return &ValidationError{Domain: d, Field: field, Kind: ErrMalformedShape, Detail: detail}
}

// IngestError rejects a whole report. It names the domain whose section
// failed and wraps the underlying ValidationError.
type IngestError struct {
	Domain model.Domain
	Cause  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s section: %v", e.Domain, e.Cause)
}

func (e *IngestError) Unwrap() error { return e.Cause }
