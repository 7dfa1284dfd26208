package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by lookups when no row matches the identifier.
	ErrNotFound = errors.New("not found")

	// ErrInvalidObject means no category holds a valid object for the id.
	ErrInvalidObject = errors.New("invalid object")

	// ErrAmbiguousObject means more than one valid object carries the id.
	ErrAmbiguousObject = errors.New("object returns more than one result")

	// ErrMalformedLine means an input line has fewer than three fields.
	ErrMalformedLine = errors.New("invalid line")

	// ErrIntegrity is returned by the pre-load check of a bulk file.
	ErrIntegrity = errors.New("bulk file integrity check failed")
)

// ClassifyError reports why an object id could not be classified.
type ClassifyError struct {
	ObjectID string
	Matches  int
	Err      error // ErrInvalidObject or ErrAmbiguousObject
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classify %q: %v (%d matches)", e.ObjectID, e.Err, e.Matches)
}

func (e *ClassifyError) Unwrap() error { return e.Err }

// IntegrityError describes the first defect found in a bulk file.
type IntegrityError struct {
	Line   int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: line %d: %s", ErrIntegrity, e.Line, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }
