package tripod

import (
	"errors"
	"fmt"

	"github.com/triplekit/tripod/core"
)

var (
	// ErrClosedDocument is returned when an operation targets a Document
	// that is not open. Match with errors.Is.
	ErrClosedDocument = errors.New("document is closed")

	// ErrBridgeClosed is returned when work is submitted after Bridge.Close.
	ErrBridgeClosed = errors.New("bridge is closed")

	errEmptyPath = errors.New("path must not be empty")
)

// OpenFailedError indicates the dataset engine could not map a file.
//
// The engine's original error can be accessed via errors.Unwrap.
type OpenFailedError struct {
	Path  string
	cause error
}

func (e *OpenFailedError) Error() string {
	return fmt.Sprintf("opening dataset %q: %v", e.Path, e.cause)
}

func (e *OpenFailedError) Unwrap() error { return e.cause }

// ClosedDocumentError indicates an operation on a non-open Document.
// It unwraps to ErrClosedDocument.
type ClosedDocumentError struct {
	Op string
}

func (e *ClosedDocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrClosedDocument)
}

func (e *ClosedDocumentError) Unwrap() error { return ErrClosedDocument }

// SearchFailedError indicates the dataset engine failed during pattern
// iteration. Rare, but representable.
//
// The engine's original error can be accessed via errors.Unwrap.
type SearchFailedError struct {
	Pattern core.Pattern
	cause   error
}

func (e *SearchFailedError) Error() string {
	return fmt.Sprintf("searching %s: %v", e.Pattern, e.cause)
}

func (e *SearchFailedError) Unwrap() error { return e.cause }
