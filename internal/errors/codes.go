package errors

import (
	"errors"
	"fmt"
)

// Code classifies parse failures so callers can decide recovery policy
// without string matching.
type Code int

const (
	// CodeMalformedPath indicates an SSTable path with too few components
	// or an empty required segment.
	CodeMalformedPath Code = iota + 1
	// CodeMultipleOutput indicates an end line listing more than one
	// output SSTable, which the end grammar does not support.
	CodeMultipleOutput
	// CodeMissingSource indicates a named input log file that does not
	// exist. Always recovered: the file is skipped with a warning.
	CodeMissingSource
)

// String returns a stable name for the code, used in metrics labels.
func (c Code) String() string {
	switch c {
	case CodeMalformedPath:
		return "malformed_path"
	case CodeMultipleOutput:
		return "multiple_output"
	case CodeMissingSource:
		return "missing_source"
	default:
		return "unknown"
	}
}

// ParseError is a structured error with a classification code and an
// optional underlying cause.
type ParseError struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewMalformedPath creates a malformed-path error for the given path.
func NewMalformedPath(path, reason string) *ParseError {
	return &ParseError{
		Code:    CodeMalformedPath,
		Message: fmt.Sprintf("invalid sstable path %q: %s", path, reason),
	}
}

// NewMultipleOutput creates a multiple-output error for a raw bracketed
// output list.
func NewMultipleOutput(raw string) *ParseError {
	return &ParseError{
		Code:    CodeMultipleOutput,
		Message: fmt.Sprintf("more than one output sstable: %q", raw),
	}
}

// NewMissingSource creates a missing-source error for a log file path.
func NewMissingSource(path string, cause error) *ParseError {
	return &ParseError{
		Code:    CodeMissingSource,
		Message: fmt.Sprintf("log file %s not found", path),
		Cause:   cause,
	}
}

// IsCode reports whether err or any error it wraps is a ParseError with
// the given code.
func IsCode(err error, code Code) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// CodeOf returns the classification code of err, or 0 when err is not a
// ParseError.
func CodeOf(err error) Code {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}
