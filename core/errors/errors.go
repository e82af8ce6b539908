// Package errors provides the error taxonomy shared by the succinct store packages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for buffer, enum and codec failures
var (
	// ErrOutOfRange indicates a read or write past the logical length of a buffer
	ErrOutOfRange = errors.New("out of range")
	// ErrInvalidValue indicates a byte outside 0-255 or a malformed selector
	ErrInvalidValue = errors.New("invalid value")
	// ErrOverflow indicates a varint that needs more than four bytes
	ErrOverflow = errors.New("overflow")
	// ErrUnknownCategory indicates an enum category that was never initialized
	ErrUnknownCategory = errors.New("unknown enum category")
	// ErrUnknownValue indicates an enum lookup for a value that was never recorded
	ErrUnknownValue = errors.New("unknown enum value")
	// ErrIndexNotBuilt indicates a decode attempted before the index was built
	ErrIndexNotBuilt = errors.New("index not built")
	// ErrMalformedScopeLabel indicates a scope label with the wrong number of components
	ErrMalformedScopeLabel = errors.New("malformed scope label")
	// ErrItemTooLarge indicates an encoded item longer than the 6-bit length field allows
	ErrItemTooLarge = errors.New("item too large")
	// ErrInvalidReference indicates a malformed chapter/verse reference
	ErrInvalidReference = errors.New("invalid reference")
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "docSet", "document", "sequence")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ScopeLabelError reports a scope label whose component count does not match its kind.
type ScopeLabelError struct {
	Label    string
	Expected int
	Got      int
}

func (e *ScopeLabelError) Error() string {
	if e.Expected == 0 {
		return fmt.Sprintf("malformed scope label %q: unknown scope kind", e.Label)
	}
	return fmt.Sprintf("malformed scope label %q: expected %d components, got %d", e.Label, e.Expected, e.Got)
}

func (e *ScopeLabelError) Unwrap() error {
	return ErrMalformedScopeLabel
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "reference", "USX", "succinct JSON")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewScopeLabel creates a ScopeLabelError
func NewScopeLabel(label string, expected, got int) *ScopeLabelError {
	return &ScopeLabelError{
		Label:    label,
		Expected: expected,
		Got:      got,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
