// Package errors provides standardized error types and helpers for the jwwconv codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotThisFormat indicates the input is not a Jw_cad drawing
	ErrNotThisFormat = errors.New("not a jww drawing")
	// ErrTruncatedOrCorrupt indicates a record runs past the end of the stream
	ErrTruncatedOrCorrupt = errors.New("truncated or corrupt")
	// ErrUnsupportedVersion indicates a header version outside the supported range
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrInvalidOption indicates a caller-supplied option failed validation
	ErrInvalidOption = errors.New("invalid option")
	// ErrIO indicates a file system failure
	ErrIO = errors.New("i/o error")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// Kind classifies an error for exit-status mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotThisFormat
	KindTruncatedOrCorrupt
	KindUnsupportedVersion
	KindInvalidOption
	KindIO
)

var kindNames = [...]string{
	KindUnknown:            "Unknown",
	KindNotThisFormat:      "NotThisFormat",
	KindTruncatedOrCorrupt: "TruncatedOrCorrupt",
	KindUnsupportedVersion: "UnsupportedVersion",
	KindInvalidOption:      "InvalidOption",
	KindIO:                 "IoError",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotThisFormat:
		return ErrNotThisFormat
	case KindTruncatedOrCorrupt:
		return ErrTruncatedOrCorrupt
	case KindUnsupportedVersion:
		return ErrUnsupportedVersion
	case KindInvalidOption:
		return ErrInvalidOption
	case KindIO:
		return ErrIO
	}
	return nil
}

// FormatError is a fatal decode failure. No partial document accompanies it.
type FormatError struct {
	Kind    Kind   // One of the format kinds
	Offset  int64  // Byte offset where decoding failed, -1 if unknown
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("jww: %s at offset %d: %s", e.Kind, e.Offset, e.Message)
	}
	return fmt.Sprintf("jww: %s: %s", e.Kind, e.Message)
}

func (e *FormatError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind.sentinel()
}

// Is reports a match against the kind sentinel even when Err is set.
func (e *FormatError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "directory", "block")
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

// ValidationError represents an option validation error with context
type ValidationError struct {
	Field   string // Option name that failed validation
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
	return ErrInvalidOption
}

// Is keeps InvalidOption matchable through a wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOption
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

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewFormat creates a FormatError
func NewFormat(kind Kind, offset int64, message string) *FormatError {
	return &FormatError{
		Kind:    kind,
		Offset:  offset,
		Message: message,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
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

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// KindOf classifies err. Errors outside the taxonomy report KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidOption):
		return KindInvalidOption
	case errors.Is(err, ErrNotThisFormat):
		return KindNotThisFormat
	case errors.Is(err, ErrUnsupportedVersion):
		return KindUnsupportedVersion
	case errors.Is(err, ErrTruncatedOrCorrupt):
		return KindTruncatedOrCorrupt
	case errors.Is(err, ErrIO):
		return KindIO
	}
	return KindUnknown
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
