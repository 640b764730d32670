package domain

import "fmt"

// Code is a machine-readable error classification.
type Code string

// Error codes surfaced by roster operations.
const (
	// CodeValidation marks rejected input such as an empty name or an out-of-range rank.
	CodeValidation Code = "VALIDATION"
	// CodeParse marks unrecognised rank text.
	CodeParse Code = "PARSE"
	// CodeIO marks missing, unreadable or unwritable storage.
	CodeIO Code = "IO"
	// CodeSerialization marks encoding failures while saving.
	CodeSerialization Code = "SERIALIZATION"
	// CodeDeserialization marks malformed persisted content, including unknown type tags.
	CodeDeserialization Code = "DESERIALIZATION"
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrValidation      = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrParse           = &Error{Code: CodeParse, Message: "parse failed"}
	ErrIO              = &Error{Code: CodeIO, Message: "io failed"}
	ErrSerialization   = &Error{Code: CodeSerialization, Message: "serialization failed"}
	ErrDeserialization = &Error{Code: CodeDeserialization, Message: "deserialization failed"}
)

// Error is the roster error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates an error with a code and formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an error with a code that wraps cause.
func WrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
