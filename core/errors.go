package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrLengthMismatch   = errors.New("length mismatch")
	ErrValueMismatch    = errors.New("value mismatch")
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnboundedStream  = errors.New("variable length field cannot complete in a stream")
	ErrDefinition       = errors.New("invalid structure definition")
	ErrUnknownField     = errors.New("unknown field")
)

// FieldError annotates a failure with the structure type and field it happened in.
// Nested structures produce nested FieldErrors.
type FieldError struct {
	Struct string
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Struct, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func lengthErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLengthMismatch, fmt.Sprintf(format, args...))
}

func shortErr(need, have int) error {
	return fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientData, need, have)
}

func definitionErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDefinition, fmt.Sprintf(format, args...))
}
