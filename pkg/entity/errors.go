package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDate is returned when date text does not match DateLayout.
	ErrMalformedDate = errors.New("malformed date")
	// ErrFieldType is returned when a value cannot be converted to the
	// declared field type.
	ErrFieldType = errors.New("incompatible field value")
)

// FieldError reports a value that could not be assigned to a field.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("entity: field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
