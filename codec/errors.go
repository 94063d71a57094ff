package codec

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfRange is returned when a decoded value does not fit the
	// requested host type.
	ErrOutOfRange = errors.New("value out of range")

	// ErrShortBuffer is returned when a binary value is truncated.
	ErrShortBuffer = errors.New("insufficient data")
)

// UnsupportedTypeError is returned when no codec accepts a value for encoding.
type UnsupportedTypeError struct {
	Value any
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported value type for encoding: %T", e.Value)
}

// NoDecoderError is returned when no codec can produce the requested host type
// from a column.
type NoDecoderError struct {
	Target reflect.Type
	Column *ColumnDescriptor
}

func (e *NoDecoderError) Error() string {
	return fmt.Sprintf("No decoder for type %s and column type %s", e.Target, e.Column.TypeName())
}

// Transient marks decode failures as scoped to one value read.
func (e *NoDecoderError) Transient() bool { return true }

// ParseError is returned when a text value does not match the expected format.
type ParseError struct {
	Raw      string
	Expected string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%q cannot be parsed as %s: %v", e.Raw, e.Expected, e.Err)
	}

	return fmt.Sprintf("%q cannot be parsed as %s", e.Raw, e.Expected)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Transient() bool { return true }

func parseError(raw []byte, expected string, err error) error {
	return &ParseError{Raw: string(raw), Expected: expected, Err: err}
}
