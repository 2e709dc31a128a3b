package common

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax              = errors.New("syntax error")
	ErrUnexpectedCharacter = fmt.Errorf("%w: unexpected character", ErrSyntax)
	ErrInvalidCharacter    = fmt.Errorf("%w: invalid character", ErrSyntax)
	ErrFieldNotFound       = errors.New("field not found")
	ErrAmbiguousField      = errors.New("ambiguous or duplicate field")
	ErrLengthMismatch      = errors.New("length mismatch")
	ErrInvalidNumeric      = errors.New("invalid numeric literal")
	ErrInvalidBool         = errors.New("invalid bool literal")
	ErrInvalidEscape       = errors.New("invalid escape sequence")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrUnsupported         = errors.New("unsupported type")
	ErrTruncated           = errors.New("truncated input")
)

// PosError ties a sentinel error to a byte offset in the source buffer.
type PosError struct {
	Pos int
	Err error
	Msg string
}

func (e *PosError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%v at offset %d", e.Err, e.Pos)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Pos, e.Msg)
}

func (e *PosError) Unwrap() error { return e.Err }

// Errorf builds a PosError with a formatted message.
func Errorf(pos int, err error, format string, args ...any) error {
	return &PosError{Pos: pos, Err: err, Msg: fmt.Sprintf(format, args...)}
}
