// Package cpod stores plain data as C++ style declarations.
//
// An Archive holds the text form, `std::vector<int>a[3]={1,2,3};`, and reads
// or writes single declarations by name. The same text compiles to a binary
// record stream (package compiler) that package record loads back, and a
// Codec maps Go structs onto either form.
package cpod

import (
	"errors"

	"github.com/rawbytedev/cpod/internal/common"
)

var (
	ErrSyntax              = common.ErrSyntax
	ErrUnexpectedCharacter = common.ErrUnexpectedCharacter
	ErrInvalidCharacter    = common.ErrInvalidCharacter
	ErrFieldNotFound       = common.ErrFieldNotFound
	ErrAmbiguousField      = common.ErrAmbiguousField
	ErrLengthMismatch      = common.ErrLengthMismatch
	ErrInvalidNumeric      = common.ErrInvalidNumeric
	ErrInvalidBool         = common.ErrInvalidBool
	ErrInvalidEscape       = common.ErrInvalidEscape
	ErrTypeMismatch        = common.ErrTypeMismatch
	ErrUnsupported         = common.ErrUnsupported
	ErrTruncated           = common.ErrTruncated

	ErrNotStruct    = errors.New("cpod: expected struct")
	ErrNotStructPtr = errors.New("cpod: expected pointer to struct")
)
