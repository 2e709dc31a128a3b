// Package record encodes and decodes the compiled cpod record stream.
//
// Each record is laid out as
//
//	u64 total | type code | 0x00 | field name | 0x00 | payload
//
// where total counts every byte after itself. The type code is the kind byte
// of each node of the type tree, with '<' and '>' around the parameters of
// composites and the length of fixed arrays in ASCII digits after the
// element type. Payloads are little-endian: fixed-width scalars, strings and
// dynamic containers with a u64 count prefix, arrays, pairs and tuples as
// bare element sequences.
package record

import (
	"strconv"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/value"
)

// LenSize is the width of the total length and count prefixes.
const LenSize = 8

// AppendRecord frames one record and appends it to dst.
func AppendRecord(dst, code []byte, name string, payload []byte) []byte {
	total := len(code) + 1 + len(name) + 1 + len(payload)
	dst = common.AppendUint(dst, uint64(total), LenSize)
	dst = append(dst, code...)
	dst = append(dst, 0)
	dst = append(dst, name...)
	dst = append(dst, 0)
	return append(dst, payload...)
}

// AppendType appends the type code of t.
func AppendType(dst []byte, t *value.Type) []byte {
	dst = append(dst, t.Kind.ID())
	if t.IsScalar() {
		return dst
	}
	dst = append(dst, '<')
	for _, e := range t.Elems {
		dst = AppendType(dst, e)
	}
	if t.Kind == value.Array {
		dst = strconv.AppendInt(dst, int64(t.Len), 10)
	}
	return append(dst, '>')
}

// AppendValue appends the payload of v.
func AppendValue(dst []byte, v value.Value) []byte {
	switch k := v.Kind(); {
	case k == value.Bool:
		if v.Bool() {
			return append(dst, 1)
		}
		return append(dst, 0)
	case k.IsInteger():
		return common.AppendUint(dst, v.Uint(), k.Width())
	case k.IsFloat():
		return common.AppendFloat(dst, v.Float(), k.Width())
	case k == value.String:
		dst = common.AppendUint(dst, uint64(len(v.Str())), LenSize)
		return append(dst, v.Str()...)
	case k.IsDynamic():
		dst = common.AppendUint(dst, uint64(v.Len()), LenSize)
	}
	for _, e := range v.Elems() {
		dst = AppendValue(dst, e)
	}
	return dst
}

// Encode appends a complete record holding v under name.
func Encode(dst []byte, name string, v value.Value) []byte {
	code := AppendType(nil, v.Type())
	payload := AppendValue(nil, v)
	return AppendRecord(dst, code, name, payload)
}
