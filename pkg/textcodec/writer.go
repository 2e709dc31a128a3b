// Package textcodec writes values as C-style declarations and reads them
// back from a normalized buffer.
package textcodec

import (
	"fmt"
	"strconv"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/value"
)

// Write appends the declaration `type name=literal;` for v to dst. Composites
// carry a count marker, fixed arrays of scalars use the C array form
// `elem name[n]={...};`. The output is already normalized.
func Write(dst []byte, name string, v value.Value, flags value.FormatFlags) ([]byte, error) {
	if !ValidName(name) {
		return dst, fmt.Errorf("%w: invalid field name %q", common.ErrSyntax, name)
	}
	if !v.IsValid() {
		return dst, fmt.Errorf("field %q: %w: zero value", name, common.ErrUnsupported)
	}
	t := v.Type()
	typeName := flags.TypeName(t)
	if t.Kind == value.Array && t.Elem().IsScalar() {
		typeName = flags.TypeName(t.Elem())
	}
	dst = append(dst, typeName...)
	if common.IsIdentChar(typeName[len(typeName)-1]) {
		dst = append(dst, ' ')
	}
	dst = append(dst, name...)
	if !t.IsScalar() {
		dst = append(dst, '[')
		dst = strconv.AppendInt(dst, int64(v.Len()), 10)
		dst = append(dst, ']')
	}
	dst = append(dst, '=')
	dst = AppendLiteral(dst, v, flags)
	return append(dst, ';'), nil
}

// AppendLiteral appends the value literal of v, recursing into composites.
func AppendLiteral(dst []byte, v value.Value, flags value.FormatFlags) []byte {
	switch k := v.Kind(); {
	case k == value.Bool:
		return strconv.AppendBool(dst, v.Bool())
	case k.IsSigned():
		n := v.Int()
		if n < 0 {
			return appendUint(append(dst, '-'), uint64(-(n+1))+1, flags)
		}
		return appendUint(dst, uint64(n), flags)
	case k.IsInteger():
		return appendUint(dst, v.Uint(), flags)
	case k == value.Float32:
		return strconv.AppendFloat(dst, v.Float(), flags.FloatVerb(), -1, 32)
	case k == value.Float64:
		return strconv.AppendFloat(dst, v.Float(), flags.FloatVerb(), -1, 64)
	case k == value.String:
		return common.AppendQuoted(dst, v.Str())
	}
	dst = append(dst, '{')
	for i, e := range v.Elems() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = AppendLiteral(dst, e, flags)
	}
	return append(dst, '}')
}

func appendUint(dst []byte, x uint64, flags value.FormatFlags) []byte {
	base := flags.IntBase()
	switch base {
	case 16:
		dst = append(dst, '0', 'x')
	case 2:
		dst = append(dst, '0', 'b')
	}
	start := len(dst)
	dst = strconv.AppendUint(dst, x, base)
	if base == 16 && flags.Has(value.IntUpper) {
		for i := start; i < len(dst); i++ {
			if c := dst[i]; c >= 'a' && c <= 'f' {
				dst[i] = c - 'a' + 'A'
			}
		}
	}
	return dst
}

// ValidName reports whether name can be used as a field name.
func ValidName(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !common.IsIdentChar(name[i]) {
			return false
		}
	}
	return true
}
