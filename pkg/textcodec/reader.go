package textcodec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/locate"
	"github.com/rawbytedev/cpod/pkg/scan"
	"github.com/rawbytedev/cpod/pkg/value"
)

// Read locates the outer-scope declaration of name in the normalized buffer
// and parses its literal as type t.
func Read(buf, name string, t *value.Type) (value.Value, error) {
	if err := t.Validate(); err != nil {
		return value.Value{}, fmt.Errorf("field %q: %w", name, err)
	}
	aliases, cArray := Aliases(t)
	d, err := locate.Locate(buf, name, aliases)
	if err != nil {
		return value.Value{}, err
	}
	return ReadDeclaration(buf, d, t, cArray[d.TypeName])
}

// ReadDeclaration parses a located declaration as type t. cArray reports
// whether the declaration was matched through its element spelling.
func ReadDeclaration(buf string, d locate.Declaration, t *value.Type, cArray bool) (value.Value, error) {
	name := d.FieldName
	switch {
	case cArray && !d.Marker:
		return value.Value{}, fmt.Errorf("field %q: %w: %s declared without a count marker", name, common.ErrTypeMismatch, d.TypeName)
	case t.IsScalar() && d.Marker:
		return value.Value{}, fmt.Errorf("field %q: %w: scalar %s declared with a count marker", name, common.ErrTypeMismatch, t)
	}
	lit := d.Literal(buf)
	if d.Length >= 0 {
		n, err := ElementCount(lit)
		if err != nil {
			return value.Value{}, fmt.Errorf("field %q: %w", name, err)
		}
		if n != d.Length {
			return value.Value{}, fmt.Errorf("field %q: %w: marker says %d, literal has %d", name, common.ErrLengthMismatch, d.Length, n)
		}
	}
	v, err := ParseLiteral(lit, t)
	if err != nil {
		return value.Value{}, fmt.Errorf("field %q: %w", name, err)
	}
	return v, nil
}

// Aliases returns every spelling a declaration of type t is searched under.
// The second result marks the C array spellings, element type first.
func Aliases(t *value.Type) ([]string, map[string]bool) {
	aliases := t.Aliases()
	cArray := make(map[string]bool)
	if t.Kind == value.Array || t.Kind == value.Vector {
		if elem := t.Elem(); elem.IsScalar() {
			for _, a := range elem.Aliases() {
				cArray[a] = true
				aliases = append(aliases, a)
			}
		}
	}
	return aliases, cArray
}

// ElementCount returns the number of top-level elements in a braced literal.
func ElementCount(lit string) (int, error) {
	spans, err := splitElements(lit)
	return len(spans), err
}

func splitElements(lit string) ([]scan.Span, error) {
	if len(lit) < 2 || lit[0] != '{' || scan.MatchBrace(lit, 0) != len(lit)-1 {
		return nil, fmt.Errorf("%w: expected braced list, got %q", common.ErrSyntax, lit)
	}
	inner := lit[1 : len(lit)-1]
	spans, ok := scan.SplitTopLevel(inner, ',')
	if !ok {
		return nil, fmt.Errorf("%w: unbalanced braces in %q", common.ErrSyntax, lit)
	}
	// a trailing comma is allowed
	if n := len(spans); n > 1 && spans[n-1].Start == spans[n-1].End {
		spans = spans[:n-1]
	}
	for i := range spans {
		spans[i].Start++
		spans[i].End++
	}
	return spans, nil
}

// ParseLiteral parses one value literal as type t.
func ParseLiteral(lit string, t *value.Type) (value.Value, error) {
	lit = strings.TrimSpace(lit)
	switch k := t.Kind; {
	case k == value.Bool:
		switch lit {
		case "true":
			return value.NewBool(true), nil
		case "false":
			return value.NewBool(false), nil
		}
		return value.Value{}, fmt.Errorf("%w: %q", common.ErrInvalidBool, lit)
	case k.IsInteger():
		return parseInteger(lit, k)
	case k.IsFloat():
		return parseFloat(lit, k)
	case k == value.String:
		s, err := common.Unquote(lit)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewString(s), nil
	}
	spans, err := splitElements(lit)
	if err != nil {
		return value.Value{}, err
	}
	if t.Kind == value.Pair || t.Kind == value.Tuple {
		if len(spans) != len(t.Elems) {
			return value.Value{}, fmt.Errorf("%w: %s needs %d elements, literal has %d", common.ErrLengthMismatch, t, len(t.Elems), len(spans))
		}
	}
	elems := make([]value.Value, len(spans))
	for i, sp := range spans {
		e, err := ParseLiteral(lit[sp.Start:sp.End], value.ElemType(t, i))
		if err != nil {
			return value.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = e
	}
	return value.Compose(t, elems...)
}

// splitNumber separates sign, base and digits of an integer literal and
// drops C integer suffixes.
func splitNumber(lit string) (neg bool, base int, digits string) {
	s := strings.TrimRight(lit, "uUlLzZ")
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	base = 10
	if len(s) > 1 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base, s = 16, s[2:]
		case 'b', 'B':
			base, s = 2, s[2:]
		}
	}
	return neg, base, s
}

func parseInteger(lit string, k value.Kind) (value.Value, error) {
	neg, base, digits := splitNumber(lit)
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return value.Value{}, fmt.Errorf("%w: %q", common.ErrInvalidNumeric, lit)
	}
	mag, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %q", common.ErrInvalidNumeric, lit)
	}
	if !k.IsSigned() {
		if neg && mag != 0 {
			return value.Value{}, fmt.Errorf("%w: negative literal %q for %s", common.ErrInvalidNumeric, lit, k)
		}
		return value.FromUint(k, mag)
	}
	switch {
	case neg && mag > 1<<63:
		return value.Value{}, fmt.Errorf("%w: %q overflows %s", common.ErrInvalidNumeric, lit, k)
	case !neg && mag > math.MaxInt64:
		return value.Value{}, fmt.Errorf("%w: %q overflows %s", common.ErrInvalidNumeric, lit, k)
	}
	n := int64(mag)
	if neg {
		n = -n
	}
	return value.FromInt(k, n)
}

func parseFloat(lit string, k value.Kind) (value.Value, error) {
	s := lit
	if n := len(s); n > 1 && (s[n-1] == 'f' || s[n-1] == 'F') {
		if c := s[n-2]; c == '.' || (c >= '0' && c <= '9') {
			s = s[:n-1]
		}
	}
	bits := 64
	if k == value.Float32 {
		bits = 32
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %q", common.ErrInvalidNumeric, lit)
	}
	return value.FromFloat(k, f)
}
