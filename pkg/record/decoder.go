package record

import (
	"bytes"
	"fmt"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/value"
)

// maxEmptyElems bounds counts of elements that occupy no payload bytes, such
// as zero-length arrays, since they cannot be checked against the input size.
const maxEmptyElems = 1 << 16

// DecodeType parses a complete type code.
func DecodeType(code []byte) (*value.Type, error) {
	t, n, err := decodeType(code, 0)
	if err != nil {
		return nil, err
	}
	if n != len(code) {
		return nil, common.Errorf(n, common.ErrSyntax, "trailing bytes after type code")
	}
	return t, nil
}

func decodeType(code []byte, pos int) (*value.Type, int, error) {
	if pos >= len(code) {
		return nil, pos, common.Errorf(pos, common.ErrTruncated, "type code ends early")
	}
	k, ok := value.KindFromID(code[pos])
	if !ok {
		return nil, pos, common.Errorf(pos, common.ErrUnsupported, "kind id 0x%02x", code[pos])
	}
	pos++
	if k.IsScalar() {
		return value.Scalar(k), pos, nil
	}
	if pos >= len(code) || code[pos] != '<' {
		return nil, pos, common.Errorf(pos, common.ErrSyntax, "expected '<' after %s", k)
	}
	pos++
	t := &value.Type{Kind: k}
	for pos < len(code) && code[pos] != '>' && !isDigit(code[pos]) {
		e, next, err := decodeType(code, pos)
		if err != nil {
			return nil, next, err
		}
		t.Elems = append(t.Elems, e)
		pos = next
	}
	if k == value.Array {
		start := pos
		n := 0
		for pos < len(code) && isDigit(code[pos]) {
			n = n*10 + int(code[pos]-'0')
			if n > 1<<31 {
				return nil, pos, common.Errorf(start, common.ErrSyntax, "array length overflows")
			}
			pos++
		}
		if pos == start {
			return nil, pos, common.Errorf(pos, common.ErrSyntax, "array length missing")
		}
		t.Len = n
	}
	if pos >= len(code) {
		return nil, pos, common.Errorf(pos, common.ErrTruncated, "type code ends before '>'")
	}
	if code[pos] != '>' {
		return nil, pos, common.Errorf(pos, common.ErrSyntax, "expected '>'")
	}
	if err := t.Validate(); err != nil {
		return nil, pos, err
	}
	return t, pos + 1, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// DecodeValue parses a payload of type t. The payload must be consumed
// exactly.
func DecodeValue(t *value.Type, payload []byte) (value.Value, error) {
	v, rest, err := decodeValue(t, payload)
	if err != nil {
		return value.Value{}, err
	}
	if len(rest) != 0 {
		return value.Value{}, fmt.Errorf("%w: %d trailing payload bytes", common.ErrSyntax, len(rest))
	}
	return v, nil
}

func decodeValue(t *value.Type, b []byte) (value.Value, []byte, error) {
	k := t.Kind
	switch {
	case k == value.Bool:
		if len(b) < 1 {
			return value.Value{}, b, truncated(t)
		}
		if b[0] > 1 {
			return value.Value{}, b, fmt.Errorf("%w: byte 0x%02x", common.ErrInvalidBool, b[0])
		}
		return value.NewBool(b[0] == 1), b[1:], nil
	case k.IsInteger():
		w := k.Width()
		if len(b) < w {
			return value.Value{}, b, truncated(t)
		}
		x := common.ReadUint(b, w)
		if k.IsSigned() {
			v, err := value.FromInt(k, common.SignExtend(x, w))
			return v, b[w:], err
		}
		v, err := value.FromUint(k, x)
		return v, b[w:], err
	case k.IsFloat():
		w := k.Width()
		if len(b) < w {
			return value.Value{}, b, truncated(t)
		}
		v, err := value.FromFloat(k, common.ReadFloat(b, w))
		return v, b[w:], err
	case k == value.String:
		n, rest, err := readCount(b, 1)
		if err != nil {
			return value.Value{}, b, err
		}
		return value.NewString(string(rest[:n])), rest[n:], nil
	}

	var (
		count int
		err   error
	)
	switch k {
	case value.Array:
		count = t.Len
		if size := minSize(t.Elem()); size > 0 && count > len(b)/size {
			return value.Value{}, b, truncated(t)
		} else if size == 0 && count > maxEmptyElems {
			return value.Value{}, b, fmt.Errorf("%w: %d empty elements", common.ErrUnsupported, count)
		}
	case value.Pair, value.Tuple:
		count = len(t.Elems)
	default:
		count, b, err = readCount(b, minSize(value.ElemType(t, 0)))
		if err != nil {
			return value.Value{}, b, err
		}
	}
	elems := make([]value.Value, 0, min(count, len(b)+1))
	for i := 0; i < count; i++ {
		var e value.Value
		e, b, err = decodeValue(value.ElemType(t, i), b)
		if err != nil {
			return value.Value{}, b, err
		}
		elems = append(elems, e)
	}
	v, err := value.Compose(t, elems...)
	return v, b, err
}

// readCount reads a u64 count of elements at least size bytes wide each and
// checks it against the remaining input.
func readCount(b []byte, size int) (int, []byte, error) {
	if len(b) < LenSize {
		return 0, b, fmt.Errorf("%w: count prefix", common.ErrTruncated)
	}
	n := common.ReadUint(b, LenSize)
	b = b[LenSize:]
	switch {
	case size == 0 && n > maxEmptyElems:
		return 0, b, fmt.Errorf("%w: %d empty elements", common.ErrUnsupported, n)
	case size > 0 && n > uint64(len(b)/size):
		return 0, b, fmt.Errorf("%w: count %d exceeds remaining %d bytes", common.ErrTruncated, n, len(b))
	}
	return int(n), b, nil
}

// minSize is the smallest payload a value of type t can have.
func minSize(t *value.Type) int {
	switch k := t.Kind; {
	case k == value.Bool:
		return 1
	case k.IsInteger(), k.IsFloat():
		return k.Width()
	case k.IsDynamic():
		return LenSize
	case k == value.Array:
		return t.Len * minSize(t.Elem())
	}
	n := 0
	for _, e := range t.Elems {
		n += minSize(e)
	}
	return n
}

func truncated(t *value.Type) error {
	return fmt.Errorf("%w: %s payload", common.ErrTruncated, t)
}

// splitCString returns the bytes of b up to the first NUL and the remainder
// after it.
func splitCString(b []byte) ([]byte, []byte, bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return nil, b, false
	}
	return b[:i], b[i+1:], true
}
