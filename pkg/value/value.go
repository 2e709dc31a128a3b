package value

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rawbytedev/cpod/internal/common"
)

// Value is one instance of the value model. Scalars keep their payload in
// bits (two's complement integers, float64 bit pattern, 0/1 for bool) or str.
// Composites keep their children in elems; keyed sequences hold Pair values.
type Value struct {
	typ   *Type
	bits  uint64
	str   string
	elems []Value
}

func NewInt8(v int8) Value       { return Value{typ: TInt8, bits: uint64(int64(v))} }
func NewInt16(v int16) Value     { return Value{typ: TInt16, bits: uint64(int64(v))} }
func NewInt32(v int32) Value     { return Value{typ: TInt32, bits: uint64(int64(v))} }
func NewInt64(v int64) Value     { return Value{typ: TInt64, bits: uint64(v)} }
func NewUint8(v uint8) Value     { return Value{typ: TUint8, bits: uint64(v)} }
func NewUint16(v uint16) Value   { return Value{typ: TUint16, bits: uint64(v)} }
func NewUint32(v uint32) Value   { return Value{typ: TUint32, bits: uint64(v)} }
func NewUint64(v uint64) Value   { return Value{typ: TUint64, bits: v} }
func NewFloat32(v float32) Value { return Value{typ: TFloat32, bits: math.Float64bits(float64(v))} }
func NewFloat64(v float64) Value { return Value{typ: TFloat64, bits: math.Float64bits(v)} }
func NewString(v string) Value   { return Value{typ: TString, str: v} }

func NewBool(v bool) Value {
	if v {
		return Value{typ: TBool, bits: 1}
	}
	return Value{typ: TBool}
}

// FromInt builds a signed integer value of kind k, rejecting out-of-range v.
func FromInt(k Kind, v int64) (Value, error) {
	if !k.IsSigned() {
		return Value{}, fmt.Errorf("%w: %s is not a signed integer kind", common.ErrTypeMismatch, k)
	}
	bits := uint(k.Width() * 8)
	lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
	if bits == 64 {
		lo, hi = math.MinInt64, math.MaxInt64
	}
	if v < lo || v > hi {
		return Value{}, fmt.Errorf("%w: %d overflows %s", common.ErrInvalidNumeric, v, k)
	}
	return Value{typ: Scalar(k), bits: uint64(v)}, nil
}

// FromUint builds an unsigned integer value of kind k.
func FromUint(k Kind, v uint64) (Value, error) {
	if !k.IsInteger() || k.IsSigned() {
		return Value{}, fmt.Errorf("%w: %s is not an unsigned integer kind", common.ErrTypeMismatch, k)
	}
	if w := k.Width(); w < 8 && v >= 1<<(uint(w)*8) {
		return Value{}, fmt.Errorf("%w: %d overflows %s", common.ErrInvalidNumeric, v, k)
	}
	return Value{typ: Scalar(k), bits: v}, nil
}

// FromFloat builds a float value of kind k. Float32 values are rounded.
func FromFloat(k Kind, v float64) (Value, error) {
	switch k {
	case Float32:
		return NewFloat32(float32(v)), nil
	case Float64:
		return NewFloat64(v), nil
	}
	return Value{}, fmt.Errorf("%w: %s is not a float kind", common.ErrTypeMismatch, k)
}

// Compose builds a composite value of type t from elems. Sets are sorted and
// deduplicated, multisets sorted, every other kind keeps the given order.
// Keyed sequences take Pair values whose types match the key/value types.
func Compose(t *Type, elems ...Value) (Value, error) {
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	if t.IsScalar() {
		return Value{}, fmt.Errorf("%w: %s is not a composite type", common.ErrTypeMismatch, t)
	}
	switch t.Kind {
	case Array:
		if len(elems) != t.Len {
			return Value{}, fmt.Errorf("%w: %s needs %d elements, got %d", common.ErrLengthMismatch, t, t.Len, len(elems))
		}
	case Pair, Tuple:
		if len(elems) != len(t.Elems) {
			return Value{}, fmt.Errorf("%w: %s needs %d elements, got %d", common.ErrLengthMismatch, t, len(t.Elems), len(elems))
		}
	}
	for i, e := range elems {
		want := ElemType(t, i)
		if !want.Equal(e.typ) {
			return Value{}, fmt.Errorf("%w: element %d of %s is %s", common.ErrTypeMismatch, i, t, e.typ)
		}
	}
	out := make([]Value, len(elems))
	copy(out, elems)
	switch t.Kind {
	case Set:
		slices.SortStableFunc(out, Compare)
		out = slices.CompactFunc(out, func(a, b Value) bool { return Compare(a, b) == 0 })
	case MultiSet:
		slices.SortStableFunc(out, Compare)
	}
	return Value{typ: t, elems: out}, nil
}

// MustCompose is Compose for statically known inputs.
func MustCompose(t *Type, elems ...Value) Value {
	v, err := Compose(t, elems...)
	if err != nil {
		panic(err)
	}
	return v
}

// ElemType returns the type required at position i of a composite of type t.
func ElemType(t *Type, i int) *Type {
	switch t.Kind {
	case Pair, Tuple:
		if i < len(t.Elems) {
			return t.Elems[i]
		}
		return nil
	case Map:
		return PairOf(t.Elems[0], t.Elems[1])
	}
	return t.Elem()
}

func (v Value) Type() *Type { return v.typ }

func (v Value) Kind() Kind {
	if v.typ == nil {
		return Invalid
	}
	return v.typ.Kind
}

func (v Value) IsValid() bool { return v.typ != nil }

// Int returns the value of a signed integer.
func (v Value) Int() int64 { return int64(v.bits) }

// Uint returns the value of an unsigned integer.
func (v Value) Uint() uint64 { return v.bits }

func (v Value) Float() float64 { return math.Float64frombits(v.bits) }

func (v Value) Bool() bool { return v.bits != 0 }

// Str returns the content of a string value.
func (v Value) Str() string { return v.str }

// Len is the element count of composites and the byte length of strings.
func (v Value) Len() int {
	if v.Kind() == String {
		return len(v.str)
	}
	return len(v.elems)
}

func (v Value) Index(i int) Value { return v.elems[i] }

// Elems returns the children of a composite. The slice must not be modified.
func (v Value) Elems() []Value { return v.elems }

// Equal reports deep equality including types. Floats compare by bit pattern
// so that NaN payloads round-trip.
func Equal(a, b Value) bool {
	if !a.typ.Equal(b.typ) || a.bits != b.bits || a.str != b.str || len(a.elems) != len(b.elems) {
		return false
	}
	for i := range a.elems {
		if !Equal(a.elems[i], b.elems[i]) {
			return false
		}
	}
	return true
}

// Compare orders values of the same type: numbers by value, strings
// bytewise, composites lexicographically by element then by length.
func Compare(a, b Value) int {
	switch k := a.Kind(); {
	case k.IsSigned():
		return cmp.Compare(a.Int(), b.Int())
	case k.IsInteger(), k == Bool:
		return cmp.Compare(a.Uint(), b.Uint())
	case k.IsFloat():
		return cmp.Compare(a.Float(), b.Float())
	case k == String:
		return strings.Compare(a.str, b.str)
	}
	for i := 0; i < len(a.elems) && i < len(b.elems); i++ {
		if c := Compare(a.elems[i], b.elems[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a.elems), len(b.elems))
}

// Convert reinterprets a value parsed as one integer or float kind as
// another. It is used by readers that parse at full width first.
func Convert(v Value, k Kind) (Value, error) {
	switch {
	case k.IsSigned() && v.Kind().IsSigned():
		return FromInt(k, v.Int())
	case k.IsInteger() && !k.IsSigned() && v.Kind().IsInteger() && !v.Kind().IsSigned():
		return FromUint(k, v.Uint())
	case k.IsFloat() && v.Kind().IsFloat():
		return FromFloat(k, v.Float())
	}
	return Value{}, fmt.Errorf("%w: cannot convert %s to %s", common.ErrTypeMismatch, v.Kind(), k)
}

// String renders a debug form such as {1,"a",{2.5,true}}.
func (v Value) String() string {
	var sb strings.Builder
	v.appendDebug(&sb)
	return sb.String()
}

func (v Value) appendDebug(sb *strings.Builder) {
	switch k := v.Kind(); {
	case k == Invalid:
		sb.WriteString("<invalid>")
	case k.IsSigned():
		fmt.Fprintf(sb, "%d", v.Int())
	case k.IsInteger():
		fmt.Fprintf(sb, "%d", v.Uint())
	case k.IsFloat():
		fmt.Fprintf(sb, "%g", v.Float())
	case k == Bool:
		fmt.Fprintf(sb, "%t", v.Bool())
	case k == String:
		sb.Write(common.AppendQuoted(nil, v.str))
	default:
		sb.WriteByte('{')
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.appendDebug(sb)
		}
		sb.WriteByte('}')
	}
}
