package cpod

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/frame"
	"github.com/rawbytedev/cpod/pkg/normalize"
	"github.com/rawbytedev/cpod/pkg/record"
	"github.com/rawbytedev/cpod/pkg/textcodec"
	"github.com/rawbytedev/cpod/pkg/value"
)

// fieldPlan maps one exported struct field to a declaration.
type fieldPlan struct {
	index    int
	name     string
	typ      *value.Type
	optional bool
}

type structPlan struct {
	fields []fieldPlan
	typ    *value.Type // tuple of the field types, used when the struct is nested
}

type planCache struct {
	mu    sync.RWMutex
	plans map[reflect.Type]*structPlan
}

// Codec converts Go values to and from cpod declarations. Struct plans are
// built once per type and shared, so a Codec is safe for concurrent use.
type Codec struct {
	cache *planCache
	flags value.FormatFlags
}

// NewCodec returns a codec that writes literals with flags.
func NewCodec(flags value.FormatFlags) *Codec {
	return &Codec{cache: &planCache{plans: make(map[reflect.Type]*structPlan)}, flags: flags}
}

var defaultCodec = NewCodec(0)

// WithFlags returns a codec sharing c's plans that writes with flags.
func (c *Codec) WithFlags(flags value.FormatFlags) *Codec {
	return &Codec{cache: c.cache, flags: flags}
}

// Marshal writes one declaration per field of the struct v.
func Marshal(v any, flags value.FormatFlags) ([]byte, error) {
	return defaultCodec.WithFlags(flags).Marshal(v)
}

// Unmarshal normalizes src and reads every field of the struct ptr points to.
func Unmarshal(src []byte, ptr any) error { return defaultCodec.Unmarshal(src, ptr) }

// FromGo converts a Go value to the value model.
func FromGo(v any) (value.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return value.Value{}, fmt.Errorf("%w: nil", ErrUnsupported)
	}
	t, err := defaultCodec.TypeOf(rv.Type())
	if err != nil {
		return value.Value{}, err
	}
	return defaultCodec.fromGo(rv, t)
}

// ToGo stores v into the Go value ptr points to.
func ToGo(v value.Value, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: ToGo needs a non-nil pointer, got %T", ErrUnsupported, ptr)
	}
	return defaultCodec.toGo(v, rv.Elem())
}

// Marshal writes one declaration per field of the struct v, each on its own
// line.
func (c *Codec) Marshal(v any) ([]byte, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, f := range plan.fields {
		val, err := c.fromGo(rv.Field(f.index), f.typ)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		if out, err = textcodec.Write(out, f.name, val, c.flags); err != nil {
			return nil, err
		}
		out = append(out, '\n')
	}
	return out, nil
}

// Unmarshal normalizes src and reads each field of the struct ptr points to.
// Fields tagged optional keep their value when not declared.
func (c *Codec) Unmarshal(src []byte, ptr any) error {
	rv, err := structPtr(ptr)
	if err != nil {
		return err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return err
	}
	buf, err := normalize.Normalize(string(src))
	if err != nil {
		return err
	}
	for _, f := range plan.fields {
		val, err := textcodec.Read(buf, f.name, f.typ)
		if err != nil {
			if f.optional && errors.Is(err, ErrFieldNotFound) {
				continue
			}
			return err
		}
		if err := c.toGo(val, rv.Field(f.index)); err != nil {
			return fmt.Errorf("field %q: %w", f.name, err)
		}
	}
	return nil
}

// Encode compiles the struct v straight to a record stream, one record per
// field, skipping the text form.
func (c *Codec) Encode(v any) ([]byte, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, f := range plan.fields {
		val, err := c.fromGo(rv.Field(f.index), f.typ)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		out = record.Encode(out, f.name, val)
	}
	return out, nil
}

// Decode fills the struct ptr points to from a record stream, framed or not.
// A record must carry exactly the field's type.
func (c *Codec) Decode(stream []byte, ptr any) error {
	rv, err := structPtr(ptr)
	if err != nil {
		return err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return err
	}
	if frame.IsFrame(stream) {
		if stream, err = frame.Decode(stream); err != nil {
			return err
		}
	}
	recs, err := record.ReadAll(stream)
	if err != nil {
		return err
	}
	byName := make(map[string]record.Record, len(recs))
	for _, r := range recs {
		if _, dup := byName[r.Name]; dup {
			return fmt.Errorf("record %q: %w", r.Name, ErrAmbiguousField)
		}
		byName[r.Name] = r
	}
	for _, f := range plan.fields {
		r, ok := byName[f.name]
		if !ok {
			if f.optional {
				continue
			}
			return fmt.Errorf("record %q: %w", f.name, ErrFieldNotFound)
		}
		if !r.Type.Equal(f.typ) {
			return fmt.Errorf("record %q: %w: stream holds %s, field wants %s", f.name, ErrTypeMismatch, r.Type, f.typ)
		}
		val, err := r.Value()
		if err != nil {
			return err
		}
		if err := c.toGo(val, rv.Field(f.index)); err != nil {
			return fmt.Errorf("record %q: %w", f.name, err)
		}
	}
	return nil
}

// TypeOf returns the value-model type a Go type maps to. Slices become
// vectors, arrays fixed arrays, map[K]struct{} sets, other maps keyed
// sequences and structs tuples of their exported fields.
func (c *Codec) TypeOf(rt reflect.Type) (*value.Type, error) {
	return c.typeOf(rt, nil)
}

func (c *Codec) typeOf(rt reflect.Type, seen []reflect.Type) (*value.Type, error) {
	switch k := rt.Kind(); {
	case k == reflect.Bool:
		return value.TBool, nil
	case k == reflect.String:
		return value.TString, nil
	case k == reflect.Float32:
		return value.TFloat32, nil
	case k == reflect.Float64:
		return value.TFloat64, nil
	case common.IsFixedKind(k), k == reflect.Int, k == reflect.Uint:
		size := common.FixedSize(k)
		if size < 0 {
			size = int(rt.Size())
		}
		return value.Scalar(intKind(k, size)), nil
	case k == reflect.Pointer:
		return c.typeOf(rt.Elem(), seen)
	case k == reflect.Slice, k == reflect.Array:
		elem, err := c.typeOf(rt.Elem(), seen)
		if err != nil {
			return nil, err
		}
		if k == reflect.Array {
			return value.ArrayOf(elem, rt.Len()), nil
		}
		return value.VectorOf(elem), nil
	case k == reflect.Map:
		key, err := c.typeOf(rt.Key(), seen)
		if err != nil {
			return nil, err
		}
		if isUnit(rt.Elem()) {
			return value.SetOf(key), nil
		}
		val, err := c.typeOf(rt.Elem(), seen)
		if err != nil {
			return nil, err
		}
		return value.MapOf(key, val), nil
	case k == reflect.Struct:
		if slices.Contains(seen, rt) {
			return nil, fmt.Errorf("%w: recursive type %s", ErrUnsupported, rt)
		}
		plan, err := c.plan(rt, append(seen, rt))
		if err != nil {
			return nil, err
		}
		return plan.typ, nil
	}
	return nil, fmt.Errorf("%w: Go type %s", ErrUnsupported, rt)
}

func intKind(k reflect.Kind, size int) value.Kind {
	signed := k >= reflect.Int && k <= reflect.Int64
	switch size {
	case 1:
		return pick(signed, value.Int8, value.Uint8)
	case 2:
		return pick(signed, value.Int16, value.Uint16)
	case 4:
		return pick(signed, value.Int32, value.Uint32)
	}
	return pick(signed, value.Int64, value.Uint64)
}

func pick(signed bool, s, u value.Kind) value.Kind {
	if signed {
		return s
	}
	return u
}

func isUnit(rt reflect.Type) bool {
	return rt.Kind() == reflect.Struct && rt.NumField() == 0
}

func (c *Codec) getPlan(rt reflect.Type) (*structPlan, error) {
	return c.plan(rt, []reflect.Type{rt})
}

// plan returns the cached plan for rt, building it outside the lock: nested
// struct fields re-enter plan while the outer one is still being built.
func (c *Codec) plan(rt reflect.Type, seen []reflect.Type) (*structPlan, error) {
	c.cache.mu.RLock()
	p, ok := c.cache.plans[rt]
	c.cache.mu.RUnlock()
	if ok {
		return p, nil
	}

	p = &structPlan{}
	var elems []*value.Type
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(sf.Tag.Get("cpod"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if !textcodec.ValidName(name) {
			return nil, fmt.Errorf("%w: field %s.%s has invalid declaration name %q", ErrSyntax, rt, sf.Name, name)
		}
		t, err := c.typeOf(sf.Type, seen)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", rt, sf.Name, err)
		}
		p.fields = append(p.fields, fieldPlan{index: i, name: name, typ: t, optional: opts == "optional"})
		elems = append(elems, t)
	}
	p.typ = value.TupleOf(elems...)

	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	if existing, ok := c.cache.plans[rt]; ok {
		return existing, nil
	}
	c.cache.plans[rt] = p
	return p, nil
}

func structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, ErrNotStruct
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, ErrNotStruct
	}
	return rv, nil
}

func structPtr(ptr any) (reflect.Value, error) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, ErrNotStructPtr
	}
	return rv.Elem(), nil
}

func (c *Codec) fromGo(rv reflect.Value, t *value.Type) (value.Value, error) {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return value.Value{}, fmt.Errorf("%w: nil %s", ErrUnsupported, rv.Type())
		}
		return c.fromGo(rv.Elem(), t)
	}
	switch k := t.Kind; {
	case k == value.Bool:
		return value.NewBool(rv.Bool()), nil
	case k == value.String:
		return value.NewString(rv.String()), nil
	case k.IsSigned():
		return value.FromInt(k, rv.Int())
	case k.IsInteger():
		return value.FromUint(k, rv.Uint())
	case k.IsFloat():
		return value.FromFloat(k, rv.Float())
	}

	var elems []value.Value
	switch t.Kind {
	case value.Vector, value.Array, value.MultiSet:
		elems = make([]value.Value, rv.Len())
		for i := range elems {
			e, err := c.fromGo(rv.Index(i), t.Elem())
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = e
		}
	case value.Set:
		for _, key := range rv.MapKeys() {
			e, err := c.fromGo(key, t.Elem())
			if err != nil {
				return value.Value{}, err
			}
			elems = append(elems, e)
		}
	case value.Map:
		pt := value.ElemType(t, 0)
		iter := rv.MapRange()
		for iter.Next() {
			k, err := c.fromGo(iter.Key(), t.Elems[0])
			if err != nil {
				return value.Value{}, err
			}
			v, err := c.fromGo(iter.Value(), t.Elems[1])
			if err != nil {
				return value.Value{}, err
			}
			pair, err := value.Compose(pt, k, v)
			if err != nil {
				return value.Value{}, err
			}
			elems = append(elems, pair)
		}
		// map iteration order is random; keep the text stable
		slices.SortFunc(elems, func(a, b value.Value) int { return value.Compare(a.Index(0), b.Index(0)) })
	case value.Tuple:
		plan, err := c.getPlan(rv.Type())
		if err != nil {
			return value.Value{}, err
		}
		for i, f := range plan.fields {
			e, err := c.fromGo(rv.Field(f.index), t.Elems[i])
			if err != nil {
				return value.Value{}, err
			}
			elems = append(elems, e)
		}
	default:
		return value.Value{}, fmt.Errorf("%w: %s from Go", ErrUnsupported, t)
	}
	return value.Compose(t, elems...)
}

func (c *Codec) toGo(v value.Value, rv reflect.Value) error {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return c.toGo(v, rv.Elem())
	}
	mismatch := func() error {
		return fmt.Errorf("%w: cannot store %s in Go %s", ErrTypeMismatch, v.Type(), rv.Type())
	}
	switch k := v.Kind(); {
	case k == value.Bool:
		if rv.Kind() != reflect.Bool {
			return mismatch()
		}
		rv.SetBool(v.Bool())
		return nil
	case k == value.String:
		if rv.Kind() != reflect.String {
			return mismatch()
		}
		rv.SetString(v.Str())
		return nil
	case k.IsInteger():
		return setInteger(rv, v, mismatch)
	case k.IsFloat():
		if !rv.CanFloat() {
			return mismatch()
		}
		rv.SetFloat(v.Float())
		return nil
	}

	elems := v.Elems()
	switch v.Kind() {
	case value.Vector, value.Array, value.MultiSet, value.Set:
		switch rv.Kind() {
		case reflect.Slice:
			s := reflect.MakeSlice(rv.Type(), len(elems), len(elems))
			for i, e := range elems {
				if err := c.toGo(e, s.Index(i)); err != nil {
					return err
				}
			}
			rv.Set(s)
			return nil
		case reflect.Array:
			if rv.Len() != len(elems) {
				return fmt.Errorf("%w: Go %s holds %d elements, value has %d", ErrLengthMismatch, rv.Type(), rv.Len(), len(elems))
			}
			for i, e := range elems {
				if err := c.toGo(e, rv.Index(i)); err != nil {
					return err
				}
			}
			return nil
		case reflect.Map:
			if !isUnit(rv.Type().Elem()) {
				return mismatch()
			}
			m := reflect.MakeMapWithSize(rv.Type(), len(elems))
			unit := reflect.Zero(rv.Type().Elem())
			for _, e := range elems {
				key := reflect.New(rv.Type().Key()).Elem()
				if err := c.toGo(e, key); err != nil {
					return err
				}
				m.SetMapIndex(key, unit)
			}
			rv.Set(m)
			return nil
		}
	case value.Map:
		if rv.Kind() != reflect.Map {
			return mismatch()
		}
		m := reflect.MakeMapWithSize(rv.Type(), len(elems))
		for _, pair := range elems {
			key := reflect.New(rv.Type().Key()).Elem()
			val := reflect.New(rv.Type().Elem()).Elem()
			if err := c.toGo(pair.Index(0), key); err != nil {
				return err
			}
			if err := c.toGo(pair.Index(1), val); err != nil {
				return err
			}
			m.SetMapIndex(key, val)
		}
		rv.Set(m)
		return nil
	case value.Pair, value.Tuple:
		if rv.Kind() != reflect.Struct {
			return mismatch()
		}
		plan, err := c.getPlan(rv.Type())
		if err != nil {
			return err
		}
		if len(plan.fields) != len(elems) {
			return fmt.Errorf("%w: Go %s has %d fields, value has %d", ErrLengthMismatch, rv.Type(), len(plan.fields), len(elems))
		}
		for i, f := range plan.fields {
			if err := c.toGo(elems[i], rv.Field(f.index)); err != nil {
				return err
			}
		}
		return nil
	}
	return mismatch()
}

func setInteger(rv reflect.Value, v value.Value, mismatch func() error) error {
	signed := v.Kind().IsSigned()
	switch {
	case rv.CanInt():
		if !signed && v.Uint() > 1<<63-1 || rv.OverflowInt(v.Int()) {
			return fmt.Errorf("%w: %s overflows Go %s", ErrInvalidNumeric, v, rv.Type())
		}
		rv.SetInt(v.Int())
	case rv.CanUint():
		if signed && v.Int() < 0 || rv.OverflowUint(v.Uint()) {
			return fmt.Errorf("%w: %s overflows Go %s", ErrInvalidNumeric, v, rv.Type())
		}
		rv.SetUint(v.Uint())
	default:
		return mismatch()
	}
	return nil
}
