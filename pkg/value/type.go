package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rawbytedev/cpod/internal/common"
)

// Type describes the shape of a Value. Composite types hold their element
// types in Elems, so a Type is always a finite tree.
type Type struct {
	Kind  Kind
	Elems []*Type
	Len   int // element count of fixed arrays
}

var (
	TBool    = &Type{Kind: Bool}
	TInt8    = &Type{Kind: Int8}
	TUint8   = &Type{Kind: Uint8}
	TInt16   = &Type{Kind: Int16}
	TUint16  = &Type{Kind: Uint16}
	TInt32   = &Type{Kind: Int32}
	TUint32  = &Type{Kind: Uint32}
	TInt64   = &Type{Kind: Int64}
	TUint64  = &Type{Kind: Uint64}
	TFloat32 = &Type{Kind: Float32}
	TFloat64 = &Type{Kind: Float64}
	TString  = &Type{Kind: String}
)

// Scalar returns the shared descriptor for a scalar kind.
func Scalar(k Kind) *Type {
	switch k {
	case Bool:
		return TBool
	case Int8:
		return TInt8
	case Uint8:
		return TUint8
	case Int16:
		return TInt16
	case Uint16:
		return TUint16
	case Int32:
		return TInt32
	case Uint32:
		return TUint32
	case Int64:
		return TInt64
	case Uint64:
		return TUint64
	case Float32:
		return TFloat32
	case Float64:
		return TFloat64
	case String:
		return TString
	}
	return nil
}

func ArrayOf(elem *Type, n int) *Type { return &Type{Kind: Array, Elems: []*Type{elem}, Len: n} }
func VectorOf(elem *Type) *Type       { return &Type{Kind: Vector, Elems: []*Type{elem}} }
func SetOf(elem *Type) *Type          { return &Type{Kind: Set, Elems: []*Type{elem}} }
func MultiSetOf(elem *Type) *Type     { return &Type{Kind: MultiSet, Elems: []*Type{elem}} }
func MapOf(key, val *Type) *Type      { return &Type{Kind: Map, Elems: []*Type{key, val}} }
func PairOf(first, second *Type) *Type {
	return &Type{Kind: Pair, Elems: []*Type{first, second}}
}
func TupleOf(elems ...*Type) *Type { return &Type{Kind: Tuple, Elems: elems} }

// Elem returns the element type of single-parameter containers.
func (t *Type) Elem() *Type {
	if len(t.Elems) == 0 {
		return nil
	}
	return t.Elems[0]
}

// IsScalar reports whether t has no element types.
func (t *Type) IsScalar() bool { return t.Kind.IsScalar() }

// Validate checks arities and array lengths over the whole tree.
func (t *Type) Validate() error {
	if t == nil || !t.Kind.Valid() {
		return fmt.Errorf("%w: invalid kind", common.ErrUnsupported)
	}
	switch n := t.Kind.Arity(); {
	case n == 0:
		if len(t.Elems) != 0 {
			return fmt.Errorf("%w: %s takes no parameters", common.ErrUnsupported, t.Kind)
		}
		return nil
	case n > 0 && len(t.Elems) != n:
		return fmt.Errorf("%w: %s takes %d parameters, got %d", common.ErrUnsupported, t.Kind, n, len(t.Elems))
	case n < 0 && len(t.Elems) == 0:
		return fmt.Errorf("%w: empty tuple", common.ErrUnsupported)
	}
	if t.Kind == Array && t.Len < 0 {
		return fmt.Errorf("%w: negative array length %d", common.ErrUnsupported, t.Len)
	}
	for _, e := range t.Elems {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Equal compares two type trees.
func (t *Type) Equal(u *Type) bool {
	if t == u {
		return true
	}
	if t == nil || u == nil || t.Kind != u.Kind || len(t.Elems) != len(u.Elems) {
		return false
	}
	if t.Kind == Array && t.Len != u.Len {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(u.Elems[i]) {
			return false
		}
	}
	return true
}

// Spelling renders t with raw or neat integer names and with or without the
// std:: prefix on library types. No spaces are emitted except inside raw
// multi-word names, so the result is already in normalized form.
func (t *Type) Spelling(neat, std bool) string {
	var sb strings.Builder
	t.appendSpelling(&sb, neat, std)
	return sb.String()
}

func (t *Type) appendSpelling(sb *strings.Builder, neat, std bool) {
	sb.WriteString(t.Kind.Spelling(neat, std))
	if t.Kind.IsScalar() {
		return
	}
	sb.WriteByte('<')
	for i, e := range t.Elems {
		if i > 0 {
			sb.WriteByte(',')
		}
		e.appendSpelling(sb, neat, std)
	}
	if t.Kind == Array {
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(t.Len))
	}
	sb.WriteByte('>')
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Spelling(true, true)
}

// Aliases lists the spellings under which a declaration of type t may appear.
// Scalars accept every keyword of their kind. Composites accept the four
// consistent spellings: all-raw or all-neat, with or without std::.
func (t *Type) Aliases() []string {
	if t.IsScalar() {
		return t.Kind.spellings()
	}
	return dedup([]string{
		t.Spelling(false, true),
		t.Spelling(true, true),
		t.Spelling(false, false),
		t.Spelling(true, false),
	})
}

var qualifiers = map[string]bool{
	"const":     true,
	"static":    true,
	"inline":    true,
	"constexpr": true,
	"volatile":  true,
}

// IsQualifier reports whether w is a declaration qualifier that may precede
// a type spelling.
func IsQualifier(w string) bool { return qualifiers[w] }

// ParseType parses a C++ style type spelling such as
// "std::vector<std::tuple<int,float>>" or "unsigned long long".
func ParseType(spelling string) (*Type, error) {
	p := typeParser{toks: splitTypeTokens(spelling)}
	t, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("parse type %q: %w", spelling, err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("parse type %q: %w: trailing %q", spelling, common.ErrSyntax, p.toks[p.pos])
	}
	return t, nil
}

func splitTypeTokens(s string) []string {
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case common.IsSpace(c):
			i++
		case c == '<' || c == '>' || c == ',':
			toks = append(toks, s[i:i+1])
			i++
		case common.IsIdentChar(c) || c == ':':
			j := i
			for j < len(s) && (common.IsIdentChar(s[j]) || s[j] == ':') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			toks = append(toks, s[i:i+1])
			i++
		}
	}
	return toks
}

type typeParser struct {
	toks []string
	pos  int
}

func (p *typeParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *typeParser) expect(tok string) error {
	if p.peek() != tok {
		return fmt.Errorf("%w: expected %q, got %q", common.ErrSyntax, tok, p.peek())
	}
	p.pos++
	return nil
}

func isWord(tok string) bool {
	return tok != "" && (common.IsIdentChar(tok[0]) || tok[0] == ':')
}

func (p *typeParser) parse() (*Type, error) {
	var words []string
	for isWord(p.peek()) {
		w := p.peek()
		p.pos++
		if len(words) == 0 && IsQualifier(w) {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: expected type name, got %q", common.ErrSyntax, p.peek())
	}
	name := strings.Join(words, " ")
	k, ok := LookupKeyword(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", common.ErrUnsupported, name)
	}
	t := &Type{Kind: k}
	if k.IsScalar() {
		return Scalar(k), nil
	}
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	for {
		e, err := p.parse()
		if err != nil {
			return nil, err
		}
		t.Elems = append(t.Elems, e)
		if k == Array {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(p.peek())
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad array length %q", common.ErrSyntax, p.peek())
			}
			p.pos++
			t.Len = n
		}
		if p.peek() != "," {
			break
		}
		p.pos++
	}
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
