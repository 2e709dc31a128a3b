// Package compiler turns normalized cpod text into a binary record stream.
//
// The emitter walks the type tokens and the value tokens of a declaration
// together: a composite type recurses once per element of the value list,
// always against the same parameter tokens, so the type tokens are re-read
// for every element and both cursors are returned explicitly.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/record"
	"github.com/rawbytedev/cpod/pkg/textcodec"
	"github.com/rawbytedev/cpod/pkg/value"
)

// Compiler accumulates records. The first error is kept in a status slot and
// every later call is a no-op until Reset, so callers check OK or Err once
// at the end instead of after each Compile.
type Compiler struct {
	log     *slog.Logger
	out     []byte
	err     error
	records int
}

type Option func(*Compiler)

// WithLogger traces each emitted record at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.log = l
		}
	}
}

func New(opts ...Option) *Compiler {
	c := &Compiler{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile appends the records of every declaration in src.
func (c *Compiler) Compile(src string) {
	if c.err != nil {
		return
	}
	toks, err := Tokenize(src)
	if err != nil {
		c.fail(err)
		return
	}
	for start := 0; start < len(toks); {
		end := findStatementEnd(toks, start)
		if end < 0 {
			c.fail(common.Errorf(toks[start].Pos, common.ErrSyntax, "declaration is not terminated by ';'"))
			return
		}
		if end == start {
			// empty statement
			start++
			continue
		}
		if err := c.declaration(toks[start:end]); err != nil {
			c.fail(err)
			return
		}
		start = end + 1
	}
}

// Bytes returns the stream compiled so far, or nil once an error is recorded.
func (c *Compiler) Bytes() []byte {
	if c.err != nil {
		return nil
	}
	return c.out
}

func (c *Compiler) OK() bool { return c.err == nil }

func (c *Compiler) Err() error { return c.err }

// Message is the status slot as text, empty when no error was recorded.
func (c *Compiler) Message() string {
	if c.err == nil {
		return ""
	}
	return c.err.Error()
}

// Records is the number of records emitted so far.
func (c *Compiler) Records() int { return c.records }

// Reset clears the output and the status slot.
func (c *Compiler) Reset() {
	c.out = c.out[:0]
	c.err = nil
	c.records = 0
}

func (c *Compiler) fail(err error) {
	c.err = err
	c.out = nil
	c.log.Warn("compile failed", "err", err)
}

// Compile compiles src into a fresh stream.
func Compile(src string) ([]byte, error) {
	c := New()
	c.Compile(src)
	return c.Bytes(), c.Err()
}

func findStatementEnd(toks []Token, start int) int {
	depth := 0
	for i := start; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != Operator {
			continue
		}
		switch t.Lexeme {
		case "{":
			depth++
		case "}":
			depth--
		case ";":
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// declaration compiles `qualifiers type name [n]? = value` (without ';').
func (c *Compiler) declaration(toks []Token) error {
	if len(toks) == 0 {
		return common.Errorf(0, common.ErrSyntax, "empty declaration")
	}
	assign := -1
	for i, t := range toks {
		if t.is(Operator, "=") {
			assign = i
			break
		}
	}
	if assign < 1 {
		return common.Errorf(toks[0].Pos, common.ErrSyntax, "expected '<type> <name> ='")
	}
	head, vals := toks[:assign], toks[assign+1:]

	marker, hasMarker := -1, false
	if last := head[len(head)-1]; last.is(Operator, "]") {
		open := len(head) - 2
		if open >= 0 && head[open].Kind == NumericLiteral {
			n, err := strconv.Atoi(head[open].Lexeme)
			if err != nil || n < 0 {
				return common.Errorf(head[open].Pos, common.ErrSyntax, "bad count marker %q", head[open].Lexeme)
			}
			marker = n
			open--
		}
		if open < 0 || !head[open].is(Operator, "[") {
			return common.Errorf(last.Pos, common.ErrSyntax, "unmatched ']'")
		}
		head, hasMarker = head[:open], true
	}
	if len(head) < 2 || head[len(head)-1].Kind != Identifier {
		return common.Errorf(toks[0].Pos, common.ErrSyntax, "missing field name")
	}
	nameTok := head[len(head)-1]
	types := head[:len(head)-1]
	for len(types) > 0 && types[0].Kind == Identifier && value.IsQualifier(types[0].Lexeme) {
		types = types[1:]
	}
	if len(types) == 0 {
		return common.Errorf(nameTok.Pos, common.ErrSyntax, "missing type before %q", nameTok.Lexeme)
	}

	var (
		code, payload []byte
		tend, vend    int
		err           error
	)
	scalarHead, err := isScalarHead(types)
	if err != nil {
		return err
	}
	if hasMarker && scalarHead {
		code, payload, tend, vend, err = c.array(types, 0, vals, 0, marker)
	} else {
		code, payload, tend, vend, err = c.walk(types, 0, vals, 0)
		if err == nil && hasMarker && marker >= 0 {
			if n := countElements(vals); n != marker {
				err = common.Errorf(nameTok.Pos, common.ErrLengthMismatch, "marker says %d, literal has %d", marker, n)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("field %q: %w", nameTok.Lexeme, err)
	}
	if tend != len(types) {
		return common.Errorf(types[tend].Pos, common.ErrSyntax, "unexpected %q after type", types[tend].Lexeme)
	}
	if vend != len(vals) {
		return common.Errorf(vals[vend].Pos, common.ErrSyntax, "unexpected %q after value of %q", vals[vend].Lexeme, nameTok.Lexeme)
	}
	c.out = record.AppendRecord(c.out, code, nameTok.Lexeme, payload)
	c.records++
	if c.log.Enabled(context.Background(), slog.LevelDebug) {
		c.log.Debug("record compiled", "name", nameTok.Lexeme, "type", typeString(code), "payload", len(payload))
	}
	return nil
}

func isScalarHead(types []Token) (bool, error) {
	k, _, err := readKind(types, 0)
	if err != nil {
		return false, err
	}
	return k.IsScalar(), nil
}

// countElements counts the top-level elements of a braced value list.
func countElements(vals []Token) int {
	if len(vals) < 2 || !vals[0].is(Operator, "{") {
		return -1
	}
	if vals[1].is(Operator, "}") {
		return 0
	}
	n, depth := 1, 0
	for _, t := range vals[1 : len(vals)-1] {
		switch {
		case t.is(Operator, "{"):
			depth++
		case t.is(Operator, "}"):
			depth--
		case t.is(Operator, ",") && depth == 0:
			n++
		}
	}
	if vals[len(vals)-2].is(Operator, ",") {
		n--
	}
	return n
}

// readKind reads the type keyword starting at types[pos]. Multi-word names
// such as "unsigned long long" take the longest run of identifiers that is a
// known keyword.
func readKind(types []Token, pos int) (value.Kind, int, error) {
	end := pos
	for end < len(types) && types[end].Kind == Identifier {
		end++
	}
	if end == pos {
		if pos < len(types) {
			return value.Invalid, pos, common.Errorf(types[pos].Pos, common.ErrSyntax, "expected type name, got %q", types[pos].Lexeme)
		}
		return value.Invalid, pos, fmt.Errorf("%w: type ends early", common.ErrSyntax)
	}
	for n := end; n > pos; n-- {
		words := make([]string, 0, n-pos)
		for _, t := range types[pos:n] {
			words = append(words, t.Lexeme)
		}
		if k, ok := value.LookupKeyword(strings.Join(words, " ")); ok {
			return k, n, nil
		}
	}
	return value.Invalid, pos, common.Errorf(types[pos].Pos, common.ErrUnsupported, "unknown type %q", types[pos].Lexeme)
}

func expect(toks []Token, pos int, lexeme string) error {
	if pos >= len(toks) {
		return fmt.Errorf("%w: expected %q at end of input", common.ErrSyntax, lexeme)
	}
	if !toks[pos].is(Operator, lexeme) {
		return common.Errorf(toks[pos].Pos, common.ErrSyntax, "expected %q, got %q", lexeme, toks[pos].Lexeme)
	}
	return nil
}

// walk compiles the value at vals[vpos] against the type at types[tpos]. It
// returns the type code and payload together with both advanced cursors.
// A nil vals walks the type alone.
func (c *Compiler) walk(types []Token, tpos int, vals []Token, vpos int) (code, payload []byte, tend, vend int, err error) {
	k, tpos, err := readKind(types, tpos)
	if err != nil {
		return nil, nil, tpos, vpos, err
	}
	if k.IsScalar() {
		code = []byte{k.ID()}
		if vals == nil {
			return code, nil, tpos, vpos, nil
		}
		payload, vpos, err = scalar(k, vals, vpos)
		return code, payload, tpos, vpos, err
	}
	if err := expect(types, tpos, "<"); err != nil {
		return nil, nil, tpos, vpos, err
	}
	tpos++

	// parameters are walked once for their code and end, values below
	// re-walk them per element
	var params []int
	code = []byte{k.ID(), '<'}
	for {
		params = append(params, tpos)
		var pcode []byte
		pcode, _, tpos, _, err = c.walk(types, tpos, nil, 0)
		if err != nil {
			return nil, nil, tpos, vpos, err
		}
		code = append(code, pcode...)
		if tpos < len(types) && types[tpos].is(Operator, ",") {
			tpos++
			if k == value.Array && tpos < len(types) && types[tpos].Kind == NumericLiteral {
				break
			}
			continue
		}
		break
	}
	arrayLen := -1
	if k == value.Array {
		if tpos >= len(types) || types[tpos].Kind != NumericLiteral {
			return nil, nil, tpos, vpos, fmt.Errorf("%w: std::array needs a length", common.ErrSyntax)
		}
		n, err := strconv.Atoi(types[tpos].Lexeme)
		if err != nil || n < 0 {
			return nil, nil, tpos, vpos, common.Errorf(types[tpos].Pos, common.ErrSyntax, "bad array length %q", types[tpos].Lexeme)
		}
		arrayLen = n
		code = strconv.AppendInt(code, int64(n), 10)
		tpos++
	}
	if err := expect(types, tpos, ">"); err != nil {
		return nil, nil, tpos, vpos, err
	}
	tpos++
	code = append(code, '>')
	if err := checkArity(k, len(params)); err != nil {
		return nil, nil, tpos, vpos, err
	}
	if vals == nil {
		return code, nil, tpos, vpos, nil
	}

	var elems [][]byte
	switch k {
	case value.Map:
		elems, vpos, err = c.list(vals, vpos, func(_ int, vpos int) ([]byte, int, error) {
			return c.pair(types, params[0], params[1], vals, vpos)
		})
	case value.Pair, value.Tuple:
		elems, vpos, err = c.list(vals, vpos, func(i int, vpos int) ([]byte, int, error) {
			if i >= len(params) {
				return nil, vpos, common.Errorf(vals[vpos].Pos, common.ErrLengthMismatch, "%s takes %d elements", k, len(params))
			}
			_, p, _, vend, err := c.walk(types, params[i], vals, vpos)
			return p, vend, err
		})
		if err == nil && len(elems) != len(params) {
			err = fmt.Errorf("%w: %s takes %d elements, got %d", common.ErrLengthMismatch, k, len(params), len(elems))
		}
	default:
		elems, vpos, err = c.list(vals, vpos, func(_ int, vpos int) ([]byte, int, error) {
			_, p, _, vend, err := c.walk(types, params[0], vals, vpos)
			return p, vend, err
		})
		if err == nil && k == value.Array && len(elems) != arrayLen {
			err = fmt.Errorf("%w: std::array of %d, got %d elements", common.ErrLengthMismatch, arrayLen, len(elems))
		}
	}
	if err != nil {
		return nil, nil, tpos, vpos, err
	}
	if k.IsDynamic() {
		payload = common.AppendUint(payload, uint64(len(elems)), record.LenSize)
	}
	for _, e := range elems {
		payload = append(payload, e...)
	}
	return code, payload, tpos, vpos, nil
}

// array compiles a C array declaration `E name[n]={...}`: the whole type is
// the element type and n, when given, is the length.
func (c *Compiler) array(types []Token, tpos int, vals []Token, vpos int, n int) (code, payload []byte, tend, vend int, err error) {
	elemCode, _, tend, _, err := c.walk(types, tpos, nil, 0)
	if err != nil {
		return nil, nil, tend, vpos, err
	}
	elems, vend, err := c.list(vals, vpos, func(_ int, vpos int) ([]byte, int, error) {
		_, p, _, vend, err := c.walk(types, tpos, vals, vpos)
		return p, vend, err
	})
	if err != nil {
		return nil, nil, tend, vend, err
	}
	if n < 0 {
		n = len(elems)
	}
	if len(elems) != n {
		return nil, nil, tend, vend, fmt.Errorf("%w: marker says %d, literal has %d", common.ErrLengthMismatch, n, len(elems))
	}
	code = append([]byte{value.Array.ID(), '<'}, elemCode...)
	code = strconv.AppendInt(code, int64(n), 10)
	code = append(code, '>')
	for _, e := range elems {
		payload = append(payload, e...)
	}
	return code, payload, tend, vend, nil
}

// pair compiles a `{key,value}` element of a keyed sequence.
func (c *Compiler) pair(types []Token, kpos, vtpos int, vals []Token, vpos int) ([]byte, int, error) {
	var payload []byte
	elems, vend, err := c.list(vals, vpos, func(i int, vpos int) ([]byte, int, error) {
		tpos := kpos
		switch i {
		case 0:
		case 1:
			tpos = vtpos
		default:
			return nil, vpos, common.Errorf(vals[vpos].Pos, common.ErrLengthMismatch, "map entry takes 2 elements")
		}
		_, p, _, vend, err := c.walk(types, tpos, vals, vpos)
		return p, vend, err
	})
	if err != nil {
		return nil, vend, err
	}
	if len(elems) != 2 {
		return nil, vend, fmt.Errorf("%w: map entry takes 2 elements, got %d", common.ErrLengthMismatch, len(elems))
	}
	for _, e := range elems {
		payload = append(payload, e...)
	}
	return payload, vend, nil
}

// list walks a braced value list starting at vals[vpos], calling elem for
// each element. A trailing comma is allowed.
func (c *Compiler) list(vals []Token, vpos int, elem func(i, vpos int) ([]byte, int, error)) ([][]byte, int, error) {
	if err := expect(vals, vpos, "{"); err != nil {
		return nil, vpos, err
	}
	vpos++
	var out [][]byte
	for i := 0; ; i++ {
		if vpos < len(vals) && vals[vpos].is(Operator, "}") {
			return out, vpos + 1, nil
		}
		if vpos >= len(vals) {
			return nil, vpos, fmt.Errorf("%w: unterminated value list", common.ErrSyntax)
		}
		p, next, err := elem(i, vpos)
		if err != nil {
			return nil, next, err
		}
		out = append(out, p)
		vpos = next
		if vpos < len(vals) && vals[vpos].is(Operator, ",") {
			vpos++
			continue
		}
		if err := expect(vals, vpos, "}"); err != nil {
			return nil, vpos, err
		}
		return out, vpos + 1, nil
	}
}

// scalar encodes the literal token at vals[vpos] as a value of kind k.
func scalar(k value.Kind, vals []Token, vpos int) ([]byte, int, error) {
	if vpos >= len(vals) {
		return nil, vpos, fmt.Errorf("%w: missing %s literal", common.ErrSyntax, k)
	}
	tok := vals[vpos]
	if tok.Kind == Operator {
		return nil, vpos, common.Errorf(tok.Pos, common.ErrTypeMismatch, "%s literal expected, got %q", k, tok.Lexeme)
	}
	v, err := textcodec.ParseLiteral(tok.Lexeme, value.Scalar(k))
	if err != nil {
		var pe *common.PosError
		if !errors.As(err, &pe) {
			err = common.Errorf(tok.Pos, err, "%q", tok.Lexeme)
		}
		return nil, vpos, err
	}
	return record.AppendValue(nil, v), vpos + 1, nil
}

func checkArity(k value.Kind, n int) error {
	want := k.Arity()
	if want < 0 || want == n {
		return nil
	}
	return fmt.Errorf("%w: %s takes %d parameters, got %d", common.ErrUnsupported, k, want, n)
}

// typeString renders a type code for logs.
func typeString(code []byte) string {
	t, err := record.DecodeType(code)
	if err != nil {
		return fmt.Sprintf("%x", code)
	}
	return t.String()
}
