// Package scan answers the two questions every text pass over a cpod buffer
// asks: is this byte inside a string literal, and how deep in braces is it.
//
// A double quote toggles string state unless it is escaped, that is preceded
// by an odd run of backslashes. Braces only count while outside a string.
// The stateless helpers all walk from offset zero; Cursor keeps the same
// state incrementally for callers that probe many increasing offsets.
package scan

// IsStringStart reports whether s[pos] is an unescaped double quote.
func IsStringStart(s string, pos int) bool {
	if pos < 0 || pos >= len(s) || s[pos] != '"' {
		return false
	}
	return !escaped(s, pos)
}

// escaped reports whether s[pos] is preceded by an odd run of backslashes.
func escaped(s string, pos int) bool {
	n := 0
	for i := pos - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n&1 == 1
}

// QuoteParity returns the number of unescaped quotes in s[:pos]. An even
// result means pos lies outside any string literal.
func QuoteParity(s string, pos int) int {
	c := NewCursor(s)
	c.AdvanceTo(pos)
	return c.quotes
}

// InString reports whether s[pos] lies inside a string literal. The opening
// quote itself is outside, the closing quote inside.
func InString(s string, pos int) bool {
	return QuoteParity(s, pos)&1 == 1
}

// BraceDepth returns the number of '{' minus '}' in s[:pos], ignoring braces
// that appear inside string literals.
func BraceDepth(s string, pos int) int {
	c := NewCursor(s)
	c.AdvanceTo(pos)
	return c.depth
}

// Cursor tracks quote parity and brace depth while moving forward over s.
type Cursor struct {
	src    string
	pos    int
	quotes int
	depth  int
}

func NewCursor(s string) *Cursor {
	return &Cursor{src: s}
}

// AdvanceTo consumes s[c.Pos():pos]. Moving backwards is a no-op.
func (c *Cursor) AdvanceTo(pos int) {
	if pos > len(c.src) {
		pos = len(c.src)
	}
	for ; c.pos < pos; c.pos++ {
		c.step(c.pos)
	}
}

func (c *Cursor) step(i int) {
	ch := c.src[i]
	if ch == '"' && !escaped(c.src, i) {
		c.quotes++
		return
	}
	if c.quotes&1 == 1 {
		return
	}
	switch ch {
	case '{':
		c.depth++
	case '}':
		c.depth--
	}
}

func (c *Cursor) Pos() int       { return c.pos }
func (c *Cursor) Depth() int     { return c.depth }
func (c *Cursor) Quotes() int    { return c.quotes }
func (c *Cursor) InString() bool { return c.quotes&1 == 1 }

// FindTopLevel returns the index of the first target byte at or after from
// that is outside any string literal and at the same brace depth as from.
// It returns -1 when the enclosing scope closes first or s ends. from must
// itself lie outside a string literal.
func FindTopLevel(s string, from int, target byte) int {
	inStr := false
	depth := 0
	for i := from; i < len(s); i++ {
		ch := s[i]
		if ch == '"' && !escaped(s, i) {
			inStr = !inStr
			continue
		}
		if inStr {
			continue
		}
		if ch == target && depth == 0 {
			return i
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

// MatchBrace returns the index of the '}' closing the '{' at s[open], or -1.
func MatchBrace(s string, open int) int {
	if open < 0 || open >= len(s) || s[open] != '{' {
		return -1
	}
	return FindTopLevel(s, open+1, '}')
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start, End int
}

// SplitTopLevel splits s on sep bytes that sit at brace depth zero outside
// string literals. An empty s yields no spans.
func SplitTopLevel(s string, sep byte) ([]Span, bool) {
	if len(s) == 0 {
		return nil, true
	}
	var spans []Span
	start := 0
	for {
		i := FindTopLevel(s, start, sep)
		if i < 0 {
			break
		}
		spans = append(spans, Span{start, i})
		start = i + 1
	}
	spans = append(spans, Span{start, len(s)})
	// a stray '}' at depth zero stops FindTopLevel early
	last := spans[len(spans)-1]
	if BalancedBraces(s[last.Start:last.End]) != 0 {
		return spans, false
	}
	return spans, true
}

// BalancedBraces returns the brace depth at the end of s.
func BalancedBraces(s string) int {
	return BraceDepth(s, len(s))
}
