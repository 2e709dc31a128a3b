// Package locate finds declarations in a normalized cpod buffer.
//
// A declaration is accepted only at brace depth zero, outside string
// literals, and at a statement boundary, so same-named fields nested inside
// a container literal never shadow the outer one.
package locate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/scan"
	"github.com/rawbytedev/cpod/pkg/value"
)

// Declaration is a view of one `type name[n]=value;` unit. Spans index into
// the buffer that was searched.
type Declaration struct {
	TypeName  string
	FieldName string
	Start     int       // offset of the type spelling
	Marker    bool      // a [n] marker follows the name
	Length    int       // marker count, -1 when absent or empty
	Value     scan.Span // literal between '=' and the terminating ';'
}

// Literal returns the value text of d inside buf.
func (d Declaration) Literal(buf string) string {
	return buf[d.Value.Start:d.Value.End]
}

// SearchKey is the text a declaration of name under alias starts with in a
// normalized buffer.
func SearchKey(alias, name string) string {
	if alias != "" && alias[len(alias)-1] == '>' {
		return alias + name
	}
	return alias + " " + name
}

// Locate finds the single outer-scope declaration of name spelled with one of
// aliases. Finding none is ErrFieldNotFound, finding more than one is
// ErrAmbiguousField, even when both use the same spelling.
func Locate(buf, name string, aliases []string) (Declaration, error) {
	var (
		found Declaration
		hits  int
	)
	for _, alias := range aliases {
		key := SearchKey(alias, name)
		cur := scan.NewCursor(buf)
		for off := 0; ; {
			i := strings.Index(buf[off:], key)
			if i < 0 {
				break
			}
			i += off
			off = i + 1
			end := i + len(key)
			if end >= len(buf) || (buf[end] != '=' && buf[end] != '[') {
				continue
			}
			if !atBoundary(buf, i) {
				continue
			}
			cur.AdvanceTo(i)
			if cur.InString() || cur.Depth() != 0 {
				continue
			}
			d, err := parseTail(buf, end)
			if err != nil {
				return Declaration{}, fmt.Errorf("field %q: %w", name, err)
			}
			d.TypeName, d.FieldName, d.Start = alias, name, i
			hits++
			if hits > 1 {
				return Declaration{}, fmt.Errorf("field %q declared as %q at %d and as %q at %d: %w",
					name, found.TypeName, found.Start, d.TypeName, d.Start, common.ErrAmbiguousField)
			}
			found = d
		}
	}
	if hits == 0 {
		return Declaration{}, fmt.Errorf("field %q: %w", name, common.ErrFieldNotFound)
	}
	return found, nil
}

// atBoundary reports whether a type spelling may start at buf[i]: at the
// beginning, after a statement or element separator, or after a qualifier
// word that is itself at a boundary.
func atBoundary(buf string, i int) bool {
	for {
		if i == 0 {
			return true
		}
		c := buf[i-1]
		switch {
		case c == ';' || c == '{' || c == '}' || c == ',':
			return true
		case common.IsSpace(c):
			j := i - 1
			for j > 0 && common.IsIdentChar(buf[j-1]) {
				j--
			}
			if !value.IsQualifier(buf[j : i-1]) {
				return false
			}
			i = j
		default:
			return false
		}
	}
}

// parseTail reads the optional marker, the '=' and the value span starting at
// buf[pos], right after the field name.
func parseTail(buf string, pos int) (Declaration, error) {
	d := Declaration{Length: -1}
	if buf[pos] == '[' {
		closeAt := strings.IndexByte(buf[pos:], ']')
		if closeAt < 0 {
			return d, common.Errorf(pos, common.ErrSyntax, "unterminated count marker")
		}
		digits := buf[pos+1 : pos+closeAt]
		d.Marker = true
		if digits != "" {
			n, err := strconv.Atoi(digits)
			if err != nil || n < 0 {
				return d, common.Errorf(pos+1, common.ErrSyntax, "bad count marker %q", digits)
			}
			d.Length = n
		}
		pos += closeAt + 1
	}
	if pos >= len(buf) || buf[pos] != '=' {
		return d, common.Errorf(pos, common.ErrSyntax, "expected '='")
	}
	start := pos + 1
	end := scan.FindTopLevel(buf, start, ';')
	if end < 0 {
		return d, common.Errorf(start, common.ErrSyntax, "declaration is not terminated by ';'")
	}
	d.Value = scan.Span{Start: start, End: end}
	return d, nil
}

// Scan lists every outer-scope declaration in buf in source order. The type
// name is returned as written, with leading qualifiers removed.
func Scan(buf string) ([]Declaration, error) {
	stmts, ok := scan.SplitTopLevel(buf, ';')
	if !ok {
		return nil, common.Errorf(len(buf), common.ErrSyntax, "unbalanced braces")
	}
	if n := len(stmts); n > 0 {
		if last := stmts[n-1]; strings.TrimSpace(buf[last.Start:last.End]) != "" {
			return nil, common.Errorf(last.Start, common.ErrSyntax, "declaration is not terminated by ';'")
		}
		stmts = stmts[:n-1]
	}
	var out []Declaration
	for _, st := range stmts {
		stmt := buf[st.Start:st.End]
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		d, err := splitStatement(stmt)
		if err != nil {
			var pe *common.PosError
			if errors.As(err, &pe) {
				pe.Pos += st.Start
			}
			return nil, err
		}
		d.Start += st.Start
		d.Value.Start += st.Start
		d.Value.End += st.Start
		out = append(out, d)
	}
	return out, nil
}

func splitStatement(stmt string) (Declaration, error) {
	eq := scan.FindTopLevel(stmt, 0, '=')
	if eq < 0 {
		return Declaration{}, common.Errorf(0, common.ErrSyntax, "expected '=' in %q", stmt)
	}
	head := strings.TrimRight(stmt[:eq], " \t\r\n")
	nameEnd := len(head)
	if strings.HasSuffix(head, "]") {
		open := strings.LastIndexByte(head, '[')
		if open < 0 {
			return Declaration{}, common.Errorf(len(head)-1, common.ErrSyntax, "unmatched ']'")
		}
		nameEnd = open
	}
	nameStart := nameEnd
	for nameStart > 0 && common.IsIdentChar(head[nameStart-1]) {
		nameStart--
	}
	typeEnd := nameStart
	for typeEnd > 0 && common.IsSpace(head[typeEnd-1]) {
		typeEnd--
	}
	start := 0
	for start < typeEnd && common.IsSpace(head[start]) {
		start++
	}
	// drop qualifiers
	for {
		j := start
		for j < typeEnd && common.IsIdentChar(head[j]) {
			j++
		}
		if j < typeEnd && common.IsSpace(head[j]) && value.IsQualifier(head[start:j]) {
			start = j + 1
			continue
		}
		break
	}
	name, typ := head[nameStart:nameEnd], head[start:typeEnd]
	if name == "" || typ == "" {
		return Declaration{}, common.Errorf(0, common.ErrSyntax, "malformed declaration %q", stmt)
	}
	d := Declaration{
		TypeName:  typ,
		FieldName: name,
		Start:     start,
		Length:    -1,
		Value:     scan.Span{Start: eq + 1, End: len(stmt)},
	}
	if marker := head[nameEnd:]; marker != "" {
		d.Marker = true
		if digits := strings.TrimSpace(marker[1 : len(marker)-1]); digits != "" {
			n, err := strconv.Atoi(digits)
			if err != nil || n < 0 {
				return Declaration{}, common.Errorf(nameEnd+1, common.ErrSyntax, "bad count marker %q", digits)
			}
			d.Length = n
		}
	}
	return d, nil
}
