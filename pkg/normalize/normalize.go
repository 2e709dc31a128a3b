// Package normalize rewrites cpod source text into the canonical form every
// reader expects: no comments, no whitespace outside string literals except
// single spaces between words, and adjacent string literals merged.
package normalize

import (
	"strings"

	"github.com/rawbytedev/cpod/internal/common"
	"github.com/rawbytedev/cpod/pkg/scan"
)

// Normalize runs the three passes in order. The result is a fixed point:
// normalizing it again returns it unchanged.
func Normalize(src string) (string, error) {
	s, err := RemoveComments(src)
	if err != nil {
		return "", err
	}
	s, err = CollapseSpaces(s)
	if err != nil {
		return "", err
	}
	return MergeStrings(s)
}

// RemoveComments strips // line comments (the newline stays) and /* */ block
// comments, which are replaced by a single space so that neighbouring words
// do not fuse. A '/' outside a string that starts neither form is an error.
func RemoveComments(s string) (string, error) {
	var out strings.Builder
	out.Grow(len(s))
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if scan.IsStringStart(s, i) {
			inStr = !inStr
			out.WriteByte(c)
			continue
		}
		if inStr || c != '/' {
			out.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", common.Errorf(i, common.ErrUnexpectedCharacter, "'/' at end of input")
		}
		switch s[i+1] {
		case '/':
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				i = len(s)
			} else {
				i += end - 1
			}
		case '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return "", common.Errorf(i, common.ErrSyntax, "unterminated block comment")
			}
			out.WriteByte(' ')
			i += 2 + end + 1
		default:
			return "", common.Errorf(i, common.ErrUnexpectedCharacter, "'/' followed by %q", s[i+1])
		}
	}
	if inStr {
		return "", common.Errorf(len(s), common.ErrSyntax, "unterminated string literal")
	}
	return out.String(), nil
}

// CollapseSpaces deletes whitespace outside string literals. A run between
// two word characters is replaced by one space, so `unsigned   int` keeps
// its separator while `x = { 1 , 2 }` becomes `x={1,2}`.
func CollapseSpaces(s string) (string, error) {
	end := len(s)
	for end > 0 && common.IsSpace(s[end-1]) {
		end--
	}
	s = s[:end]

	var out strings.Builder
	out.Grow(len(s))
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if scan.IsStringStart(s, i) {
			inStr = !inStr
			out.WriteByte(c)
			continue
		}
		if inStr || !common.IsSpace(c) {
			out.WriteByte(c)
			continue
		}
		j := i
		for j < len(s) && common.IsSpace(s[j]) {
			j++
		}
		if out.Len() > 0 && j < len(s) {
			written := out.String()
			if common.IsIdentChar(written[len(written)-1]) && common.IsIdentChar(s[j]) {
				out.WriteByte(' ')
			}
		}
		i = j - 1
	}
	if inStr {
		return "", common.Errorf(len(s), common.ErrSyntax, "unterminated string literal")
	}
	return out.String(), nil
}

// MergeStrings concatenates adjacent literals: `"ab""cd"` becomes `"abcd"`.
func MergeStrings(s string) (string, error) {
	var out strings.Builder
	out.Grow(len(s))
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !scan.IsStringStart(s, i) {
			out.WriteByte(c)
			continue
		}
		if inStr && i+1 < len(s) && s[i+1] == '"' {
			i++
			continue
		}
		inStr = !inStr
		out.WriteByte(c)
	}
	if inStr {
		return "", common.Errorf(len(s), common.ErrSyntax, "unterminated string literal")
	}
	return out.String(), nil
}
