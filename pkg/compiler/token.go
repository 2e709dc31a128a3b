package compiler

import (
	"fmt"

	"github.com/rawbytedev/cpod/internal/common"
)

type TokenKind uint8

const (
	Identifier TokenKind = iota + 1
	Operator
	StringLiteral
	NumericLiteral
)

func (k TokenKind) String() string {
	switch k {
	case Identifier:
		return "identifier"
	case Operator:
		return "operator"
	case StringLiteral:
		return "string"
	case NumericLiteral:
		return "number"
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// Token is one lexeme of normalized source. Pos is its byte offset.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Pos    int
}

func (t Token) is(kind TokenKind, lexeme string) bool {
	return t.Kind == kind && t.Lexeme == lexeme
}

func isOperator(c byte) bool {
	switch c {
	case '{', '}', ',', '<', '>', ';', '=', '[', ']':
		return true
	}
	return false
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+'
}

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
		c == '.' || c == '-' || c == '+'
}

func isSuffix(c byte) bool {
	switch c {
	case 'u', 'U', 'l', 'L', 'z', 'Z':
		return true
	}
	return false
}

// Tokenize splits src into tokens in one pass. String literals keep their
// quotes and escapes; integer suffixes are dropped from numeric literals.
func Tokenize(src string) ([]Token, error) {
	var toks []Token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case common.IsSpace(c):
			i++
		case isOperator(c):
			toks = append(toks, Token{Operator, src[i : i+1], i})
			i++
		case c == '"':
			j := i + 1
			for ; j < len(src); j++ {
				if src[j] == '\\' {
					j++
					continue
				}
				if src[j] == '"' {
					break
				}
			}
			if j >= len(src) {
				return nil, common.Errorf(i, common.ErrSyntax, "unterminated string literal")
			}
			toks = append(toks, Token{StringLiteral, src[i : j+1], i})
			i = j + 1
		case isNumberStart(c):
			j := i
			if c == '-' || c == '+' {
				j++
			}
			digits := j
			for j < len(src) {
				d := src[j]
				if isNumberChar(d) || ((d == 'x' || d == 'X') && j == digits+1 && src[digits] == '0') {
					j++
					continue
				}
				break
			}
			end := j
			for j < len(src) && isSuffix(src[j]) {
				j++
			}
			toks = append(toks, Token{NumericLiteral, src[i:end], i})
			i = j
		case common.IsIdentChar(c) || c == ':':
			j := i
			for j < len(src) && (common.IsIdentChar(src[j]) || src[j] == ':') {
				j++
			}
			toks = append(toks, Token{Identifier, src[i:j], i})
			i = j
		default:
			return nil, common.Errorf(i, common.ErrInvalidCharacter, "%q", c)
		}
	}
	return toks, nil
}
