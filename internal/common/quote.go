package common

import "strings"

// AppendQuoted appends s as a C string literal.
func AppendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\v':
			dst = append(dst, '\\', 'v')
		case '\a':
			dst = append(dst, '\\', 'a')
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

// Unquote decodes a double-quoted C string literal. lit must include both
// quotes and nothing else.
func Unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return "", Errorf(0, ErrSyntax, "string literal %q is not quoted", lit)
	}
	body := lit[1 : len(lit)-1]
	if strings.IndexByte(body, '\\') < 0 {
		if strings.IndexByte(body, '"') >= 0 {
			return "", Errorf(strings.IndexByte(body, '"')+1, ErrSyntax, "unescaped quote inside string literal")
		}
		return body, nil
	}
	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '"' {
			return "", Errorf(i+1, ErrSyntax, "unescaped quote inside string literal")
		}
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i == len(body) {
			return "", Errorf(i, ErrInvalidEscape, "dangling backslash")
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case 'a':
			sb.WriteByte('\a')
		case '0':
			sb.WriteByte(0)
		case '"', '\\', '\'', '?':
			sb.WriteByte(body[i])
		default:
			return "", Errorf(i, ErrInvalidEscape, "\\%c", body[i])
		}
	}
	return sb.String(), nil
}
