package fragment

import (
	"fmt"
	"strconv"
	"strings"
)

// unquoteJS decodes the body of a single-quoted JavaScript string literal as
// written by the docs generator around embedded JSON.
func unquoteJS(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: trailing backslash", ErrMalformed)
		}
		switch c := s[i]; c {
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0':
			b.WriteByte(0)
		case 'x', 'u':
			width := 2
			if c == 'u' {
				width = 4
			}
			if i+1+width > len(s) {
				return "", fmt.Errorf("%w: short \\%c escape", ErrMalformed, c)
			}
			n, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", fmt.Errorf("%w: bad \\%c escape: %v", ErrMalformed, c, err)
			}
			b.WriteRune(rune(n))
			i += width
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
