package xml

import (
	"bytes"
	"unicode"
	"unicode/utf8"
)

// Normalize returns the text content of b with tabs and newlines turned into spaces, carriage returns removed, every run of two or more whitespace characters removed entirely and the result trimmed.
// A lone whitespace character between words is kept as is.
func Normalize(b []byte) []byte {
	return appendNormalized(nil, b)
}

func appendNormalized(dst, b []byte) []byte {
	start := len(dst)
	for i := 0; i < len(b); {
		n, pos, size := whitespaceRun(b[i:])
		if size == 0 {
			_, m := utf8.DecodeRune(b[i:])
			dst = append(dst, b[i:i+m]...)
			i += m
			continue
		}

		// runs of two or more are dropped, a run of only carriage returns vanishes as well
		if n == 1 {
			if c := b[i+pos]; c == '\t' || c == '\n' {
				dst = append(dst, ' ')
			} else {
				_, m := utf8.DecodeRune(b[i+pos:])
				dst = append(dst, b[i+pos:i+pos+m]...)
			}
		}
		i += size
	}
	trimmed := bytes.TrimFunc(dst[start:], unicode.IsSpace)
	return append(dst[:start], trimmed...)
}

// whitespaceRun returns the number of whitespace characters at the start of b, not counting carriage returns, the offset of the last one counted and the byte length of the run.
func whitespaceRun(b []byte) (int, int, int) {
	n, pos, i := 0, 0, 0
	for i < len(b) {
		c := b[i]
		if c == '\r' {
			i++
			continue
		} else if c < utf8.RuneSelf {
			if !isWhitespace(c) {
				break
			}
			n, pos = n+1, i
			i++
			continue
		}
		r, m := utf8.DecodeRune(b[i:])
		if !unicode.IsSpace(r) {
			break
		}
		n, pos = n+1, i
		i += m
	}
	return n, pos, i
}

// isWhitespace returns true for space, \n, \t, \v, \f, \r.
func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
