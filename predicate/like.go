package predicate

import (
	"strings"
	"unicode/utf8"
)

// MatchLike reports whether s matches the LIKE pattern.
func MatchLike(pattern, s string) bool {
	// Backtracking over the last %: linear in practice.
	var (
		p, i         int
		starP, starI = -1, -1
	)
	for i < len(s) {
		if p < len(pattern) {
			pc, pw := utf8.DecodeRuneInString(pattern[p:])
			switch pc {
			case '%':
				starP, starI = p+pw, i
				p += pw
				continue
			case '_':
				_, w := utf8.DecodeRuneInString(s[i:])
				p += pw
				i += w
				continue
			case '\\':
				if p+pw < len(pattern) {
					p += pw
					pc, pw = utf8.DecodeRuneInString(pattern[p:])
				}
			}
			sc, sw := utf8.DecodeRuneInString(s[i:])
			if pc == sc {
				p += pw
				i += sw
				continue
			}
		}
		if starP < 0 {
			return false
		}
		_, w := utf8.DecodeRuneInString(s[starI:])
		starI += w
		p, i = starP, starI
	}
	for p < len(pattern) && pattern[p] == '%' {
		p++
	}
	return p == len(pattern)
}

// LiteralPrefix returns the characters every match of pattern starts with,
// and whether the pattern is entirely literal.
func LiteralPrefix(pattern string) (prefix string, exact bool) {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '%', '_':
			return sb.String(), false
		case '\\':
			if i+1 < len(pattern) {
				i++
			}
			sb.WriteByte(pattern[i])
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), true
}
