package model

import "strings"

// SanitizePath turns s into a platform-legal group path: it is lowercased and
// every rune outside [a-z0-9.-] becomes '-'.
func SanitizePath(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '-'
	}, strings.ToLower(s))
}
