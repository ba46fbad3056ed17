package utils

import "unicode/utf8"

// Truncate returns the first n characters of s, followed by "..." when s was
// longer than that.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
