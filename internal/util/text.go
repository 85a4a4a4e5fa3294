package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reNonDigits = regexp.MustCompile(`\D`)
	reAllDigits = regexp.MustCompile(`^[0-9]+$`)
)

// DigitsOnly drops every character that is not an ASCII digit.
func DigitsOnly(input string) string {
	return reNonDigits.ReplaceAllString(input, "")
}

func IsDigits(input string) bool {
	return reAllDigits.MatchString(input)
}

// Unquote trims surrounding whitespace and then every leading and trailing
// double quote.
func Unquote(input string) string {
	return strings.Trim(strings.TrimSpace(input), `"`)
}

// TruncateRunes cuts input to at most max characters. The second return value
// reports whether anything was cut.
func TruncateRunes(input string, max int) (string, bool) {
	if max < 0 {
		max = 0
	}
	if utf8.RuneCountInString(input) <= max {
		return input, false
	}
	r := []rune(input)
	return string(r[:max]), true
}
