package format

import (
	"net/url"
	"strconv"
	"strings"
)

// EscapeComponent escapes s for use inside a URL the way a browser's
// encodeURIComponent does, so spaces become %20 rather than +.
func EscapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Count groups the digits of n in threes separated by spaces: 1234567 -> "1 234 567"
func Count(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}
