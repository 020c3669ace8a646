// Package stringutil holds small text helpers for terminal rendering.
package stringutil

import (
	"fmt"
	"strings"
	"time"
)

// Ellipsis flattens s to one line and shortens it to maxLength, ending in
// "..." when truncated. With maxLength <= 3 the result is a bare cut.
func Ellipsis(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if maxLength < 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}

// Millis renders d in milliseconds with three decimals, e.g. "12.345ms".
func Millis(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}

// Plural returns "1 host" or "3 hosts".
func Plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// OrDash returns s, or "-" when s is empty.
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
