// Package format provides shared formatting utilities for human-readable output.
package format

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Duration formats a duration for human-readable output.
func Duration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	}

	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%.1fm", d.Minutes())
}

// Truncate shortens s to at most n runes, ending with "..." when cut.
func Truncate(s string, n int) string {
	if n <= 3 || utf8.RuneCountInString(s) <= n {
		return s
	}

	r := []rune(s)

	return string(r[:n-3]) + "..."
}
