package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// FormatNumber renders a count with thousands separators.
func FormatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) > 3 {
		chars := []rune(s)
		result := []rune{}
		for i := len(chars) - 1; i >= 0; i-- {
			if len(result) > 0 && len(result)%4 == 3 {
				result = append([]rune{','}, result...)
			}
			result = append([]rune{chars[i]}, result...)
		}
		s = string(result)
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatDuration renders a duration as "Xh Ym" or "Ym".
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Truncate shortens a string to the given display width, appending an
// ellipsis when anything was cut. Newlines are collapsed so a truncated
// preview stays on one line.
func Truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
