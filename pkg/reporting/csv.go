package reporting

import (
	"strconv"
	"strings"
)

// formatFloat writes v with at most six decimals and at least one, so 0
// becomes "0.0" and 0.30000000000000004 becomes "0.3".
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	if s == "-0.0" {
		s = "0.0"
	}
	return s
}

// quote wraps s in double quotes, doubling any quote inside it
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
