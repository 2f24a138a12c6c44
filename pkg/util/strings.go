package util

import (
	"strconv"
	"strings"
)

// NormalizeID trims an identifier and drops the ".0" suffix spreadsheets add
// to integer cells.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}
