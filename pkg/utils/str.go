package utils

import (
	"regexp"
	"strings"
)

// SplitByMultipleDelimiters splits s on any of the given single-character
// delimiters. Used for redis address lists like "a:6379;b:6379,c:6379".
func SplitByMultipleDelimiters(s string, delimiters ...string) []string {
	if len(delimiters) == 0 {
		return []string{s}
	}
	delimiterPattern := "[" + regexp.QuoteMeta(strings.Join(delimiters, "")) + "]"
	re := regexp.MustCompile(delimiterPattern)
	return re.Split(s, -1)
}
