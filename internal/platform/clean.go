package platform

import (
	"regexp"
	"strings"
)

var countPattern = regexp.MustCompile(`\d[\d.,\x{00a0}\x{202f} ]*(?:[KkMmBb]\b)?`)

// CountText keeps the leading count of strings such as "1.2M subscribers".
// Text without digits cleans to "".
func CountText(s string) string {
	m := countPattern.FindString(s)
	return strings.TrimSpace(strings.Trim(m, ". ,\u00a0\u202f"))
}

// TrimSuffixes returns a cleaner removing any of the given suffixes
func TrimSuffixes(suffixes ...string) func(string) string {
	return func(s string) string {
		s = strings.TrimSpace(s)
		for _, suffix := range suffixes {
			s = strings.TrimSuffix(s, suffix)
		}
		return strings.TrimSpace(s)
	}
}

// FirstLine keeps the text before the first line break
func FirstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// Handle strips a leading "@"
func Handle(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
