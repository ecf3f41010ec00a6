package tabular

import (
	"regexp"
	"strings"
)

var (
	reservedChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// SanitizeName makes s safe as a single path element: the characters
// <>:"/\|?* are removed and whitespace runs become '-'.
func SanitizeName(s string) string {
	s = reservedChars.ReplaceAllString(s, "")
	return whitespaceRun.ReplaceAllString(s, "-")
}

// SanitizePath sanitizes every '/'-separated element of p and drops the empty
// ones ("." and ".." too), returning the elements ready for filepath.Join.
func SanitizePath(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		switch s := SanitizeName(part); s {
		case "", ".", "..":
		default:
			out = append(out, s)
		}
	}
	return out
}

// UnderscoreName replaces whitespace runs with '_' (course export file names).
func UnderscoreName(s string) string {
	return whitespaceRun.ReplaceAllString(s, "_")
}
