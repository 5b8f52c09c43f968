package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

var reAccountRunes = regexp.MustCompile(`[^a-z0-9_\-]+`)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeLabel normalizes free-text labels such as metadata URIs' display
// names.
func NormalizeLabel(label string) string {
	return strings.ToLower(TrimAndNormalize(label))
}

// NormalizeAccount canonicalizes an account identifier so the same party
// always compares equal: lowercased, trimmed, everything outside
// [a-z0-9_-] stripped.
func NormalizeAccount(account string) string {
	s := strings.ToLower(strings.TrimSpace(account))
	return reAccountRunes.ReplaceAllString(s, "")
}
