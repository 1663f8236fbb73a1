package similarity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold lowercases s with Turkish rules, so "I" becomes "ı" and "İ" becomes "i".
// A combining dot left behind by non-Turkish lowercasing ("i" + U+0307) is
// folded to a plain "i" as well.
func Fold(s string) string {
	// Casers keep state and are not safe for concurrent use.
	lower := cases.Lower(language.Turkish).String(s)
	return strings.ReplaceAll(lower, "i\u0307", "i")
}

// ContainsFolded reports whether needle occurs in haystack after folding both.
// An empty needle never matches.
func ContainsFolded(haystack, needle string) bool {
	needle = Fold(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	return strings.Contains(Fold(haystack), needle)
}
