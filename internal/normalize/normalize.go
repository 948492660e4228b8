package normalize

import "strings"

// Pair returns the two user ids in canonical (lexicographic) order so that
// an unordered participant pair always maps to the same ordered pair.
func Pair(a, b string) (string, string) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if b < a {
		return b, a
	}
	return a, b
}

// PairKey returns a stable storage key for an unordered participant pair.
// The key is the value indexed uniquely on the conversations collection, so
// find-or-create races from both participants collapse onto one document.
func PairKey(a, b string) string {
	lo, hi := Pair(a, b)
	return lo + "|" + hi
}
