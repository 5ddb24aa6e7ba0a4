package pronunciation

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LongestFirst returns the keys of table ordered by descending length, ties
// broken lexically so replacement order is stable across runs
func LongestFirst(table map[string]string) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// ReplaceBounded replaces occurrences of key that start on a word boundary.
// With wholeWord the occurrence must also end on one. Boundaries are
// Unicode aware, so accented words are matched like ASCII ones.
func ReplaceBounded(text, key, replacement string, wholeWord bool) string {
	if key == "" || !strings.Contains(text, key) {
		return text
	}

	var b strings.Builder
	pos := 0
	for pos <= len(text) {
		idx := strings.Index(text[pos:], key)
		if idx < 0 {
			break
		}
		start := pos + idx
		end := start + len(key)

		if isBoundary(text, start) && (!wholeWord || isBoundary(text, end)) {
			b.WriteString(text[pos:start])
			b.WriteString(replacement)
			pos = end
			continue
		}

		// Step past the first rune of this candidate and keep scanning
		_, size := utf8.DecodeRuneInString(text[start:])
		b.WriteString(text[pos : start+size])
		pos = start + size
	}
	b.WriteString(text[pos:])
	return b.String()
}

// isBoundary reports whether a word boundary sits at byte offset i
func isBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
