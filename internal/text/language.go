package text

import (
	"strings"
	"unicode"
)

// Language codes reported by DetectLanguage
const (
	LanguageEnglish = "en"
	LanguageSpanish = "es"
	LanguageUnknown = "unknown"
)

const (
	minDetectionWords = 5
	markerThreshold   = 0.05
)

var (
	spanishMarkers = markerSet(
		"el", "la", "los", "las", "de", "del", "que", "en",
		"y", "a", "por", "con", "para", "su", "se", "no",
		"como", "más", "pero", "sus", "es", "era", "sí", "yo",
	)
	englishMarkers = markerSet(
		"the", "and", "of", "to", "a", "in", "that", "is",
		"was", "he", "for", "it", "with", "as", "his", "on",
		"be", "at", "by", "i", "this", "had", "not", "are",
	)
)

func markerSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// DetectLanguage guesses between English and Spanish from the share of
// common function words. Texts under five words are unknown.
func DetectLanguage(text string) string {
	lower := strings.ToLower(text)

	total := len(strings.Fields(lower))
	if total < minDetectionWords {
		return LanguageUnknown
	}

	var spanish, english int
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r))
	}) {
		if _, ok := spanishMarkers[token]; ok {
			spanish++
		}
		if _, ok := englishMarkers[token]; ok {
			english++
		}
	}

	spanishRatio := float64(spanish) / float64(total)
	englishRatio := float64(english) / float64(total)

	switch {
	case spanishRatio > englishRatio && spanishRatio > markerThreshold:
		return LanguageSpanish
	case englishRatio > spanishRatio && englishRatio > markerThreshold:
		return LanguageEnglish
	default:
		return LanguageUnknown
	}
}
