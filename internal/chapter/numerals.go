package chapter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

var (
	romanValues = map[rune]int{
		'I': 1, 'V': 5, 'X': 10, 'L': 50,
		'C': 100, 'D': 500, 'M': 1000,
	}

	titleNumberPattern = regexp.MustCompile(`\b(\d+|[IVXLC]+)\b`)
)

// RomanToInt decodes a Roman numeral using subtractive pairs.
// It reports false for unknown symbols or a zero result.
func RomanToInt(roman string) (int, bool) {
	roman = strings.ToUpper(strings.TrimSpace(roman))
	total := 0
	prev := 0

	runes := []rune(roman)
	for i := len(runes) - 1; i >= 0; i-- {
		value, ok := romanValues[runes[i]]
		if !ok {
			return 0, false
		}
		if value < prev {
			total -= value
		} else {
			total += value
		}
		prev = value
	}

	if total <= 0 {
		return 0, false
	}
	return total, true
}

// NormalizeNumber converts an Arabic or Roman chapter number to an int
func NormalizeNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	return RomanToInt(s)
}

// FindByNumber returns the first chapter whose title carries the given
// number. Titles are matched on their first embedded numeral, not on
// position, since numbering can skip or repeat.
func FindByNumber(chapters []types.Chapter, number int) (types.Chapter, bool) {
	for _, ch := range chapters {
		if n, ok := TitleNumber(ch.Title); ok && n == number {
			return ch, true
		}
	}
	return types.Chapter{}, false
}

// TitleNumber returns the first Arabic or Roman numeral in a title
func TitleNumber(title string) (int, bool) {
	match := titleNumberPattern.FindString(title)
	if match == "" {
		return 0, false
	}
	return NormalizeNumber(match)
}
