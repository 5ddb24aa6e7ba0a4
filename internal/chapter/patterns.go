package chapter

import "regexp"

// headingPattern is one row of the heading table. Numbered headings carry
// the prefix used to build the title; special sections use their own text.
type headingPattern struct {
	re       *regexp.Regexp
	prefix   string
	language string
}

const (
	numberedTail = `\s+(\d+|[IVXLC]+)\b(?:\s*[:\-.]?\s*(.*))?$`
	specialTail  = `\b(?:\s*[:\-.]?\s*(.*))?$`
)

func numbered(word, prefix, lang string) headingPattern {
	return headingPattern{
		re:       regexp.MustCompile(`(?i)^` + word + numberedTail),
		prefix:   prefix,
		language: lang,
	}
}

func special(word, lang string) headingPattern {
	return headingPattern{
		re:       regexp.MustCompile(`(?i)^(` + word + `)` + specialTail),
		language: lang,
	}
}

// headingPatterns is tested in order; the first match wins for a line.
// Go's (?i) folds Unicode, so "CAPÍTULO" and "Capítulo" share a row.
var headingPatterns = []headingPattern{
	numbered("Chapter", "Chapter", "en"),
	numbered("Part", "Part", "en"),
	special("Prologue", "en"),
	special("Epilogue", "en"),
	special("Introduction", "en"),
	special("Conclusion", "en"),
	special("Preface", "en"),
	special("Foreword", "en"),
	special("Afterword", "en"),

	numbered("Capítulo", "Capítulo", "es"),
	numbered("Capitulo", "Capítulo", "es"),
	numbered("Parte", "Parte", "es"),
	special("Prólogo", "es"),
	special("Prologo", "es"),
	special("Epílogo", "es"),
	special("Epilogo", "es"),
	special("Introducción", "es"),
	special("Introduccion", "es"),
	special("Conclusión", "es"),
	special("Prefacio", "es"),
}
