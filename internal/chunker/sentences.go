package chunker

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/data"
	"github.com/neurosnap/sentences/english"
)

// punktTraining maps detected languages to bundled punkt training data
var punktTraining = map[string]string{
	"es": "data/spanish.json",
}

var (
	tokenizersMu sync.Mutex
	tokenizers   = map[string]*sentences.DefaultSentenceTokenizer{}
)

// tokenizerFor returns a cached punkt tokenizer for lang. Languages without
// training data return nil and use SplitSentences.
func tokenizerFor(lang string) (*sentences.DefaultSentenceTokenizer, error) {
	tokenizersMu.Lock()
	defer tokenizersMu.Unlock()

	if t, ok := tokenizers[lang]; ok {
		return t, nil
	}

	var tokenizer *sentences.DefaultSentenceTokenizer
	switch lang {
	case "en":
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load english sentence model: %w", err)
		}
		tokenizer = t
	default:
		asset, ok := punktTraining[lang]
		if !ok {
			return nil, nil
		}
		b, err := data.Asset(asset)
		if err != nil {
			return nil, fmt.Errorf("failed to read sentence model %s: %w", asset, err)
		}
		training, err := sentences.LoadTraining(b)
		if err != nil {
			return nil, fmt.Errorf("failed to load sentence model %s: %w", asset, err)
		}
		tokenizer = sentences.NewSentenceTokenizer(training)
	}

	tokenizers[lang] = tokenizer
	return tokenizer, nil
}

// tokenize splits text with a punkt tokenizer, trimming each sentence
func tokenize(tokenizer *sentences.DefaultSentenceTokenizer, text string) []string {
	var out []string
	for _, sentence := range tokenizer.Tokenize(text) {
		if s := strings.TrimSpace(sentence.Text); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nonTerminalAbbreviations end with a period but rarely end a sentence
var nonTerminalAbbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "mt": {}, "fig": {}, "vol": {}, "ch": {},
	"inc": {}, "ltd": {}, "corp": {}, "dept": {}, "approx": {}, "e.g": {}, "i.e": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {},
	"sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
	"sra": {}, "srta": {}, "dra": {}, "ud": {}, "uds": {}, "lic": {}, "ing": {},
	"pág": {}, "núm": {}, "cap": {},
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '»':
		return true
	}
	return false
}

// SplitSentences breaks a paragraph after terminal punctuation that is
// followed by whitespace. It serves languages without a punkt model. A period closing a known abbreviation or a single
// initial ("J.", "F. B. I.") does not end a sentence.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminal(r) {
			i += size
			continue
		}

		end := i + size
		for end < len(text) {
			next, n := utf8.DecodeRuneInString(text[end:])
			if !isTerminal(next) && !isCloser(next) {
				break
			}
			end += n
		}

		if end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(next) {
				i = end
				continue
			}
		}

		if r == '.' && end == i+size && isAbbreviation(text[start:i]) {
			i = end
			continue
		}

		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
		i = end
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isAbbreviation checks the word just before a period
func isAbbreviation(before string) bool {
	fields := strings.Fields(before)
	if len(fields) == 0 {
		return false
	}
	word := strings.TrimLeftFunc(fields[len(fields)-1], func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		return unicode.IsUpper([]rune(word)[0])
	}
	_, ok := nonTerminalAbbreviations[strings.ToLower(word)]
	return ok
}
