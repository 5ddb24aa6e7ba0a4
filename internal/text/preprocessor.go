// Package text cleans extracted document text so it reads naturally when
// synthesized.
package text

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/unalkalkan/narrator/internal/pronunciation"
	"github.com/unalkalkan/narrator/pkg/types"
)

var (
	ligatureReplacer = strings.NewReplacer(
		"\ufb00", "ff",
		"\ufb01", "fi",
		"\ufb02", "fl",
		"\ufb03", "ffi",
		"\ufb04", "ffl",
		"\ufb05", "st",
		"\ufb06", "st",
	)

	encodingReplacer = strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		"\u2018", "'",
		"\u2019", "'",
		"\u201c", `"`,
		"\u201d", `"`,
		"\u2013", "-",
		"\u2014", " - ",
		"\u2026", "...",
		"\u00a0", " ",
		"\u00ad", "",
		"\ufeff", "",
	)

	hyphenBreakPattern = regexp.MustCompile(`([\p{L}\p{N}_]+)-[ \t]*\n[ \t]*([\p{L}\p{N}_]+)`)

	pageNumberLine  = regexp.MustCompile(`^\d+$`)
	pageHeaderLine  = regexp.MustCompile(`(?i)^(page\s+)?\d+\s*$`)
	separatorLine   = regexp.MustCompile(`^[-_=]{3,}$`)
	dollarAmount    = regexp.MustCompile(`\$(\d)`)
	euroAmount      = regexp.MustCompile(`€(\d)`)
	phoneNumber     = regexp.MustCompile(`(\d{3})-(\d{3})-(\d{4})`)
	repeatedPeriods = regexp.MustCompile(`\.{2,}`)
	repeatedBangs   = regexp.MustCompile(`!{2,}`)
	repeatedQueries = regexp.MustCompile(`\?{2,}`)
	missingSpace    = regexp.MustCompile(`([.!?])([A-Za-z])`)
	openParen       = regexp.MustCompile(`\s*\(\s*`)
	closeParen      = regexp.MustCompile(`\s*\)\s*`)
	newlineRun      = regexp.MustCompile(`\n+`)
	blankRun        = regexp.MustCompile(`[ \t]+`)
	paragraphEdge   = regexp.MustCompile(` *\n\n *`)
)

// Preprocessor normalizes raw text for synthesis. A Preprocessor remembers
// the language of its last run and is not safe for concurrent use.
type Preprocessor struct {
	language   string
	dictionary *pronunciation.Dictionary
	logger     *slog.Logger
	detected   string
}

// Option configures a Preprocessor
type Option func(*Preprocessor)

// WithLanguage forces the language instead of detecting it
func WithLanguage(lang string) Option {
	return func(p *Preprocessor) {
		p.language = lang
	}
}

// WithDictionary applies a custom pronunciation dictionary
func WithDictionary(d *pronunciation.Dictionary) Option {
	return func(p *Preprocessor) {
		p.dictionary = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Preprocessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPreprocessor creates a new text preprocessor
func NewPreprocessor(opts ...Option) *Preprocessor {
	p := &Preprocessor{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "text")
	return p
}

// DetectedLanguage reports the language used by the last Process call
func (p *Preprocessor) DetectedLanguage() string {
	return p.detected
}

// Process runs the full normalization pipeline over raw
func (p *Preprocessor) Process(raw string) string {
	p.detected = p.resolveLanguage(raw)
	out := p.process(raw, p.detected)

	p.logger.Debug("text preprocessed",
		"language", p.detected,
		"input_chars", len(raw),
		"output_chars", len(out))
	return out
}

// ProcessChapters normalizes the front matter and each chapter on its own,
// using one language for the whole document, and joins the pieces with a
// paragraph break. The returned chapters carry spans into the normalized
// text so paragraph offsets still land in the right chapter.
func (p *Preprocessor) ProcessChapters(full string, chapters []types.Chapter) (string, []types.Chapter) {
	if len(chapters) == 0 {
		return p.Process(full), nil
	}

	p.detected = p.resolveLanguage(full)

	var b strings.Builder
	appendSegment := func(segment string) {
		if segment == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(segment)
	}

	first := chapters[0].StartChar
	if first > len(full) {
		first = len(full)
	}
	if first > 0 {
		appendSegment(p.process(full[:first], p.detected))
	}

	rebuilt := make([]types.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		segment := p.process(ch.Text(full), p.detected)
		appendSegment(segment)

		start := b.Len() - len(segment)
		rebuilt = append(rebuilt, types.Chapter{
			Title:     ch.Title,
			StartPage: ch.StartPage,
			StartChar: start,
			EndChar:   types.IntPtr(b.Len()),
		})
	}

	out := b.String()
	p.logger.Debug("chapters preprocessed",
		"language", p.detected,
		"chapters", len(rebuilt),
		"input_chars", len(full),
		"output_chars", len(out))
	return out, rebuilt
}

func (p *Preprocessor) resolveLanguage(raw string) string {
	if p.language != "" {
		return p.language
	}
	return DetectLanguage(raw)
}

func (p *Preprocessor) process(text, lang string) string {
	text = FixLigatures(text)
	text = FixEncoding(text)
	text = RejoinHyphenated(text)
	text = RemovePageArtifacts(text)
	text = ExpandAbbreviations(text, lang)
	text = p.dictionary.Apply(text)
	text = NormalizeNumbers(text)
	text = NormalizePunctuation(text)
	text = NormalizeWhitespace(text)
	return text
}

// FixLigatures replaces typographic ligatures with plain letters
func FixLigatures(text string) string {
	return ligatureReplacer.Replace(text)
}

// FixEncoding straightens smart quotes and dashes and drops invisible marks
func FixEncoding(text string) string {
	return encodingReplacer.Replace(text)
}

// RejoinHyphenated joins words split by a hyphen at a line break
func RejoinHyphenated(text string) string {
	return hyphenBreakPattern.ReplaceAllString(text, "${1}${2}")
}

// RemovePageArtifacts drops page-number lines and separator rules
func RemovePageArtifacts(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if pageNumberLine.MatchString(stripped) ||
			pageHeaderLine.MatchString(stripped) ||
			separatorLine.MatchString(stripped) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ExpandAbbreviations expands the abbreviation table for lang, longest first
func ExpandAbbreviations(text, lang string) string {
	table := Abbreviations(lang)
	for _, abbrev := range pronunciation.LongestFirst(table) {
		text = pronunciation.ReplaceBounded(text, abbrev, table[abbrev], false)
	}
	return text
}

// NormalizeNumbers spaces currency symbols and groups phone numbers
func NormalizeNumbers(text string) string {
	text = dollarAmount.ReplaceAllString(text, "$$ ${1}")
	text = euroAmount.ReplaceAllString(text, "€ ${1}")
	text = phoneNumber.ReplaceAllString(text, "${1}, ${2}, ${3}")
	return text
}

// NormalizePunctuation collapses repeated marks and fixes spacing
func NormalizePunctuation(text string) string {
	text = repeatedPeriods.ReplaceAllString(text, "...")
	text = repeatedBangs.ReplaceAllString(text, "!")
	text = repeatedQueries.ReplaceAllString(text, "?")
	text = missingSpace.ReplaceAllString(text, "${1} ${2}")
	text = openParen.ReplaceAllString(text, " (")
	text = closeParen.ReplaceAllString(text, ") ")
	text = strings.ReplaceAll(text, ";", ".")
	return text
}

// NormalizeWhitespace keeps paragraph breaks and joins wrapped lines
func NormalizeWhitespace(text string) string {
	text = newlineRun.ReplaceAllStringFunc(text, func(run string) string {
		if len(run) == 1 {
			return " "
		}
		return "\n\n"
	})
	text = blankRun.ReplaceAllString(text, " ")
	text = paragraphEdge.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
