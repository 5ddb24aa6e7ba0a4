// Package chunker partitions normalized text into bounded segments for
// speech synthesis.
//
// Chunking is deterministic: the same text, chapters and Config always give
// the same sequence. Checkpoint resume depends on this, since completed
// chunks are matched by index.
package chunker

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"

	"github.com/unalkalkan/narrator/pkg/types"
)

// Defaults for Config
const (
	DefaultMaxChars            = 400
	DefaultMinChars            = 50
	DefaultParagraphPauseChars = 100
)

var (
	paragraphSplit = regexp.MustCompile(`\n\n+`)
	clauseSplit    = regexp.MustCompile(`[,;]\s+|\s+(?:and|or|but|because|while|when)\s+`)
)

// Config bounds chunk sizes. Lengths are counted in characters (runes).
type Config struct {
	MaxChars            int `yaml:"max_chars" json:"max_chars"`
	MinChars            int `yaml:"min_chars" json:"min_chars"`
	ParagraphPauseChars int `yaml:"paragraph_pause_chars" json:"paragraph_pause_chars"`
	// Language selects the punkt sentence model ("en", "es"). Other values
	// use the rule based splitter.
	Language string `yaml:"language" json:"language"`
}

// DefaultConfig returns the default chunking configuration
func DefaultConfig() Config {
	return Config{
		MaxChars:            DefaultMaxChars,
		MinChars:            DefaultMinChars,
		ParagraphPauseChars: DefaultParagraphPauseChars,
	}
}

// Chunker splits text into TTS-sized segments
type Chunker struct {
	cfg       Config
	logger    *slog.Logger
	tokenizer *sentences.DefaultSentenceTokenizer
}

// Option configures a Chunker
type Option func(*Chunker)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new chunker. Non-positive limits fall back to defaults.
func New(cfg Config, opts ...Option) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.MinChars < 0 {
		cfg.MinChars = 0
	}
	if cfg.ParagraphPauseChars < 0 {
		cfg.ParagraphPauseChars = 0
	}

	c := &Chunker{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chunker")
	c.loadTokenizer()
	return c
}

// ForLanguage returns a chunker with the same limits that splits sentences
// with the model for lang
func (c *Chunker) ForLanguage(lang string) *Chunker {
	if lang == c.cfg.Language {
		return c
	}
	next := *c
	next.cfg.Language = lang
	next.tokenizer = nil
	next.loadTokenizer()
	return &next
}

func (c *Chunker) loadTokenizer() {
	if c.cfg.Language == "" {
		return
	}
	tokenizer, err := tokenizerFor(c.cfg.Language)
	if err != nil {
		c.logger.Warn("sentence model unavailable, using rule based splitter",
			"language", c.cfg.Language, "error", err)
		return
	}
	c.tokenizer = tokenizer
}

// splitSentences uses the punkt model when one is loaded
func (c *Chunker) splitSentences(paragraph string) []string {
	if c.tokenizer == nil {
		return SplitSentences(paragraph)
	}
	return tokenize(c.tokenizer, paragraph)
}

// Config returns the effective configuration
func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk splits text into ordered chunks. When chapters are given, each
// chunk records the index of the chapter its paragraph starts in.
func (c *Chunker) Chunk(text string, chapters []types.Chapter) []types.TextChunk {
	paragraphs := splitParagraphs(text)

	var chunks []types.TextChunk
	offset := 0
	for i, paragraph := range paragraphs {
		var chapterIdx *int
		if len(chapters) > 0 {
			chapterIdx = findChapter(offset, chapters)
		}

		group := c.groupSentences(c.splitSentences(paragraph), chapterIdx)
		if len(group) > 0 && runeLen(paragraph) >= c.cfg.ParagraphPauseChars {
			group[len(group)-1].ParagraphBreakAfter = i < len(paragraphs)-1
		}
		chunks = append(chunks, group...)

		offset += len(paragraph) + 2
	}

	before := len(chunks)
	chunks = c.mergeShort(chunks)

	c.logger.Debug("text chunked",
		"language", c.cfg.Language,
		"paragraphs", len(paragraphs),
		"chunks", len(chunks),
		"merged", before-len(chunks))
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// findChapter returns the first chapter whose span contains pos. A nil end
// is open ended.
func findChapter(pos int, chapters []types.Chapter) *int {
	for i, ch := range chapters {
		if ch.StartChar <= pos && (ch.EndChar == nil || pos < *ch.EndChar) {
			return types.IntPtr(i)
		}
	}
	return nil
}

// groupSentences packs sentences greedily. Oversized sentences flush the
// buffer and are emitted as their own sub-split pieces.
func (c *Chunker) groupSentences(sentences []string, chapterIdx *int) []types.TextChunk {
	var chunks []types.TextChunk
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, types.TextChunk{Text: s, ChapterIdx: chapterIdx})
		}
	}

	current := ""
	for _, sentence := range sentences {
		if runeLen(sentence) > c.cfg.MaxChars {
			emit(current)
			current = ""
			for _, piece := range c.splitLongSentence(sentence) {
				emit(piece)
			}
			continue
		}

		candidate := strings.TrimSpace(current + " " + sentence)
		if runeLen(candidate) > c.cfg.MaxChars {
			emit(current)
			current = sentence
		} else {
			current = candidate
		}
	}
	emit(current)
	return chunks
}

// splitLongSentence breaks at clause boundaries first, then at words for
// any piece still over budget
func (c *Chunker) splitLongSentence(sentence string) []string {
	var pieces []string
	current := ""
	for _, part := range splitKeepingDelimiters(sentence, clauseSplit) {
		candidate := current + part
		if runeLen(candidate) > c.cfg.MaxChars && current != "" {
			pieces = append(pieces, strings.TrimSpace(current))
			current = part
		} else {
			current = candidate
		}
	}
	if current != "" {
		pieces = append(pieces, strings.TrimSpace(current))
	}

	var out []string
	for _, piece := range pieces {
		if runeLen(piece) > c.cfg.MaxChars {
			out = append(out, c.forceSplit(piece)...)
		} else {
			out = append(out, piece)
		}
	}
	return out
}

// forceSplit packs whole words. A single word longer than MaxChars is
// emitted on its own rather than cut.
func (c *Chunker) forceSplit(text string) []string {
	var out []string
	var current []string
	currentLen := 0

	for _, word := range strings.Fields(text) {
		n := runeLen(word)
		if currentLen+n+1 > c.cfg.MaxChars && len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = []string{word}
			currentLen = n
			continue
		}
		current = append(current, word)
		currentLen += n + 1
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// mergeShort folds a chunk under MinChars into its successor when the
// result fits. The merged chunk takes the successor's metadata.
func (c *Chunker) mergeShort(chunks []types.TextChunk) []types.TextChunk {
	if len(chunks) == 0 {
		return chunks
	}

	merged := make([]types.TextChunk, 0, len(chunks))
	buffer := chunks[0]
	for _, chunk := range chunks[1:] {
		bufLen := runeLen(buffer.Text)
		if bufLen < c.cfg.MinChars && bufLen+runeLen(chunk.Text)+1 <= c.cfg.MaxChars {
			buffer = types.TextChunk{
				Text:                buffer.Text + " " + chunk.Text,
				ChapterIdx:          chunk.ChapterIdx,
				ParagraphBreakAfter: chunk.ParagraphBreakAfter,
			}
			continue
		}
		merged = append(merged, buffer)
		buffer = chunk
	}
	return append(merged, buffer)
}

// splitKeepingDelimiters splits s around re matches and keeps each match
// as its own element
func splitKeepingDelimiters(s string, re *regexp.Regexp) []string {
	var parts []string
	last := 0
	for _, loc := range re.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			parts = append(parts, s[last:loc[0]])
		}
		if loc[1] > loc[0] {
			parts = append(parts, s[loc[0]:loc[1]])
		}
		last = loc[1]
	}
	if last < len(s) {
		parts = append(parts, s[last:])
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
