package types

import "fmt"

// PageSeparator joins page texts into ExtractedDocument.Text
const PageSeparator = "\n\n"

// ExtractedDocument is the text and structure pulled out of an input file
type ExtractedDocument struct {
	Text     string            `json:"text"`
	Pages    []PageContent     `json:"pages"`
	Metadata map[string]string `json:"metadata"`
	TOC      []TOCEntry        `json:"toc,omitempty"` // nil when the source has no outline
}

// PageContent is a single page (PDF) or section (EPUB) of a document
type PageContent struct {
	PageNum    int    `json:"page_num"`
	Text       string `json:"text"`
	CharOffset int    `json:"char_offset"` // Offset of Text inside ExtractedDocument.Text
}

// TOCEntry is one outline entry. Producers give no ordering guarantee.
type TOCEntry struct {
	Level   int    `json:"level"`
	Title   string `json:"title"`
	PageNum int    `json:"page_num"`
}

// Chapter is a detected chapter boundary inside ExtractedDocument.Text
type Chapter struct {
	Title     string `json:"title"`
	StartPage int    `json:"start_page"` // 0 when derived from a heading match
	StartChar int    `json:"start_char"`
	EndChar   *int   `json:"end_char,omitempty"` // nil means "to the end of the document"
}

// Text returns the chapter's slice of the full document text
func (c Chapter) Text(full string) string {
	start := clamp(c.StartChar, 0, len(full))
	if c.EndChar == nil {
		return full[start:]
	}
	end := clamp(*c.EndChar, start, len(full))
	return full[start:end]
}

// Contains reports whether pos falls inside [StartChar, EndChar)
func (c Chapter) Contains(pos int) bool {
	if pos < c.StartChar {
		return false
	}
	return c.EndChar == nil || pos < *c.EndChar
}

// TextChunk is a bounded unit of text handed to the synthesizer in one call
type TextChunk struct {
	Text                string `json:"text"`
	ChapterIdx          *int   `json:"chapter_idx,omitempty"`
	ParagraphBreakAfter bool   `json:"paragraph_break_after"`
}

// ChapterMarker is a chapter start position in the rendered audio
type ChapterMarker struct {
	Title     string  `json:"title"`
	StartTime float64 `json:"start_time"` // seconds
}

// ConversionResult summarizes a finished conversion
type ConversionResult struct {
	OutputPath      string          `json:"output_path"`
	DurationSeconds float64         `json:"duration_seconds"`
	Chapters        []ChapterMarker `json:"chapters"`
	ChunksProcessed int             `json:"chunks_processed"`
	ChunksResumed   int             `json:"chunks_resumed"`
	Language        string          `json:"language"`
}

// FormattedDuration renders the duration as HH:MM:SS
func (r ConversionResult) FormattedDuration() string {
	total := int(r.DurationSeconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
