// Package chapter finds chapter boundaries in an extracted document, first
// from its outline and otherwise from heading lines in the text.
package chapter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

// DefaultMinChapterLength is the smallest span, in characters, kept as a chapter
const DefaultMinChapterLength = 500

// Detector produces an ordered, position-annotated chapter list
type Detector struct {
	minChapterLength int
	useTOCFirst      bool
	logger           *slog.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithMinChapterLength sets the false-positive threshold
func WithMinChapterLength(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.minChapterLength = n
		}
	}
}

// WithTOCFirst controls whether the outline is tried before heading scanning
func WithTOCFirst(enabled bool) Option {
	return func(d *Detector) {
		d.useTOCFirst = enabled
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector creates a new chapter detector
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		minChapterLength: DefaultMinChapterLength,
		useTOCFirst:      true,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "chapter")
	return d
}

// Detect returns the chapters of doc in detection order. An empty result
// means no boundaries were found and the caller should treat the whole
// document as a single chapter.
func (d *Detector) Detect(doc *types.ExtractedDocument) []types.Chapter {
	if doc == nil {
		return nil
	}

	var chapters []types.Chapter
	source := "toc"
	if d.useTOCFirst && len(doc.TOC) > 0 {
		chapters = d.fromTOC(doc.TOC, doc.Pages)
	}
	if len(chapters) == 0 {
		source = "headings"
		chapters = d.fromHeadings(doc.Text)
	}

	found := len(chapters)
	chapters = d.filterShort(chapters, len(doc.Text))
	setEndPositions(chapters, len(doc.Text))

	d.logger.Debug("chapters detected",
		"source", source,
		"found", found,
		"kept", len(chapters))

	return chapters
}

// fromTOC turns top-level outline entries into chapters, in outline order
func (d *Detector) fromTOC(toc []types.TOCEntry, pages []types.PageContent) []types.Chapter {
	entries := make([]types.TOCEntry, 0, len(toc))
	for _, entry := range toc {
		if strings.TrimSpace(entry.Title) == "" {
			continue
		}
		if entry.Level < 1 {
			entry.Level = 1
		}
		entries = append(entries, entry)
	}

	selected := selectLevel(entries, func(level int) bool { return level == 1 })
	if len(selected) == 0 {
		selected = selectLevel(entries, func(level int) bool { return level <= 2 })
	}

	chapters := make([]types.Chapter, 0, len(selected))
	for _, entry := range selected {
		offset, exact := resolvePageOffset(pages, entry.PageNum)
		if !exact && (len(pages) == 0 || entry.PageNum < pages[0].PageNum) {
			d.logger.Debug("toc entry precedes every page, using document start",
				"title", entry.Title,
				"page", entry.PageNum)
		}
		chapters = append(chapters, types.Chapter{
			Title:     strings.TrimSpace(entry.Title),
			StartPage: entry.PageNum,
			StartChar: offset,
		})
	}
	return chapters
}

func selectLevel(entries []types.TOCEntry, keep func(int) bool) []types.TOCEntry {
	var out []types.TOCEntry
	for _, entry := range entries {
		if keep(entry.Level) {
			out = append(out, entry)
		}
	}
	return out
}

// resolvePageOffset finds the character offset of page target. Without an
// exact match it falls back to the last page before target, or 0 when the
// target precedes every page.
func resolvePageOffset(pages []types.PageContent, target int) (int, bool) {
	offset := 0
	for _, page := range pages {
		if page.PageNum == target {
			return page.CharOffset, true
		}
		if page.PageNum > target {
			break
		}
		offset = page.CharOffset
	}
	return offset, false
}

// fromHeadings scans text line by line for chapter headings
func (d *Detector) fromHeadings(text string) []types.Chapter {
	var chapters []types.Chapter
	pos := 0

	for _, line := range strings.Split(text, "\n") {
		if title, ok := matchHeading(strings.TrimSpace(line)); ok {
			chapters = append(chapters, types.Chapter{
				Title:     title,
				StartPage: 0,
				StartChar: pos,
			})
		}
		pos += len(line) + 1
	}
	return chapters
}

// matchHeading tests a trimmed line against the heading table
func matchHeading(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	for _, p := range headingPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		subtitle := ""
		if len(m) > 2 {
			subtitle = strings.TrimSpace(m[2])
		}
		if p.prefix != "" {
			if subtitle != "" {
				return fmt.Sprintf("%s %s: %s", p.prefix, m[1], subtitle), true
			}
			return fmt.Sprintf("%s %s", p.prefix, m[1]), true
		}
		if subtitle != "" {
			return fmt.Sprintf("%s: %s", m[1], subtitle), true
		}
		return m[1], true
	}
	return "", false
}

// filterShort drops chapters whose span is below the minimum length.
// A single chapter is never dropped.
func (d *Detector) filterShort(chapters []types.Chapter, textLen int) []types.Chapter {
	if len(chapters) <= 1 {
		return chapters
	}

	kept := make([]types.Chapter, 0, len(chapters))
	for i, ch := range chapters {
		end := textLen
		if i+1 < len(chapters) {
			end = chapters[i+1].StartChar
		}
		if end-ch.StartChar < d.minChapterLength {
			d.logger.Debug("dropping short chapter",
				"title", ch.Title,
				"length", end-ch.StartChar)
			continue
		}
		kept = append(kept, ch)
	}
	return kept
}

// setEndPositions makes chapters contiguous: each ends where the next begins
// and the last ends at the document end
func setEndPositions(chapters []types.Chapter, textLen int) {
	for i := range chapters {
		end := textLen
		if i+1 < len(chapters) {
			end = chapters[i+1].StartChar
		}
		chapters[i].EndChar = types.IntPtr(end)
	}
}
