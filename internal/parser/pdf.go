package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/unalkalkan/narrator/pkg/types"
)

var pdfInfoKeys = map[string]string{
	"title":    "Title",
	"author":   "Author",
	"subject":  "Subject",
	"creator":  "Creator",
	"producer": "Producer",
}

// PDFParser extracts page text with ledongthuc/pdf and the outline with
// pdfcpu
type PDFParser struct {
	logger *slog.Logger
}

// NewPDFParser creates a new PDF parser
func NewPDFParser(logger *slog.Logger) *PDFParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFParser{logger: logger.With("component", "parser", "format", "pdf")}
}

// Extract reads the text of every page and the document outline
func (p *PDFParser) Extract(ctx context.Context, path string) (doc *types.ExtractedDocument, err error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}

	// The text extractor panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("malformed PDF %s: %v: %w", path, r, types.ErrInvalidInput)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %v: %w", err, types.ErrInvalidInput)
	}
	defer f.Close()

	numPages := reader.NumPage()
	texts := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Debug("skipping unreadable page", "page", i, "error", err)
			continue
		}
		texts[i-1] = text
	}

	text, pages := assemble(texts)

	metadata := map[string]string{
		"format":     "pdf",
		"page_count": strconv.Itoa(numPages),
	}
	info := reader.Trailer().Key("Info")
	for key, pdfKey := range pdfInfoKeys {
		metadata[key] = strings.TrimSpace(info.Key(pdfKey).Text())
	}

	toc := p.outline(path, numPages)
	p.logger.Debug("pdf extracted", "pages", numPages, "toc_entries", len(toc), "chars", len(text))

	return &types.ExtractedDocument{
		Text:     text,
		Pages:    pages,
		Metadata: metadata,
		TOC:      toc,
	}, nil
}

// outline reads the bookmark tree. A missing or unreadable outline is
// not an error; chapter detection then falls back to headings.
func (p *PDFParser) outline(path string, numPages int) []types.TOCEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	bookmarks, err := api.Bookmarks(f, nil)
	if err != nil {
		p.logger.Debug("no usable outline", "error", err)
		return nil
	}
	return flattenBookmarks(bookmarks, 1, numPages, nil)
}

// flattenBookmarks walks the outline depth-first. Entries without a title
// or pointing outside the document are dropped.
func flattenBookmarks(bookmarks []pdfcpu.Bookmark, level, numPages int, out []types.TOCEntry) []types.TOCEntry {
	for _, bm := range bookmarks {
		title := strings.TrimSpace(bm.Title)
		if title != "" && bm.PageFrom > 0 && (numPages <= 0 || bm.PageFrom <= numPages) {
			out = append(out, types.TOCEntry{Level: level, Title: title, PageNum: bm.PageFrom})
		}
		out = flattenBookmarks(bm.Kids, level+1, numPages, out)
	}
	return out
}

// SupportedFormats returns the formats this parser supports
func (p *PDFParser) SupportedFormats() []string {
	return []string{"pdf"}
}
