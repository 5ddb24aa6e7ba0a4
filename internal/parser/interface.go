package parser

import (
	"context"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

// Parser defines the interface for document extractors
type Parser interface {
	// Extract reads the document at path and returns its text and structure
	Extract(ctx context.Context, path string) (*types.ExtractedDocument, error)

	// SupportedFormats returns the file extensions this parser handles
	SupportedFormats() []string
}

// assemble trims each page and joins the non-empty ones with
// types.PageSeparator. Every page's CharOffset points at its text inside
// the joined string; an empty page points where the next text starts.
func assemble(texts []string) (string, []types.PageContent) {
	var b strings.Builder
	pages := make([]types.PageContent, 0, len(texts))

	for i, raw := range texts {
		text := strings.TrimSpace(raw)
		if text != "" && b.Len() > 0 {
			b.WriteString(types.PageSeparator)
		}
		pages = append(pages, types.PageContent{
			PageNum:    i + 1,
			Text:       text,
			CharOffset: b.Len(),
		})
		b.WriteString(text)
	}

	// Empty pages recorded before a separator was written point at it
	full := b.String()
	for i := range pages {
		if pages[i].Text == "" && strings.HasPrefix(full[pages[i].CharOffset:], types.PageSeparator) {
			pages[i].CharOffset += len(types.PageSeparator)
		}
	}
	return full, pages
}
