package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/unalkalkan/narrator/pkg/types"
)

// TXTParser parses plain text files. Form feeds separate pages.
type TXTParser struct{}

// NewTXTParser creates a new TXT parser
func NewTXTParser() *TXTParser {
	return &TXTParser{}
}

// Extract reads a UTF-8 text file. Invalid byte sequences are replaced.
func (p *TXTParser) Extract(ctx context.Context, path string) (*types.ExtractedDocument, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "\uFFFD")
	}
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	text, pages := assemble(strings.Split(content, "\f"))
	return &types.ExtractedDocument{
		Text:  text,
		Pages: pages,
		Metadata: map[string]string{
			"title":      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			"format":     "txt",
			"page_count": strconv.Itoa(len(pages)),
		},
	}, nil
}

// SupportedFormats returns the formats this parser supports
func (p *TXTParser) SupportedFormats() []string {
	return []string{"txt"}
}
