package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

// Factory creates parsers for different formats
type Factory struct {
	parsers map[string]Parser
}

// NewFactory creates a new parser factory with the PDF, EPUB and TXT parsers
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		parsers: make(map[string]Parser),
	}

	f.Register(NewTXTParser())
	f.Register(NewPDFParser(logger))
	f.Register(NewEPUBParser(logger))

	return f
}

// Register adds a parser for its supported formats
func (f *Factory) Register(p Parser) {
	for _, format := range p.SupportedFormats() {
		f.parsers[strings.ToLower(format)] = p
	}
}

// Get returns a parser for the given format
func (f *Factory) Get(format string) (Parser, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	p, ok := f.parsers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported input format %q: %w", format, types.ErrInvalidInput)
	}
	return p, nil
}

// ForPath returns the parser matching the file extension of path
func (f *Factory) ForPath(path string) (Parser, error) {
	return f.Get(filepath.Ext(path))
}

// Formats lists the supported extensions
func (f *Factory) Formats() []string {
	formats := make([]string, 0, len(f.parsers))
	for format := range f.parsers {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Extract checks that path exists and hands it to the matching parser
func (f *Factory) Extract(ctx context.Context, path string) (*types.ExtractedDocument, error) {
	p, err := f.ForPath(path)
	if err != nil {
		return nil, err
	}
	if err := checkFile(path); err != nil {
		return nil, err
	}
	return p.Extract(ctx, path)
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("input file %s: %w", path, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to stat input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory: %w", path, types.ErrInvalidInput)
	}
	return nil
}
