package parser

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/unalkalkan/narrator/pkg/types"
)

const ncxMediaType = "application/x-dtbncx+xml"

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap struct {
		NavPoints []navPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type navPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

// Elements that end a line of text
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true, atom.Tr: true,
	atom.Pre: true, atom.Hr: true, atom.Dt: true, atom.Dd: true, atom.Figcaption: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Header: true, atom.Footer: true,
}

// Elements whose text is never read aloud
var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Title: true,
}

// EPUBParser treats each spine document as a page and maps the NCX table
// of contents onto those pages
type EPUBParser struct {
	logger *slog.Logger
}

// NewEPUBParser creates a new EPUB parser
func NewEPUBParser(logger *slog.Logger) *EPUBParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &EPUBParser{logger: logger.With("component", "parser", "format", "epub")}
}

// Extract reads the spine in order and resolves the TOC to spine positions
func (p *EPUBParser) Extract(ctx context.Context, filename string) (*types.ExtractedDocument, error) {
	if err := checkFile(filename); err != nil {
		return nil, err
	}

	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %v: %w", err, types.ErrInvalidInput)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub: %w", types.ErrInvalidInput)
	}
	book := rc.Rootfiles[0]

	var texts []string
	hrefPages := make(map[string]int)
	for _, ref := range book.Spine.Itemrefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ref.Item == nil || ref.Item.ID == "nav" {
			continue
		}

		r, err := ref.Item.Open()
		if err != nil {
			p.logger.Debug("skipping unreadable spine item", "href", ref.Item.HREF, "error", err)
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			p.logger.Debug("skipping unreadable spine item", "href", ref.Item.HREF, "error", err)
			continue
		}

		texts = append(texts, htmlToText(string(data)))
		pageNum := len(texts)
		if ref.Item.HREF != "" {
			hrefPages[ref.Item.HREF] = pageNum
			if _, ok := hrefPages[path.Base(ref.Item.HREF)]; !ok {
				hrefPages[path.Base(ref.Item.HREF)] = pageNum
			}
		}
	}

	text, pages := assemble(texts)
	toc := p.tableOfContents(book, hrefPages)

	metadata := map[string]string{
		"title":      strings.TrimSpace(book.Metadata.Title),
		"author":     strings.TrimSpace(book.Metadata.Creator),
		"language":   strings.TrimSpace(book.Metadata.Language),
		"format":     "epub",
		"page_count": strconv.Itoa(len(pages)),
	}

	p.logger.Debug("epub extracted", "spine_items", len(pages), "toc_entries", len(toc), "chars", len(text))
	return &types.ExtractedDocument{
		Text:     text,
		Pages:    pages,
		Metadata: metadata,
		TOC:      toc,
	}, nil
}

func (p *EPUBParser) tableOfContents(book *epub.Rootfile, hrefPages map[string]int) []types.TOCEntry {
	var item *epub.Item
	for i := range book.Manifest.Items {
		if book.Manifest.Items[i].MediaType == ncxMediaType {
			item = &book.Manifest.Items[i]
			break
		}
	}
	if item == nil {
		return nil
	}

	r, err := item.Open()
	if err != nil {
		p.logger.Debug("failed to open NCX", "error", err)
		return nil
	}
	defer r.Close()

	var toc ncx
	if err := xml.NewDecoder(r).Decode(&toc); err != nil {
		p.logger.Debug("failed to parse NCX", "error", err)
		return nil
	}

	entries := flattenNavPoints(toc.NavMap.NavPoints, hrefPages, 1, nil)
	if len(entries) == 0 {
		return nil
	}
	return entries
}

// flattenNavPoints walks the NCX depth-first. Entries whose target is not
// in the spine are dropped.
func flattenNavPoints(points []navPoint, hrefPages map[string]int, level int, out []types.TOCEntry) []types.TOCEntry {
	for _, np := range points {
		title := strings.TrimSpace(np.Label.Text)
		href, _, _ := strings.Cut(np.Content.Src, "#")

		page, ok := hrefPages[href]
		if !ok {
			page, ok = hrefPages[path.Base(href)]
		}
		if title != "" && ok {
			out = append(out, types.TOCEntry{Level: level, Title: title, PageNum: page})
		}
		out = flattenNavPoints(np.Children, hrefPages, level+1, out)
	}
	return out
}

// htmlToText renders XHTML as paragraphs separated by blank lines. Inline
// markup is flattened into its surrounding line.
func htmlToText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return ""
	}

	var lines []string
	var line strings.Builder
	flush := func() {
		if t := strings.Join(strings.Fields(line.String()), " "); t != "" {
			lines = append(lines, t)
		}
		line.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			line.WriteString(n.Data)
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(doc)
	flush()

	return strings.Join(lines, "\n\n")
}

// SupportedFormats returns the formats this parser supports
func (p *EPUBParser) SupportedFormats() []string {
	return []string{"epub"}
}
