package parser

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/unalkalkan/narrator/pkg/types"
)

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>The Test Book</dc:title>
    <dc:creator>Jane Writer</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1" playOrder="1">
      <navLabel><text>Chapter One</text></navLabel>
      <content src="text/ch1.xhtml"/>
      <navPoint id="p1a" playOrder="2">
        <navLabel><text>A Section</text></navLabel>
        <content src="text/ch1.xhtml#sec"/>
      </navPoint>
    </navPoint>
    <navPoint id="p2" playOrder="3">
      <navLabel><text> Chapter Two </text></navLabel>
      <content src="text/ch2.xhtml"/>
    </navPoint>
    <navPoint id="p3" playOrder="4">
      <navLabel><text>Missing</text></navLabel>
      <content src="text/appendix.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

const testChapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Ignored</title><style>p { color: red; }</style></head>
<body>
  <h1>Chapter One</h1>
  <p>It was a <em>bright</em>
     cold day.</p>
  <script>alert("no")</script>
  <p>The clocks were striking.</p>
</body>
</html>`

const testChapter2 = `<html><body><h1>Chapter Two</h1><div>Second<br/>part.</div></body></html>`

func writeEPUB(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("application/epub+zip"))
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return path
}

func TestEPUBParser(t *testing.T) {
	parser := NewEPUBParser(nil)
	ctx := context.Background()

	t.Run("Spine and NCX", func(t *testing.T) {
		path := writeEPUB(t, map[string]string{
			"META-INF/container.xml": testContainer,
			"OEBPS/content.opf":      testOPF,
			"OEBPS/toc.ncx":          testNCX,
			"OEBPS/text/ch1.xhtml":   testChapter1,
			"OEBPS/text/ch2.xhtml":   testChapter2,
		})

		doc, err := parser.Extract(ctx, path)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}

		if len(doc.Pages) != 2 {
			t.Fatalf("Expected 2 pages, got %d", len(doc.Pages))
		}
		wantFirst := "Chapter One\n\nIt was a bright cold day.\n\nThe clocks were striking."
		if doc.Pages[0].Text != wantFirst {
			t.Errorf("Unexpected first page %q", doc.Pages[0].Text)
		}
		if doc.Pages[1].Text != "Chapter Two\n\nSecond\n\npart." {
			t.Errorf("Unexpected second page %q", doc.Pages[1].Text)
		}
		if !strings.HasPrefix(doc.Text[doc.Pages[1].CharOffset:], "Chapter Two") {
			t.Errorf("Second page offset %d is wrong", doc.Pages[1].CharOffset)
		}
		if strings.Contains(doc.Text, "alert") || strings.Contains(doc.Text, "Ignored") {
			t.Error("Script and head content should be skipped")
		}

		wantTOC := []types.TOCEntry{
			{Level: 1, Title: "Chapter One", PageNum: 1},
			{Level: 2, Title: "A Section", PageNum: 1},
			{Level: 1, Title: "Chapter Two", PageNum: 2},
		}
		if !reflect.DeepEqual(doc.TOC, wantTOC) {
			t.Errorf("Expected TOC %+v, got %+v", wantTOC, doc.TOC)
		}

		if doc.Metadata["title"] != "The Test Book" || doc.Metadata["author"] != "Jane Writer" {
			t.Errorf("Unexpected metadata %v", doc.Metadata)
		}
		if doc.Metadata["format"] != "epub" || doc.Metadata["page_count"] != "2" {
			t.Errorf("Unexpected metadata %v", doc.Metadata)
		}
	})

	t.Run("No NCX", func(t *testing.T) {
		opf := strings.Replace(testOPF, `<item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>`, "", 1)
		path := writeEPUB(t, map[string]string{
			"META-INF/container.xml": testContainer,
			"OEBPS/content.opf":      opf,
			"OEBPS/text/ch1.xhtml":   testChapter1,
			"OEBPS/text/ch2.xhtml":   testChapter2,
		})

		doc, err := parser.Extract(ctx, path)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if doc.TOC != nil {
			t.Errorf("Expected nil TOC, got %+v", doc.TOC)
		}
	})

	t.Run("Not a zip", func(t *testing.T) {
		path := writeTemp(t, "broken.epub", []byte("definitely not a zip"))
		_, err := parser.Extract(ctx, path)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Inline markup", "<p>one <b>two</b> <i>three</i></p>", "one two three"},
		{"Lists", "<ul><li>a</li><li>b</li></ul>", "a\n\nb"},
		{"Whitespace", "<p>  spaced\n\t out  </p>", "spaced out"},
		{"Entities", "<p>Tom &amp; Jerry&#8217;s</p>", "Tom & Jerry\u2019s"},
		{"Empty", "<html><body></body></html>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlToText(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
