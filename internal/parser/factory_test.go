package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unalkalkan/narrator/pkg/types"
)

func TestFactory(t *testing.T) {
	factory := NewFactory(nil)

	for _, format := range []string{"txt", "pdf", "epub"} {
		t.Run("Get "+format+" parser", func(t *testing.T) {
			p, err := factory.Get(format)
			if err != nil {
				t.Fatalf("Failed to get %s parser: %v", format, err)
			}
			if p == nil {
				t.Fatal("Got nil parser")
			}
		})
	}

	t.Run("Case insensitive", func(t *testing.T) {
		p1, err1 := factory.Get("TXT")
		p2, err2 := factory.Get(".txt")
		if err1 != nil || err2 != nil {
			t.Fatal("Factory should be case insensitive and accept a leading dot")
		}
		if p1 != p2 {
			t.Error("Expected the same parser instance")
		}
	})

	t.Run("Unsupported format", func(t *testing.T) {
		_, err := factory.Get("docx")
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ForPath", func(t *testing.T) {
		p, err := factory.ForPath("/books/Novel.PDF")
		if err != nil {
			t.Fatalf("ForPath failed: %v", err)
		}
		if _, ok := p.(*PDFParser); !ok {
			t.Errorf("Expected *PDFParser, got %T", p)
		}
	})

	t.Run("Formats", func(t *testing.T) {
		want := []string{"epub", "pdf", "txt"}
		if got := factory.Formats(); !reflect.DeepEqual(got, want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})
}

func TestFactoryExtract(t *testing.T) {
	factory := NewFactory(nil)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("Missing file", func(t *testing.T) {
		_, err := factory.Extract(ctx, filepath.Join(dir, "missing.txt"))
		if !errors.Is(err, types.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Directory", func(t *testing.T) {
		sub := filepath.Join(dir, "folder.txt")
		if err := os.Mkdir(sub, 0755); err != nil {
			t.Fatal(err)
		}
		_, err := factory.Extract(ctx, sub)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "notes.docx")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := factory.Extract(ctx, path)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Dispatches to TXT", func(t *testing.T) {
		path := filepath.Join(dir, "story.txt")
		if err := os.WriteFile(path, []byte("Once upon a time."), 0644); err != nil {
			t.Fatal(err)
		}
		doc, err := factory.Extract(ctx, path)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if doc.Text != "Once upon a time." {
			t.Errorf("Unexpected text %q", doc.Text)
		}
	})
}
