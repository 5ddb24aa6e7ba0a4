package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/unalkalkan/narrator/pkg/types"
)

func TestLocalAdapter(t *testing.T) {
	tmpDir := t.TempDir()
	adapter, err := NewLocalAdapter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create local adapter: %v", err)
	}
	defer adapter.Close()

	ctx := context.Background()
	testPath := "jobs/abc/output/book.mp3"
	testData := []byte("ID3 fake audio")

	t.Run("Put", func(t *testing.T) {
		if err := adapter.Put(ctx, testPath, bytes.NewReader(testData)); err != nil {
			t.Fatalf("Failed to put data: %v", err)
		}
		if _, err := os.Stat(filepath.Join(tmpDir, "jobs", "abc", "output", "book.mp3")); err != nil {
			t.Errorf("Expected file on disk: %v", err)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := adapter.Exists(ctx, testPath)
		if err != nil {
			t.Fatalf("Failed to check existence: %v", err)
		}
		if !exists {
			t.Error("File should exist after Put")
		}

		exists, err = adapter.Exists(ctx, "jobs/abc")
		if err != nil {
			t.Fatalf("Failed to check existence: %v", err)
		}
		if exists {
			t.Error("A directory should not count as an object")
		}
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := adapter.Get(ctx, testPath)
		if err != nil {
			t.Fatalf("Failed to get data: %v", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("Failed to read data: %v", err)
		}
		if !bytes.Equal(data, testData) {
			t.Errorf("Expected %s, got %s", testData, data)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := adapter.Put(ctx, testPath, bytes.NewReader([]byte("v2"))); err != nil {
			t.Fatalf("Failed to put data: %v", err)
		}
		reader, err := adapter.Get(ctx, testPath)
		if err != nil {
			t.Fatalf("Failed to get data: %v", err)
		}
		defer reader.Close()
		data, _ := io.ReadAll(reader)
		if string(data) != "v2" {
			t.Errorf("Expected v2, got %s", data)
		}
	})

	t.Run("List", func(t *testing.T) {
		if err := adapter.Put(ctx, "jobs/abc/job.json", bytes.NewReader([]byte("{}"))); err != nil {
			t.Fatalf("Failed to put data: %v", err)
		}
		if err := adapter.Put(ctx, "jobs/xyz/job.json", bytes.NewReader([]byte("{}"))); err != nil {
			t.Fatalf("Failed to put data: %v", err)
		}

		paths, err := adapter.List(ctx, "jobs/abc/")
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		want := []string{"jobs/abc/job.json", "jobs/abc/output/book.mp3"}
		if !reflect.DeepEqual(paths, want) {
			t.Errorf("Expected %v, got %v", want, paths)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := adapter.Delete(ctx, testPath); err != nil {
			t.Fatalf("Failed to delete data: %v", err)
		}

		exists, err := adapter.Exists(ctx, testPath)
		if err != nil {
			t.Fatalf("Failed to check existence: %v", err)
		}
		if exists {
			t.Error("File should not exist after Delete")
		}
		if _, err := os.Stat(filepath.Join(tmpDir, "jobs", "abc", "output")); !os.IsNotExist(err) {
			t.Error("Empty parent directory should be removed")
		}

		if err := adapter.Delete(ctx, testPath); err != nil {
			t.Errorf("Deleting twice should succeed, got %v", err)
		}
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		_, err := adapter.Get(ctx, "non-existent.txt")
		if !errors.Is(err, types.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RejectsEscapingKeys", func(t *testing.T) {
		for _, key := range []string{"../outside.txt", "jobs/../../etc/passwd", ""} {
			err := adapter.Put(ctx, key, bytes.NewReader(testData))
			if !errors.Is(err, types.ErrInvalidInput) {
				t.Errorf("Put(%q): expected ErrInvalidInput, got %v", key, err)
			}
		}
	})
}

func TestLocalAdapterCancelledPut(t *testing.T) {
	adapter, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create local adapter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := adapter.Put(ctx, "a.txt", bytes.NewReader([]byte("data"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	paths, err := adapter.List(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("Cancelled Put should leave nothing behind, got %v", paths)
	}
}

func TestLocalAdapterConcurrency(t *testing.T) {
	adapter, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create local adapter: %v", err)
	}
	defer adapter.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			path := fmt.Sprintf("test/file%d.txt", idx)
			if err := adapter.Put(ctx, path, bytes.NewReader([]byte("test data"))); err != nil {
				t.Errorf("Failed to put data: %v", err)
			}
		}(i)
	}
	wg.Wait()

	paths, err := adapter.List(ctx, "test/")
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(paths) != 10 {
		t.Errorf("Expected 10 files, got %d", len(paths))
	}
}

func TestFileHelpers(t *testing.T) {
	adapter, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create local adapter: %v", err)
	}
	ctx := context.Background()
	work := t.TempDir()

	src := filepath.Join(work, "in.txt")
	if err := os.WriteFile(src, []byte("chapter one"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := PutFile(ctx, adapter, "jobs/1/input/in.txt", src); err != nil {
		t.Fatalf("PutFile: %v", err)
	}

	dst := filepath.Join(work, "nested", "out.txt")
	if err := GetFile(ctx, adapter, "jobs/1/input/in.txt", dst); err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "chapter one" {
		t.Errorf("Expected round trip, got %q", data)
	}

	if err := GetFile(ctx, adapter, "jobs/1/input/missing.txt", dst); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := adapter.Put(ctx, "jobs/1/job.json", bytes.NewReader([]byte("{}"))); err != nil {
		t.Fatal(err)
	}
	if err := adapter.Put(ctx, "jobs/2/job.json", bytes.NewReader([]byte("{}"))); err != nil {
		t.Fatal(err)
	}
	if err := DeletePrefix(ctx, adapter, "jobs/1/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	paths, err := adapter.List(ctx, "jobs/")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(paths, []string{"jobs/2/job.json"}) {
		t.Errorf("Expected only job 2 to remain, got %v", paths)
	}
}
