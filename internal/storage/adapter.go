package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Adapter defines the interface for storage backends. Keys are
// slash-separated and relative to the backend root.
type Adapter interface {
	// Put stores data at the given path
	Put(ctx context.Context, path string, data io.Reader) error

	// Get retrieves data from the given path. A missing key wraps
	// types.ErrNotFound.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// List returns paths matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Close cleans up any resources
	Close() error
}

// PutFile uploads the local file at src to key
func PutFile(ctx context.Context, a Adapter, key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()
	return a.Put(ctx, key, f)
}

// GetFile downloads key into the local file dst, creating its directory
func GetFile(ctx context.Context, a Adapter, key, dst string) error {
	r, err := a.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	return f.Close()
}

// DeletePrefix removes every key under prefix
func DeletePrefix(ctx context.Context, a Adapter, prefix string) error {
	keys, err := a.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := a.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
