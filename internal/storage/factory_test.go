package storage

import (
	"errors"
	"testing"

	"github.com/unalkalkan/narrator/pkg/types"
)

func TestNewAdapter(t *testing.T) {
	t.Run("Local", func(t *testing.T) {
		dir := t.TempDir()
		a, err := NewAdapter(types.StorageConfig{Adapter: "local", Local: types.LocalStorageOpts{BasePath: dir}})
		if err != nil {
			t.Fatalf("NewAdapter: %v", err)
		}
		local, ok := a.(*LocalAdapter)
		if !ok {
			t.Fatalf("Expected *LocalAdapter, got %T", a)
		}
		if local.BasePath() != dir {
			t.Errorf("Expected base path %s, got %s", dir, local.BasePath())
		}
	})

	t.Run("S3RequiresBucket", func(t *testing.T) {
		_, err := NewAdapter(types.StorageConfig{Adapter: "s3", S3: types.S3StorageOpts{Region: "us-east-1"}})
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := NewAdapter(types.StorageConfig{Adapter: "ftp"})
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		endpoint string
		ssl      bool
		want     string
	}{
		{"", true, ""},
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		if got := endpointURL(tt.endpoint, tt.ssl); got != tt.want {
			t.Errorf("endpointURL(%q, %v) = %q, want %q", tt.endpoint, tt.ssl, got, tt.want)
		}
	}
}
