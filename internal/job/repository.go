// Package job runs conversions in the background for the HTTP server.
// Jobs are stored as JSON next to their input and output files on a
// storage adapter, so any replica sharing the bucket sees the same state.
package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/unalkalkan/narrator/internal/storage"
	"github.com/unalkalkan/narrator/pkg/types"
)

const jobsPrefix = "jobs/"

// Repository handles job persistence
type Repository interface {
	// Save stores job metadata, replacing any previous version
	Save(ctx context.Context, job *types.Job) error

	// Get retrieves a job by ID
	Get(ctx context.Context, id string) (*types.Job, error)

	// List returns all jobs, newest first
	List(ctx context.Context) ([]*types.Job, error)

	// Delete removes a job with its input and output files
	Delete(ctx context.Context, id string) error

	// SaveInput stores the uploaded document and returns its key
	SaveInput(ctx context.Context, id, filename string, data io.Reader) (string, error)
}

// StorageRepository implements Repository using a storage adapter
type StorageRepository struct {
	storage storage.Adapter
}

// NewRepository creates a new job repository
func NewRepository(storageAdapter storage.Adapter) *StorageRepository {
	return &StorageRepository{
		storage: storageAdapter,
	}
}

func metadataKey(id string) string {
	return path.Join("jobs", id, "job.json")
}

// InputKey is where the uploaded document of a job is stored
func InputKey(id, filename string) string {
	return path.Join("jobs", id, "input", filename)
}

// OutputKey is where the finished audiobook of a job is stored
func OutputKey(id, filename string) string {
	return path.Join("jobs", id, "output", filename)
}

// SafeFilename strips any directory part from an uploaded file name
func SafeFilename(name string) (string, error) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("invalid file name: %w", types.ErrInvalidInput)
	}
	return name, nil
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return fmt.Errorf("invalid job id %q: %w", id, types.ErrInvalidInput)
	}
	return nil
}

// Save stores job metadata
func (r *StorageRepository) Save(ctx context.Context, job *types.Job) error {
	if err := validID(job.ID); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return r.storage.Put(ctx, metadataKey(job.ID), bytes.NewReader(data))
}

// Get retrieves job metadata by ID
func (r *StorageRepository) Get(ctx context.Context, id string) (*types.Job, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	reader, err := r.storage.Get(ctx, metadataKey(id))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	defer reader.Close()

	var job types.Job
	if err := json.NewDecoder(reader).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}

	return &job, nil
}

// List returns all jobs. Unreadable entries are skipped.
func (r *StorageRepository) List(ctx context.Context) ([]*types.Job, error) {
	paths, err := r.storage.List(ctx, jobsPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*types.Job, 0)
	for _, p := range paths {
		// Only jobs/<id>/job.json
		parts := strings.Split(p, "/")
		if len(parts) != 3 || parts[2] != "job.json" {
			continue
		}

		job, err := r.Get(ctx, parts[1])
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Delete removes everything stored for a job
func (r *StorageRepository) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := storage.DeletePrefix(ctx, r.storage, path.Join("jobs", id)+"/"); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// SaveInput stores the uploaded document
func (r *StorageRepository) SaveInput(ctx context.Context, id, filename string, data io.Reader) (string, error) {
	if err := validID(id); err != nil {
		return "", err
	}
	name, err := SafeFilename(filename)
	if err != nil {
		return "", err
	}
	key := InputKey(id, name)
	if err := r.storage.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to store input: %w", err)
	}
	return key, nil
}
