// Package checkpoint persists per-chunk synthesis progress so a long
// conversion can resume after an interruption.
//
// A checkpoint directory holds state.json and a chunks/ directory of raw
// float32 audio, one file per chunk index. A chunk's audio is always
// written before its index is recorded in the state, so every recorded
// index has an artifact unless it was removed externally; Verify repairs
// that case.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unalkalkan/narrator/pkg/types"
)

const (
	stateFileName = "state.json"
	chunksDirName = "chunks"
)

// DirFor returns the checkpoint directory used for an output file:
// /books/novel.m4b maps to /books/.novel.checkpoint
func DirFor(outputPath string) string {
	base := filepath.Base(outputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(outputPath), "."+stem+".checkpoint")
}

// Manager reads and writes one checkpoint directory. It assumes a single
// writer; use Lock to enforce that across processes.
type Manager struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source for timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new checkpoint manager for dir
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:    dir,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "checkpoint", "dir", dir)
	return m
}

// Dir returns the checkpoint directory
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) statePath() string {
	return filepath.Join(m.dir, stateFileName)
}

func (m *Manager) chunksDir() string {
	return filepath.Join(m.dir, chunksDirName)
}

// ChunkPath returns the artifact path for chunk idx
func (m *Manager) ChunkPath(idx int) string {
	return filepath.Join(m.chunksDir(), fmt.Sprintf("%06d.pcm", idx))
}

// Exists reports whether a state file is present
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.statePath())
	return err == nil && info.Mode().IsRegular()
}

// LoadState reads the state file. A missing file wraps types.ErrNotFound;
// an unparseable, invalid or wrong-version file wraps types.ErrInvalidInput.
func (m *Manager) LoadState() (*State, error) {
	data, err := os.ReadFile(m.statePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no checkpoint found at %s: %w", m.dir, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read checkpoint state: %w", err)
	}
	return decodeState(data)
}

// SaveState writes state atomically and refreshes its UpdatedAt
func (m *Manager) SaveState(state *State) error {
	if err := os.MkdirAll(m.chunksDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	state.normalize()
	state.UpdatedAt = m.now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint state: %w", err)
	}
	if err := writeFileAtomic(m.dir, m.statePath(), data); err != nil {
		return fmt.Errorf("failed to save checkpoint state: %w", err)
	}
	return nil
}

// CreateState builds a fresh state for a conversion plan. It is not
// persisted until SaveState.
func (m *Manager) CreateState(inputPath, outputPath string, settings Settings, totalChunks int, chapters []types.Chapter, sampleRate int) (*State, error) {
	inputHash, err := HashFile(inputPath)
	if err != nil {
		return nil, err
	}
	settingsHash, err := HashSettings(settings)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	state := &State{
		Version:         Version,
		InputHash:       inputHash,
		InputPath:       inputPath,
		OutputPath:      outputPath,
		SettingsHash:    settingsHash,
		TotalChunks:     totalChunks,
		CompletedChunks: []int{},
		Chapters:        append([]types.Chapter{}, chapters...),
		SampleRate:      sampleRate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return state, nil
}

// SaveChunk writes the audio for chunk idx atomically
func (m *Manager) SaveChunk(idx int, samples []float32) error {
	dir := m.chunksDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chunk directory: %w", err)
	}
	if err := writeFileAtomic(dir, m.ChunkPath(idx), EncodeSamples(samples)); err != nil {
		return fmt.Errorf("failed to save chunk %d: %w", idx, err)
	}
	return nil
}

// LoadChunk reads the audio for chunk idx. Missing and corrupt artifacts
// both report false.
func (m *Manager) LoadChunk(idx int) ([]float32, bool) {
	data, err := os.ReadFile(m.ChunkPath(idx))
	if err != nil {
		return nil, false
	}
	samples, err := DecodeSamples(data)
	if err != nil {
		m.logger.Warn("corrupt chunk artifact", "chunk", idx, "error", err)
		return nil, false
	}
	return samples, true
}

// MarkCompleted persists the chunk audio, then records idx in state
func (m *Manager) MarkCompleted(state *State, idx int, samples []float32) error {
	if err := m.SaveChunk(idx, samples); err != nil {
		return err
	}
	state.addCompleted(idx)
	return m.SaveState(state)
}

// Verify checks that the checkpoint still matches the input file and
// settings. Completed chunks that are duplicated, out of range or whose
// artifacts are gone are dropped and the state is rewritten; that is
// reported as a valid, recovered checkpoint.
func (m *Manager) Verify(inputPath string, settings Settings) (bool, string) {
	if !m.Exists() {
		return false, "No checkpoint exists"
	}

	state, err := m.LoadState()
	if err != nil {
		return false, err.Error()
	}

	inputHash, err := HashFile(inputPath)
	if err != nil || inputHash != state.InputHash {
		return false, "Input file has changed since checkpoint was created"
	}

	settingsHash, err := HashSettings(settings)
	if err != nil || settingsHash != state.SettingsHash {
		return false, "Conversion settings have changed"
	}

	dropped := state.duplicates + state.inRange()
	kept := make([]int, 0, len(state.CompletedChunks))
	for _, idx := range state.CompletedChunks {
		if _, ok := m.LoadChunk(idx); ok {
			kept = append(kept, idx)
		} else {
			dropped++
		}
	}

	if dropped > 0 {
		state.CompletedChunks = kept
		if err := m.SaveState(state); err != nil {
			return false, err.Error()
		}
		m.logger.Info("checkpoint recovered", "dropped_chunks", dropped, "completed", len(kept))
		return true, fmt.Sprintf("Recovered from %d missing chunk(s)", dropped)
	}
	return true, "Checkpoint is valid"
}

// Cleanup removes the checkpoint directory. Removing an absent directory
// is not an error.
func (m *Manager) Cleanup() error {
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

// Discard removes the state and chunk artifacts but keeps the directory,
// so a lock taken with Lock stays held
func (m *Manager) Discard() error {
	if err := os.RemoveAll(m.chunksDir()); err != nil {
		return fmt.Errorf("failed to remove chunk artifacts: %w", err)
	}
	if err := os.Remove(m.statePath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint state: %w", err)
	}
	return nil
}

// Progress returns completed and total chunk counts, or zeros when there
// is no readable checkpoint
func (m *Manager) Progress() (completed, total int) {
	state, err := m.LoadState()
	if err != nil {
		return 0, 0
	}
	state.inRange()
	return len(state.CompletedChunks), state.TotalChunks
}

// writeFileAtomic writes data to a temp file in dir, syncs it and renames
// it over path. Readers see either the old or the new content.
func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
