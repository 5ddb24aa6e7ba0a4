package checkpoint

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/unalkalkan/narrator/pkg/types"
)

// Version is the state file schema version. Other versions are rejected.
const Version = 1

// Settings are the conversion parameters a checkpoint is bound to. Any
// change to them invalidates resume.
type Settings map[string]any

// State is the persisted progress of one conversion
type State struct {
	Version         int             `json:"version"`
	InputHash       string          `json:"input_hash"`
	InputPath       string          `json:"input_path"`
	OutputPath      string          `json:"output_path"`
	SettingsHash    string          `json:"settings_hash"`
	TotalChunks     int             `json:"total_chunks"`
	CompletedChunks []int           `json:"completed_chunks"`
	Chapters        []types.Chapter `json:"chapters"`
	SampleRate      int             `json:"sample_rate"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// duplicates counts repeated completed indices dropped while loading
	duplicates int
}

// IsCompleted reports whether chunk idx is recorded as done
func (s *State) IsCompleted(idx int) bool {
	i := sort.SearchInts(s.CompletedChunks, idx)
	return i < len(s.CompletedChunks) && s.CompletedChunks[i] == idx
}

// addCompleted records idx, keeping the list sorted and unique
func (s *State) addCompleted(idx int) {
	i := sort.SearchInts(s.CompletedChunks, idx)
	if i < len(s.CompletedChunks) && s.CompletedChunks[i] == idx {
		return
	}
	s.CompletedChunks = append(s.CompletedChunks, 0)
	copy(s.CompletedChunks[i+1:], s.CompletedChunks[i:])
	s.CompletedChunks[i] = idx
}

// normalize sorts and dedupes the completed list and returns how many
// repeated indices it dropped
func (s *State) normalize() int {
	if s.CompletedChunks == nil {
		s.CompletedChunks = []int{}
	}
	if s.Chapters == nil {
		s.Chapters = []types.Chapter{}
	}
	sort.Ints(s.CompletedChunks)

	unique := s.CompletedChunks[:0]
	for _, idx := range s.CompletedChunks {
		if n := len(unique); n > 0 && unique[n-1] == idx {
			continue
		}
		unique = append(unique, idx)
	}
	dropped := len(s.CompletedChunks) - len(unique)
	s.CompletedChunks = unique
	return dropped
}

// inRange keeps only completed indices within [0, TotalChunks) and returns
// how many it dropped
func (s *State) inRange() int {
	kept := s.CompletedChunks[:0]
	for _, idx := range s.CompletedChunks {
		if idx >= 0 && idx < s.TotalChunks {
			kept = append(kept, idx)
		}
	}
	dropped := len(s.CompletedChunks) - len(kept)
	s.CompletedChunks = kept
	return dropped
}

// HashFile returns the hex SHA-256 of the file at path
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashSettings returns the first 16 hex digits of the SHA-256 of the
// settings encoded as JSON with sorted keys
func HashSettings(settings Settings) (string, error) {
	if settings == nil {
		settings = Settings{}
	}
	data, err := json.Marshal(map[string]any(settings))
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16], nil
}

//go:embed state.schema.json
var stateSchemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func stateSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("state.schema.json", bytes.NewReader(stateSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to load checkpoint schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("state.schema.json")
	})
	return compiledSchema, schemaErr
}

// decodeState parses and validates raw state file content
func decodeState(data []byte) (*State, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupted checkpoint state file: %v: %w", err, types.ErrInvalidInput)
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("corrupted checkpoint state file: expected object: %w", types.ErrInvalidInput)
	}
	if v, _ := fields["version"].(float64); v != Version {
		return nil, fmt.Errorf("unsupported checkpoint version: %v (expected %d): %w",
			fields["version"], Version, types.ErrInvalidInput)
	}

	schema, err := stateSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("corrupted checkpoint state file: %v: %w", err, types.ErrInvalidInput)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupted checkpoint state file: %v: %w", err, types.ErrInvalidInput)
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = state.CreatedAt
	}
	state.duplicates = state.normalize()
	return &state, nil
}
