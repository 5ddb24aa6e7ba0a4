// Package progress carries conversion progress from the pipeline to
// whoever is watching: the CLI, the job tracker or a message bus.
//
// An Update is a tagged variant. Its Stage selects which payload type, if
// any, is attached.
package progress

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage is a pipeline phase
type Stage string

// Pipeline stages in execution order
const (
	StageExtracting    Stage = "extracting"
	StagePreprocessing Stage = "preprocessing"
	StageChunking      Stage = "chunking"
	StageSynthesizing  Stage = "synthesizing"
	StageFinalizing    Stage = "finalizing"
)

// Valid reports whether s is a known stage
func (s Stage) Valid() bool {
	switch s {
	case StageExtracting, StagePreprocessing, StageChunking, StageSynthesizing, StageFinalizing:
		return true
	}
	return false
}

// Payload is implemented by the stage-specific detail types
type Payload interface {
	stage() Stage
}

// ExtractionInfo describes the extracted document
type ExtractionInfo struct {
	Pages      int `json:"pages"`
	TOCEntries int `json:"toc_entries"`
}

// PreprocessingInfo describes the normalized text
type PreprocessingInfo struct {
	Language string `json:"language"`
	Chapters int    `json:"chapters"`
	Chars    int    `json:"chars"`
}

// ChunkingInfo describes the chunk plan
type ChunkingInfo struct {
	Chunks  int `json:"chunks"`
	Resumed int `json:"resumed"`
}

// SynthesisInfo tracks the chunk loop
type SynthesisInfo struct {
	ChunksCompleted int    `json:"chunks_completed"`
	ChunksTotal     int    `json:"chunks_total"`
	Chapter         string `json:"chapter,omitempty"`
}

// FinalizingInfo describes the output being written
type FinalizingInfo struct {
	OutputPath string  `json:"output_path"`
	Format     string  `json:"format"`
	Duration   float64 `json:"duration_seconds,omitempty"`
}

func (ExtractionInfo) stage() Stage    { return StageExtracting }
func (PreprocessingInfo) stage() Stage { return StagePreprocessing }
func (ChunkingInfo) stage() Stage      { return StageChunking }
func (SynthesisInfo) stage() Stage     { return StageSynthesizing }
func (FinalizingInfo) stage() Stage    { return StageFinalizing }

// Update is one progress report
type Update struct {
	Stage   Stage
	Percent float64 // 0-100 within the stage
	Message string
	Payload Payload // nil or the type matching Stage
	Time    time.Time
}

// New builds an update whose stage is taken from payload
func New(payload Payload, percent float64, message string) Update {
	return Update{
		Stage:   payload.stage(),
		Percent: clampPercent(percent),
		Message: message,
		Payload: payload,
		Time:    time.Now().UTC(),
	}
}

// Message builds an update that carries only a message
func Message(stage Stage, percent float64, message string) Update {
	return Update{
		Stage:   stage,
		Percent: clampPercent(percent),
		Message: message,
		Time:    time.Now().UTC(),
	}
}

// Synthesis returns the synthesis payload, if present
func (u Update) Synthesis() (SynthesisInfo, bool) {
	info, ok := u.Payload.(SynthesisInfo)
	return info, ok
}

// String renders the update for terminals and logs
func (u Update) String() string {
	if info, ok := u.Synthesis(); ok {
		s := fmt.Sprintf("[%s %5.1f%%] chunk %d/%d", u.Stage, u.Percent, info.ChunksCompleted, info.ChunksTotal)
		if info.Chapter != "" {
			s += " (" + info.Chapter + ")"
		}
		if u.Message != "" {
			s += ": " + u.Message
		}
		return s
	}
	return fmt.Sprintf("[%s %5.1f%%] %s", u.Stage, u.Percent, u.Message)
}

type wireUpdate struct {
	Stage   Stage           `json:"stage"`
	Percent float64         `json:"percent"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

// MarshalJSON encodes the update with its payload nested under "payload"
func (u Update) MarshalJSON() ([]byte, error) {
	w := wireUpdate{Stage: u.Stage, Percent: u.Percent, Message: u.Message, Time: u.Time}
	if u.Payload != nil {
		raw, err := json.Marshal(u.Payload)
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the payload into the type its stage calls for
func (u *Update) UnmarshalJSON(data []byte) error {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Stage.Valid() {
		return fmt.Errorf("unknown progress stage %q", w.Stage)
	}

	*u = Update{Stage: w.Stage, Percent: w.Percent, Message: w.Message, Time: w.Time}
	if len(w.Payload) == 0 || string(w.Payload) == "null" {
		return nil
	}

	var err error
	switch w.Stage {
	case StageExtracting:
		var p ExtractionInfo
		err = json.Unmarshal(w.Payload, &p)
		u.Payload = p
	case StagePreprocessing:
		var p PreprocessingInfo
		err = json.Unmarshal(w.Payload, &p)
		u.Payload = p
	case StageChunking:
		var p ChunkingInfo
		err = json.Unmarshal(w.Payload, &p)
		u.Payload = p
	case StageSynthesizing:
		var p SynthesisInfo
		err = json.Unmarshal(w.Payload, &p)
		u.Payload = p
	case StageFinalizing:
		var p FinalizingInfo
		err = json.Unmarshal(w.Payload, &p)
		u.Payload = p
	}
	return err
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
