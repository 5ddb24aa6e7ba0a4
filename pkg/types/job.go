package types

import "time"

// Job statuses
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

// Job represents a queued or running document conversion
type Job struct {
	ID              string      `json:"id"`
	Status          string      `json:"status"`
	InputFilename   string      `json:"input_filename"`
	InputKey        string      `json:"input_key"`
	OutputKey       string      `json:"output_key,omitempty"`
	Voice           string      `json:"voice"`
	Speed           float64     `json:"speed"`
	OutputFormat    string      `json:"output_format"` // "wav", "mp3" or "m4b"
	Chapters        []int       `json:"chapters,omitempty"`
	Progress        JobProgress `json:"progress"`
	CreatedAt       time.Time   `json:"created_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	ChaptersCount   int         `json:"chapters_count,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// JobProgress is the last progress update recorded for a job
type JobProgress struct {
	Stage        string    `json:"stage,omitempty"`
	Percent      float64   `json:"percent"`
	Message      string    `json:"message,omitempty"`
	Chapter      string    `json:"chapter,omitempty"`
	CurrentChunk int       `json:"current_chunk"`
	TotalChunks  int       `json:"total_chunks"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the job can no longer change state
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Voice represents a TTS voice with metadata
type Voice struct {
	ID          string   `json:"id"`          // Provider-specific voice ID
	Name        string   `json:"name"`        // Human-readable name
	Languages   []string `json:"languages"`   // Supported language codes (ISO-639-1)
	Gender      string   `json:"gender"`      // "male", "female", or empty
	Accent      string   `json:"accent"`      // Regional accent (e.g., "british", "american")
	Description string   `json:"description"` // Additional description
}
