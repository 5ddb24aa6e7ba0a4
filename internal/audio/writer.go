package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/unalkalkan/narrator/pkg/types"
)

const (
	bitDepth       = 16
	pcmFormat      = 1
	silenceBlock   = 4096
	maxSampleValue = 32767
)

// Writer streams mono samples into an output file and records chapter
// markers at the current position. A Writer must be finished with Close
// or discarded with Abort; calling Abort after Close is a no-op.
type Writer struct {
	path       string
	format     Format
	sampleRate int
	wavPath    string
	tempDir    string
	ffmpeg     string
	logger     *slog.Logger

	file     *os.File
	enc      *wav.Encoder
	buf      *goaudio.IntBuffer
	samples  int64
	chapters []types.ChapterMarker
	done     bool
}

// Option configures a Writer
type Option func(*Writer)

// WithFormat overrides the format implied by the file extension
func WithFormat(f Format) Option {
	return func(w *Writer) {
		w.format = f
	}
}

// WithFFmpeg sets the ffmpeg binary
func WithFFmpeg(bin string) Option {
	return func(w *Writer) {
		w.ffmpeg = bin
	}
}

// WithTempDir sets where the intermediate WAV and metadata go. It
// defaults to the output directory.
func WithTempDir(dir string) Option {
	return func(w *Writer) {
		w.tempDir = dir
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// Create opens path for writing at the given sample rate
func Create(path string, sampleRate int, opts ...Option) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d: %w", sampleRate, types.ErrInvalidInput)
	}

	w := &Writer{
		path:       path,
		sampleRate: sampleRate,
		tempDir:    filepath.Dir(path),
		ffmpeg:     DefaultFFmpeg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "audio", "output", path)

	if w.format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		w.format = f
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if w.format.NeedsTranscode() {
		w.file, err = os.CreateTemp(w.tempDir, ".narrator-*.wav")
	} else {
		w.file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	w.wavPath = w.file.Name()

	w.enc = wav.NewEncoder(w.file, sampleRate, bitDepth, 1, pcmFormat)
	w.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	return w, nil
}

// Path returns the final output path
func (w *Writer) Path() string {
	return w.path
}

// Format returns the output format
func (w *Writer) Format() Format {
	return w.format
}

// SampleRate returns the sample rate
func (w *Writer) SampleRate() int {
	return w.sampleRate
}

// Write appends samples, clipping them to [-1, 1]
func (w *Writer) Write(samples []float32) error {
	if w.done {
		return errors.New("audio writer is closed")
	}
	if len(samples) == 0 {
		return nil
	}

	data := w.buf.Data[:0]
	for _, s := range samples {
		v := float64(s)
		if math.IsNaN(v) {
			v = 0
		}
		v = max(-1, min(v, 1))
		data = append(data, int(math.Round(v*maxSampleValue)))
	}
	w.buf.Data = data

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	w.samples += int64(len(samples))
	return nil
}

// WriteSilence appends the given number of seconds of silence
func (w *Writer) WriteSilence(seconds float64) error {
	n := int(seconds * float64(w.sampleRate))
	if n <= 0 {
		return nil
	}
	block := make([]float32, min(n, silenceBlock))
	for n > 0 {
		k := min(n, len(block))
		if err := w.Write(block[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

// AddChapter records a chapter starting at the current position
func (w *Writer) AddChapter(title string) types.ChapterMarker {
	m := types.ChapterMarker{Title: title, StartTime: w.CurrentTime()}
	w.chapters = append(w.chapters, m)
	return m
}

// Chapters returns the markers recorded so far
func (w *Writer) Chapters() []types.ChapterMarker {
	out := make([]types.ChapterMarker, len(w.chapters))
	copy(out, w.chapters)
	return out
}

// Samples returns the number of samples written
func (w *Writer) Samples() int64 {
	return w.samples
}

// CurrentTime returns the write position in seconds
func (w *Writer) CurrentTime() float64 {
	return float64(w.samples) / float64(w.sampleRate)
}

// Duration returns the total written duration in seconds
func (w *Writer) Duration() float64 {
	return w.CurrentTime()
}

// Close patches the WAV header and, for compressed formats, runs ffmpeg.
// On failure the partial output is removed.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	err := w.closeFile()
	if err == nil && w.format.NeedsTranscode() {
		err = w.transcode()
	}
	if w.format.NeedsTranscode() {
		os.Remove(w.wavPath)
	}
	if err != nil {
		os.Remove(w.path)
		return err
	}

	w.logger.Info("audio written",
		"format", w.format,
		"duration", types.ConversionResult{DurationSeconds: w.Duration()}.FormattedDuration(),
		"chapters", len(w.chapters),
	)
	return nil
}

// Abort discards everything written so far
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.file.Close()
	os.Remove(w.wavPath)
	if w.wavPath != w.path {
		os.Remove(w.path)
	}
	w.logger.Debug("audio output discarded")
}

func (w *Writer) closeFile() error {
	if w.samples == 0 {
		// the encoder only emits its header on the first write
		w.buf.Data = w.buf.Data[:0]
		if err := w.enc.Write(w.buf); err != nil {
			w.file.Close()
			return fmt.Errorf("failed to write WAV header: %w", err)
		}
	}
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalize WAV: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close audio file: %w", fileErr)
	}
	return nil
}
