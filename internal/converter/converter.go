// Package converter turns a document into an audiobook. It runs the
// extraction, chapter detection, normalization, chunking and synthesis
// stages in order and streams the audio into a single output file,
// resuming from a checkpoint when one matches the input and settings.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/unalkalkan/narrator/internal/audio"
	"github.com/unalkalkan/narrator/internal/chapter"
	"github.com/unalkalkan/narrator/internal/checkpoint"
	"github.com/unalkalkan/narrator/internal/chunker"
	"github.com/unalkalkan/narrator/internal/parser"
	"github.com/unalkalkan/narrator/internal/progress"
	"github.com/unalkalkan/narrator/internal/pronunciation"
	"github.com/unalkalkan/narrator/internal/provider"
	"github.com/unalkalkan/narrator/internal/text"
	"github.com/unalkalkan/narrator/pkg/types"
)

// Defaults for the pauses inserted between paragraphs and chapters
const (
	DefaultParagraphPause = 0.5
	DefaultChapterPause   = 1.5
)

// Speed bounds accepted by Convert
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Request describes one conversion
type Request struct {
	InputPath  string
	OutputPath string
	Voice      string  // empty uses the configured voice
	Speed      float64 // 0 uses the configured speed
	Chapters   []int   // 1-based chapter positions; empty converts everything
	Force      bool    // discard any existing checkpoint
	Progress   progress.Sink
}

// Converter runs conversions with a fixed configuration and synthesizer.
// Separate Convert calls may run concurrently as long as their outputs
// differ.
type Converter struct {
	cfg         types.ConversionConfig
	synth       provider.Synthesizer
	parsers     *parser.Factory
	detector    *chapter.Detector
	chunker     *chunker.Chunker
	dictionary  *pronunciation.Dictionary
	checkpoints bool
	ffmpeg      string
	tempDir     string
	logger      *slog.Logger
}

// Option configures a Converter
type Option func(*Converter)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckpoints enables or disables resumable conversions
func WithCheckpoints(enabled bool) Option {
	return func(c *Converter) {
		c.checkpoints = enabled
	}
}

// WithFFmpeg sets the ffmpeg binary used for compressed outputs
func WithFFmpeg(bin string) Option {
	return func(c *Converter) {
		if bin != "" {
			c.ffmpeg = bin
		}
	}
}

// WithTempDir sets where intermediate audio is written
func WithTempDir(dir string) Option {
	return func(c *Converter) {
		c.tempDir = dir
	}
}

// WithParsers replaces the document parser factory
func WithParsers(f *parser.Factory) Option {
	return func(c *Converter) {
		if f != nil {
			c.parsers = f
		}
	}
}

// WithDictionary sets the pronunciation dictionary instead of loading it
// from the configured paths
func WithDictionary(d *pronunciation.Dictionary) Option {
	return func(c *Converter) {
		c.dictionary = d
	}
}

// New creates a converter. The pronunciation dictionary named in cfg is
// loaded here so a bad file fails before any work starts.
func New(cfg types.ConversionConfig, synth provider.Synthesizer, opts ...Option) (*Converter, error) {
	if synth == nil {
		return nil, fmt.Errorf("synthesizer is required: %w", types.ErrInvalidInput)
	}
	if cfg.ParagraphPause < 0 || cfg.ChapterPause < 0 {
		return nil, fmt.Errorf("pauses must not be negative: %w", types.ErrInvalidInput)
	}

	c := &Converter{
		cfg:         cfg,
		synth:       synth,
		checkpoints: true,
		ffmpeg:      audio.DefaultFFmpeg,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "converter")

	if c.parsers == nil {
		c.parsers = parser.NewFactory(c.logger)
	}

	detectorOpts := []chapter.Option{
		chapter.WithTOCFirst(!cfg.IgnoreTOC),
		chapter.WithLogger(c.logger),
	}
	if cfg.MinChapterLength > 0 {
		detectorOpts = append(detectorOpts, chapter.WithMinChapterLength(cfg.MinChapterLength))
	}
	c.detector = chapter.NewDetector(detectorOpts...)

	c.chunker = chunker.New(chunker.Config{
		MaxChars:            cfg.MaxChars,
		MinChars:            cfg.MinChars,
		ParagraphPauseChars: cfg.ParagraphPauseChars,
	}, chunker.WithLogger(c.logger))

	if c.dictionary == nil {
		d, err := pronunciation.LoadWithBase(cfg.DictionaryPath, cfg.BaseDictionaryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load pronunciation dictionary: %w", err)
		}
		c.dictionary = d
	}
	if c.dictionary != nil {
		c.logger.Info("pronunciation dictionary loaded", "dictionary", c.dictionary.String())
	}

	if c.cfg.ParagraphPause == 0 {
		c.cfg.ParagraphPause = DefaultParagraphPause
	}
	if c.cfg.ChapterPause == 0 {
		c.cfg.ChapterPause = DefaultChapterPause
	}
	return c, nil
}

// Synthesizer returns the synthesizer conversions run against
func (c *Converter) Synthesizer() provider.Synthesizer {
	return c.synth
}

// plan is the prepared input of the synthesis stage
type plan struct {
	text     string
	chapters []types.Chapter
	chunks   []types.TextChunk
	language string
}

// Convert runs the full pipeline for req. Failures inside a stage are
// returned as *StageError.
func (c *Converter) Convert(ctx context.Context, req Request) (*types.ConversionResult, error) {
	sink := req.Progress
	if sink == nil {
		sink = progress.Discard
	}

	voice, speed, err := c.resolveVoice(req)
	if err != nil {
		return nil, err
	}
	format, err := audio.FormatFromPath(req.OutputPath)
	if err != nil {
		return nil, err
	}
	if format.NeedsTranscode() {
		if err := audio.CheckFFmpeg(c.ffmpeg); err != nil {
			return nil, err
		}
	}

	logger := c.logger.With("input", req.InputPath, "output", req.OutputPath)
	logger.Info("conversion started", "voice", voice, "speed", speed, "format", format)

	p, err := c.prepare(ctx, req, sink)
	if err != nil {
		return nil, err
	}

	var (
		mgr   *checkpoint.Manager
		state *checkpoint.State
	)
	if c.checkpoints {
		mgr = checkpoint.NewManager(checkpoint.DirFor(req.OutputPath), checkpoint.WithLogger(c.logger))
		release, err := mgr.Lock()
		if err != nil {
			return nil, stageErr(progress.StageSynthesizing, err)
		}
		defer func() {
			if err := release(); err != nil {
				logger.Warn("failed to release checkpoint lock", "error", err)
			}
		}()

		state, err = c.openCheckpoint(mgr, req, p, c.settings(voice, speed, req.Chapters), sink)
		if err != nil {
			return nil, stageErr(progress.StageSynthesizing, err)
		}
	}

	result, err := c.synthesize(ctx, req, p, voice, speed, format, mgr, state, sink)
	if err != nil {
		logger.Error("conversion failed", "error", err)
		return nil, err
	}

	if mgr != nil {
		if err := mgr.Cleanup(); err != nil {
			logger.Warn("failed to remove checkpoint", "error", err)
		}
	}

	logger.Info("conversion finished",
		"duration", result.FormattedDuration(),
		"chunks", result.ChunksProcessed,
		"resumed", result.ChunksResumed,
		"chapters", len(result.Chapters))
	return result, nil
}

func (c *Converter) resolveVoice(req Request) (string, float64, error) {
	voice := req.Voice
	if voice == "" {
		voice = c.cfg.Voice
	}
	if voice == "" {
		voice = provider.DefaultVoice
	}

	speed := req.Speed
	if speed == 0 {
		speed = c.cfg.Speed
	}
	if speed == 0 {
		speed = 1.0
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return "", 0, fmt.Errorf("speed %.2f outside %.1f-%.1f: %w", speed, MinSpeed, MaxSpeed, types.ErrInvalidInput)
	}
	return voice, speed, nil
}

// prepare runs extraction, detection, preprocessing and chunking
func (c *Converter) prepare(ctx context.Context, req Request, sink progress.Sink) (*plan, error) {
	label := strings.ToUpper(strings.TrimPrefix(filepath.Ext(req.InputPath), "."))
	sink.Report(progress.Message(progress.StageExtracting, 0, fmt.Sprintf("Extracting text from %s...", label)))

	doc, err := c.parsers.Extract(ctx, req.InputPath)
	if err != nil {
		return nil, stageErr(progress.StageExtracting, err)
	}
	unit := "pages"
	if label == "EPUB" {
		unit = "sections"
	}
	sink.Report(progress.New(progress.ExtractionInfo{Pages: len(doc.Pages), TOCEntries: len(doc.TOC)},
		100, fmt.Sprintf("Extracted %d %s", len(doc.Pages), unit)))

	chapters := c.detector.Detect(doc)
	if len(chapters) > 0 {
		sink.Report(progress.Message(progress.StageExtracting, 100, fmt.Sprintf("Found %d chapters", len(chapters))))
	} else {
		sink.Report(progress.Message(progress.StageExtracting, 100, "No chapters detected"))
	}

	source := doc.Text
	if len(req.Chapters) > 0 {
		source, chapters, err = selectChapters(doc.Text, chapters, req.Chapters)
		if err != nil {
			return nil, stageErr(progress.StageExtracting, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, stageErr(progress.StageExtracting, err)
	}

	sink.Report(progress.Message(progress.StagePreprocessing, 0, "Cleaning text..."))
	pre := text.NewPreprocessor(
		text.WithLanguage(c.cfg.Language),
		text.WithDictionary(c.dictionary),
		text.WithLogger(c.logger),
	)
	normalized, chapters := pre.ProcessChapters(source, chapters)
	lang := pre.DetectedLanguage()
	sink.Report(progress.New(progress.PreprocessingInfo{Language: lang, Chapters: len(chapters), Chars: len(normalized)},
		100, fmt.Sprintf("Detected language: %s", lang)))

	sink.Report(progress.Message(progress.StageChunking, 0, "Splitting into chunks..."))
	chunks := c.chunker.ForLanguage(lang).Chunk(normalized, chapters)
	if len(chunks) == 0 {
		return nil, stageErr(progress.StageChunking, fmt.Errorf("no text to convert in %s: %w", req.InputPath, types.ErrInvalidInput))
	}
	sink.Report(progress.New(progress.ChunkingInfo{Chunks: len(chunks)}, 100, fmt.Sprintf("Created %d chunks", len(chunks))))

	return &plan{
		text:     normalized,
		chapters: chapters,
		chunks:   chunks,
		language: lang,
	}, nil
}

// settings are the parameters a checkpoint is bound to. Anything that
// changes chunking or the synthesized audio belongs here.
func (c *Converter) settings(voice string, speed float64, selection []int) checkpoint.Settings {
	chapters := append([]int{}, selection...)
	return checkpoint.Settings{
		"synthesizer":           c.synth.Name(),
		"sample_rate":           c.synth.SampleRate(),
		"voice":                 voice,
		"speed":                 speed,
		"chapters":              chapters,
		"max_chars":             c.chunker.Config().MaxChars,
		"min_chars":             c.chunker.Config().MinChars,
		"paragraph_pause_chars": c.chunker.Config().ParagraphPauseChars,
		"min_chapter_length":    c.cfg.MinChapterLength,
		"ignore_toc":            c.cfg.IgnoreTOC,
		"language":              c.cfg.Language,
		"dictionary":            c.cfg.DictionaryPath,
		"dictionary_hash":       fileDigest(c.cfg.DictionaryPath),
		"base_dictionary":       c.cfg.BaseDictionaryPath,
		"base_dictionary_hash":  fileDigest(c.cfg.BaseDictionaryPath),
	}
}

// fileDigest hashes a dictionary file so edits to it invalidate resume.
// An unset or unreadable path hashes to "".
func fileDigest(path string) string {
	if path == "" {
		return ""
	}
	sum, err := checkpoint.HashFile(path)
	if err != nil {
		return ""
	}
	return sum
}

// openCheckpoint resumes a matching checkpoint or starts a fresh one
func (c *Converter) openCheckpoint(mgr *checkpoint.Manager, req Request, p *plan, settings checkpoint.Settings, sink progress.Sink) (*checkpoint.State, error) {
	if req.Force {
		if err := mgr.Discard(); err != nil {
			return nil, err
		}
	}

	if mgr.Exists() {
		ok, msg := mgr.Verify(req.InputPath, settings)
		if !ok {
			return nil, fmt.Errorf("cannot resume: %s; restart with force: %w", msg, types.ErrConsistencyViolation)
		}
		state, err := mgr.LoadState()
		if err != nil {
			return nil, err
		}
		if state.TotalChunks != len(p.chunks) || state.SampleRate != c.synth.SampleRate() {
			return nil, fmt.Errorf("cannot resume: checkpoint has %d chunks at %d Hz, plan has %d at %d Hz: %w",
				state.TotalChunks, state.SampleRate, len(p.chunks), c.synth.SampleRate(), types.ErrConsistencyViolation)
		}
		sink.Report(progress.New(progress.ChunkingInfo{Chunks: len(p.chunks), Resumed: len(state.CompletedChunks)},
			100, fmt.Sprintf("%s: resuming with %d of %d chunks done", msg, len(state.CompletedChunks), len(p.chunks))))
		return state, nil
	}

	state, err := mgr.CreateState(req.InputPath, req.OutputPath, settings, len(p.chunks), p.chapters, c.synth.SampleRate())
	if err != nil {
		return nil, err
	}
	if err := mgr.SaveState(state); err != nil {
		return nil, err
	}
	return state, nil
}

// synthesize drives the chunk loop and finalizes the output file
func (c *Converter) synthesize(
	ctx context.Context,
	req Request,
	p *plan,
	voice string,
	speed float64,
	format audio.Format,
	mgr *checkpoint.Manager,
	state *checkpoint.State,
	sink progress.Sink,
) (result *types.ConversionResult, err error) {
	w, err := audio.Create(req.OutputPath, c.synth.SampleRate(),
		audio.WithFormat(format),
		audio.WithFFmpeg(c.ffmpeg),
		audio.WithTempDir(c.tempDir),
		audio.WithLogger(c.logger),
	)
	if err != nil {
		return nil, stageErr(progress.StageSynthesizing, err)
	}
	defer func() {
		if err != nil {
			w.Abort()
		}
	}()

	total := len(p.chunks)
	sink.Report(progress.New(progress.SynthesisInfo{ChunksTotal: total}, 0, "Starting synthesis..."))

	var (
		current *int
		title   string
		resumed int
	)
	for i, chunk := range p.chunks {
		if err := ctx.Err(); err != nil {
			return nil, stageErr(progress.StageSynthesizing, err)
		}

		if chunk.ChapterIdx != nil && *chunk.ChapterIdx < len(p.chapters) &&
			(current == nil || *current != *chunk.ChapterIdx) {
			if current != nil {
				if err := w.WriteSilence(c.cfg.ChapterPause); err != nil {
					return nil, stageErr(progress.StageSynthesizing, err)
				}
			}
			title = p.chapters[*chunk.ChapterIdx].Title
			w.AddChapter(title)
			current = chunk.ChapterIdx
		}

		sink.Report(progress.New(progress.SynthesisInfo{ChunksCompleted: i, ChunksTotal: total, Chapter: title},
			float64(i)/float64(total)*100, fmt.Sprintf("Chunk %d/%d", i+1, total)))

		samples, fromCheckpoint := c.chunkAudio(mgr, state, i)
		if fromCheckpoint {
			resumed++
		} else {
			blocks, err := c.synth.Synthesize(ctx, provider.SynthesisRequest{Text: chunk.Text, Voice: voice, Speed: speed})
			if err != nil {
				return nil, stageErr(progress.StageSynthesizing, fmt.Errorf("chunk %d: %w", i, err))
			}
			samples = provider.Flatten(blocks)
			if state != nil {
				if err := mgr.MarkCompleted(state, i, samples); err != nil {
					return nil, stageErr(progress.StageSynthesizing, err)
				}
			}
		}

		if err := w.Write(samples); err != nil {
			return nil, stageErr(progress.StageSynthesizing, err)
		}
		if chunk.ParagraphBreakAfter {
			if err := w.WriteSilence(c.cfg.ParagraphPause); err != nil {
				return nil, stageErr(progress.StageSynthesizing, err)
			}
		}
	}
	sink.Report(progress.New(progress.SynthesisInfo{ChunksCompleted: total, ChunksTotal: total, Chapter: title},
		100, fmt.Sprintf("Synthesized %d chunks", total)))

	sink.Report(progress.New(progress.FinalizingInfo{OutputPath: req.OutputPath, Format: string(format)},
		0, fmt.Sprintf("Writing %s...", format)))
	if err := w.Close(); err != nil {
		return nil, stageErr(progress.StageFinalizing, err)
	}

	duration := w.Duration()
	sink.Report(progress.New(progress.FinalizingInfo{OutputPath: req.OutputPath, Format: string(format), Duration: duration},
		100, fmt.Sprintf("Complete! Duration: %.1fs", duration)))

	return &types.ConversionResult{
		OutputPath:      req.OutputPath,
		DurationSeconds: duration,
		Chapters:        w.Chapters(),
		ChunksProcessed: total,
		ChunksResumed:   resumed,
		Language:        p.language,
	}, nil
}

// chunkAudio replays a completed chunk from the checkpoint. A missing or
// corrupt artifact reports false so the chunk is synthesized again.
func (c *Converter) chunkAudio(mgr *checkpoint.Manager, state *checkpoint.State, idx int) ([]float32, bool) {
	if state == nil || !state.IsCompleted(idx) {
		return nil, false
	}
	samples, ok := mgr.LoadChunk(idx)
	if !ok {
		c.logger.Warn("checkpoint chunk unreadable, synthesizing again", "chunk", idx)
	}
	return samples, ok
}

// selectChapters keeps the chapters at the given 1-based positions, in
// document order, and joins their text. The returned chapters point into
// the joined text.
func selectChapters(full string, chapters []types.Chapter, positions []int) (string, []types.Chapter, error) {
	if len(chapters) == 0 {
		return "", nil, fmt.Errorf("no chapters detected to select from: %w", types.ErrInvalidInput)
	}

	wanted := make(map[int]bool, len(positions))
	for _, n := range positions {
		if n < 1 || n > len(chapters) {
			return "", nil, fmt.Errorf("chapter %d out of range 1-%d: %w", n, len(chapters), types.ErrInvalidInput)
		}
		wanted[n] = true
	}

	var b strings.Builder
	selected := make([]types.Chapter, 0, len(wanted))
	for i, ch := range chapters {
		if !wanted[i+1] {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		start := b.Len()
		b.WriteString(ch.Text(full))
		selected = append(selected, types.Chapter{
			Title:     ch.Title,
			StartPage: ch.StartPage,
			StartChar: start,
			EndChar:   types.IntPtr(b.Len()),
		})
	}
	return b.String(), selected, nil
}

// ExtractChapters returns the chapters detected in the document at path
func (c *Converter) ExtractChapters(ctx context.Context, path string) ([]types.Chapter, error) {
	doc, err := c.parsers.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return c.detector.Detect(doc), nil
}

// PreviewText returns up to maxChars characters of normalized text. A
// truncated preview ends with "...".
func (c *Converter) PreviewText(ctx context.Context, path string, maxChars int) (string, error) {
	if maxChars <= 0 {
		return "", fmt.Errorf("preview length must be positive: %w", types.ErrInvalidInput)
	}
	doc, err := c.parsers.Extract(ctx, path)
	if err != nil {
		return "", err
	}
	pre := text.NewPreprocessor(
		text.WithLanguage(c.cfg.Language),
		text.WithDictionary(c.dictionary),
		text.WithLogger(c.logger),
	)
	out := []rune(pre.Process(doc.Text))
	if len(out) <= maxChars {
		return string(out), nil
	}
	return string(out[:maxChars]) + "...", nil
}

// IsResumeConflict reports whether err means an existing checkpoint does
// not match and the conversion must be forced
func IsResumeConflict(err error) bool {
	return errors.Is(err, types.ErrConsistencyViolation)
}
