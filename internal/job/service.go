package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/unalkalkan/narrator/internal/audio"
	"github.com/unalkalkan/narrator/internal/converter"
	"github.com/unalkalkan/narrator/internal/progress"
	"github.com/unalkalkan/narrator/internal/storage"
	"github.com/unalkalkan/narrator/pkg/types"
)

// ErrQueueFull is returned by Create when no more jobs can be queued
var ErrQueueFull = errors.New("job queue is full")

// DefaultOutputFormat is used when a job does not name one
const DefaultOutputFormat = "mp3"

const (
	queueSize        = 256
	subscriberBuffer = 64
	persistInterval  = time.Second
	cleanupInterval  = time.Hour
)

// Converter runs one conversion
type Converter interface {
	Convert(ctx context.Context, req converter.Request) (*types.ConversionResult, error)
}

// CreateRequest describes an uploaded document to convert
type CreateRequest struct {
	Filename     string
	Input        io.Reader
	Voice        string
	Speed        float64
	OutputFormat string
	Chapters     []int
}

// run tracks one job while a worker owns it
type run struct {
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled bool
}

// Service queues jobs and runs them on a bounded worker pool
type Service struct {
	repo          Repository
	store         storage.Adapter
	publisher     *storage.Publisher
	conv          Converter
	cfg           types.JobsConfig
	inputFormats  map[string]bool
	nats          *nats.Conn
	subjectPrefix string
	now           func() time.Time
	logger        *slog.Logger

	queue chan string

	mu        sync.Mutex
	running   map[string]*run
	cancelled map[string]bool // pending jobs cancelled before a worker claimed them
	subs      map[string]map[chan progress.Update]struct{}

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNATS publishes job progress on prefix.<job id>
func WithNATS(conn *nats.Conn, prefix string) Option {
	return func(s *Service) {
		s.nats = conn
		s.subjectPrefix = prefix
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInputFormats limits the accepted upload extensions
func WithInputFormats(formats []string) Option {
	return func(s *Service) {
		s.inputFormats = make(map[string]bool, len(formats))
		for _, f := range formats {
			s.inputFormats[strings.ToLower(strings.TrimPrefix(f, "."))] = true
		}
	}
}

// NewService creates a job service. Call Start to begin processing.
func NewService(repo Repository, store storage.Adapter, conv Converter, cfg types.JobsConfig, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		store:        store,
		conv:         conv,
		cfg:          cfg,
		inputFormats: map[string]bool{"epub": true, "pdf": true, "txt": true},
		now:          time.Now,
		logger:       slog.Default(),
		queue:        make(chan string, queueSize),
		running:      make(map[string]*run),
		cancelled:    make(map[string]bool),
		subs:         make(map[string]map[chan progress.Update]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "jobs")
	s.publisher = storage.NewPublisher(store, cfg, s.logger)
	if s.cfg.MaxConcurrent <= 0 {
		s.cfg.MaxConcurrent = 1
	}
	if s.cfg.TempDir == "" {
		s.cfg.TempDir = filepath.Join(os.TempDir(), "narrator")
	}
	return s
}

// Start requeues unfinished jobs and launches the workers. Jobs that were
// processing when the previous process stopped resume from their
// checkpoints.
func (s *Service) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create job temp dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel

	if err := s.requeue(ctx); err != nil {
		s.logger.Warn("failed to requeue unfinished jobs", "error", err)
	}

	for i := 0; i < s.cfg.MaxConcurrent; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	if s.cfg.RetentionDays > 0 {
		s.wg.Add(1)
		go s.janitor(ctx)
	}

	s.logger.Info("job workers started", "workers", s.cfg.MaxConcurrent)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit. Interrupted
// jobs go back to pending.
func (s *Service) Stop() {
	if s.stop != nil {
		s.stop()
	}
	s.wg.Wait()
}

func (s *Service) requeue(ctx context.Context) error {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	// List is newest first
	for i := len(jobs) - 1; i >= 0; i-- {
		job := jobs[i]
		if job.Status != types.JobPending && job.Status != types.JobProcessing {
			continue
		}
		if job.Status == types.JobProcessing {
			job.Status = types.JobPending
			if err := s.repo.Save(ctx, job); err != nil {
				return err
			}
		}
		if err := s.enqueue(job.ID); err != nil {
			return err
		}
		s.logger.Info("job requeued", "job", job.ID)
	}
	return nil
}

func (s *Service) enqueue(id string) error {
	select {
	case s.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Create validates req, stores the upload and queues a pending job
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.Job, error) {
	if req.Input == nil {
		return nil, fmt.Errorf("no input document: %w", types.ErrInvalidInput)
	}
	name, err := SafeFilename(req.Filename)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if !s.inputFormats[ext] {
		return nil, fmt.Errorf("unsupported input format %q: %w", ext, types.ErrInvalidInput)
	}

	outputFormat := req.OutputFormat
	if outputFormat == "" {
		outputFormat = DefaultOutputFormat
	}
	format, err := audio.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	if req.Speed != 0 && (req.Speed < converter.MinSpeed || req.Speed > converter.MaxSpeed) {
		return nil, fmt.Errorf("speed %.2f outside %.1f-%.1f: %w", req.Speed, converter.MinSpeed, converter.MaxSpeed, types.ErrInvalidInput)
	}
	for _, n := range req.Chapters {
		if n < 1 {
			return nil, fmt.Errorf("chapter positions start at 1, got %d: %w", n, types.ErrInvalidInput)
		}
	}

	id := uuid.NewString()
	key, err := s.repo.SaveInput(ctx, id, name, req.Input)
	if err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:            id,
		Status:        types.JobPending,
		InputFilename: name,
		InputKey:      key,
		Voice:         req.Voice,
		Speed:         req.Speed,
		OutputFormat:  string(format),
		Chapters:      req.Chapters,
		Progress:      types.JobProgress{Message: "Queued", UpdatedAt: s.now().UTC()},
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Save(ctx, job); err != nil {
		s.repo.Delete(ctx, id)
		return nil, err
	}
	if err := s.enqueue(id); err != nil {
		s.repo.Delete(ctx, id)
		return nil, err
	}

	s.logger.Info("job created", "job", id, "input", name, "format", format)
	return job, nil
}

// Get returns a job
func (s *Service) Get(ctx context.Context, id string) (*types.Job, error) {
	return s.repo.Get(ctx, id)
}

// List returns all jobs, newest first
func (s *Service) List(ctx context.Context) ([]*types.Job, error) {
	return s.repo.List(ctx)
}

// OpenOutput returns the finished audiobook of a completed job
func (s *Service) OpenOutput(ctx context.Context, id string) (io.ReadCloser, *types.Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != types.JobCompleted || job.OutputKey == "" {
		return nil, nil, fmt.Errorf("job %s has no output (status %s): %w", id, job.Status, types.ErrConsistencyViolation)
	}
	r, err := s.store.Get(ctx, job.OutputKey)
	if err != nil {
		return nil, nil, err
	}
	return r, job, nil
}

// Cancel stops a pending or running job and returns its final state.
// Finished jobs are returned unchanged.
func (s *Service) Cancel(ctx context.Context, id string) (*types.Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return job, nil
	}

	s.mu.Lock()
	r := s.running[id]
	if r != nil {
		r.cancelled = true
		r.cancel()
	} else {
		s.cancelled[id] = true
	}
	s.mu.Unlock()

	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return s.repo.Get(ctx, id)
	}

	now := s.now().UTC()
	job.Status = types.JobCancelled
	job.Error = "cancelled"
	job.CompletedAt = &now
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job cancelled", "job", id)
	return job, nil
}

// Delete cancels a job and removes it with its files
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Cancel(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job deleted", "job", id)
	return nil
}

// Cleanup deletes finished jobs older than the retention period and
// returns how many were removed. A retention of zero keeps everything.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)

	jobs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, job := range jobs {
		if !job.Terminal() {
			continue
		}
		finished := job.CreatedAt
		if job.CompletedAt != nil {
			finished = *job.CompletedAt
		}
		if !finished.Before(cutoff) {
			continue
		}
		if err := s.repo.Delete(ctx, job.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("expired jobs removed", "count", removed, "retention_days", s.cfg.RetentionDays)
	}
	return removed, nil
}

// Subscribe streams the progress of a running job. The channel is closed
// when the job stops. ok is false if no worker is running the job. Slow
// readers miss updates rather than stalling the conversion.
func (s *Service) Subscribe(id string) (updates <-chan progress.Update, unsubscribe func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[id] == nil {
		return nil, nil, false
	}
	ch := make(chan progress.Update, subscriberBuffer)
	if s.subs[id] == nil {
		s.subs[id] = make(map[chan progress.Update]struct{})
	}
	s.subs[id][ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id][ch]; ok {
			delete(s.subs[id], ch)
			close(ch)
		}
	}, true
}

func (s *Service) broadcast(id string, u progress.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[id] {
		select {
		case ch <- u:
		default:
		}
	}
}

// claim registers r as the owner of id. It fails if another worker owns
// the job or it was cancelled while queued.
func (s *Service) claim(id string, r *run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled[id] {
		delete(s.cancelled, id)
		return false
	}
	if s.running[id] != nil {
		return false
	}
	s.running[id] = r
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
	for ch := range s.subs[id] {
		close(ch)
	}
	delete(s.subs, id)
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			s.process(ctx, id)
		}
	}
}

func (s *Service) janitor(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		if _, err := s.Cleanup(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("job cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// process runs one job to a terminal state, or back to pending when the
// service is stopping
func (s *Service) process(base context.Context, id string) {
	job, err := s.repo.Get(base, id)
	if err != nil || job.Status != types.JobPending {
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			s.logger.Warn("queued job unavailable", "job", id, "error", err)
		}
		s.mu.Lock()
		delete(s.cancelled, id)
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(base)
	r := &run{cancel: cancel, done: make(chan struct{})}
	if !s.claim(id, r) {
		cancel()
		return
	}
	defer func() {
		cancel()
		s.release(id)
		close(r.done)
	}()

	// Final states are saved even after cancellation
	persist := context.WithoutCancel(ctx)
	logger := s.logger.With("job", id)

	started := s.now().UTC()
	job.Status = types.JobProcessing
	job.StartedAt = &started
	job.Error = ""
	if err := s.repo.Save(persist, job); err != nil {
		logger.Error("failed to mark job processing", "error", err)
		return
	}
	logger.Info("job started", "input", job.InputFilename)

	workDir := filepath.Join(s.cfg.TempDir, id)
	stem := strings.TrimSuffix(job.InputFilename, path.Ext(job.InputFilename))
	outputName := stem + "." + job.OutputFormat
	inputPath := filepath.Join(workDir, "input", job.InputFilename)
	outputPath := filepath.Join(workDir, outputName)

	result, err := s.execute(ctx, persist, job, inputPath, outputPath)
	if err == nil {
		key := OutputKey(id, outputName)
		if err = s.publisher.Publish(ctx, outputPath, key); err == nil {
			job.OutputKey = key
		}
	}

	s.mu.Lock()
	cancelled := r.cancelled
	s.mu.Unlock()

	finished := s.now().UTC()
	switch {
	case err == nil:
		job.Status = types.JobCompleted
		job.CompletedAt = &finished
		job.DurationSeconds = result.DurationSeconds
		job.ChaptersCount = len(result.Chapters)
		job.Progress.Percent = 100
		job.Progress.Message = "Complete"
		job.Progress.UpdatedAt = finished
		logger.Info("job completed", "duration", result.FormattedDuration(), "output", job.OutputKey)
	case cancelled:
		job.Status = types.JobCancelled
		job.CompletedAt = &finished
		job.Error = "cancelled"
		logger.Info("job cancelled")
	case base.Err() != nil:
		// Shutting down: keep the work dir so the checkpoint survives
		job.Status = types.JobPending
		job.StartedAt = nil
		job.Progress.Message = "Interrupted, waiting to resume"
		if err := s.repo.Save(persist, job); err != nil {
			logger.Error("failed to save interrupted job", "error", err)
		}
		logger.Info("job interrupted by shutdown")
		return
	default:
		job.Status = types.JobFailed
		job.CompletedAt = &finished
		job.Error = err.Error()
		if stage, ok := converter.FailedStage(err); ok {
			job.Progress.Stage = string(stage)
		}
		logger.Error("job failed", "error", err)
	}

	if err := s.repo.Save(persist, job); err != nil {
		logger.Error("failed to save job", "error", err)
	}
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("failed to remove work dir", "dir", workDir, "error", err)
	}
}

// execute downloads the input and converts it, retrying failures that a
// fresh attempt can fix. Retries resume from the conversion checkpoint.
func (s *Service) execute(ctx, persist context.Context, job *types.Job, inputPath, outputPath string) (*types.ConversionResult, error) {
	if err := storage.GetFile(ctx, s.store, job.InputKey, inputPath); err != nil {
		return nil, fmt.Errorf("failed to fetch input: %w", err)
	}

	sink := progress.Multi(
		newTracker(persist, s, job),
		s.natsSink(job.ID),
		progress.SinkFunc(func(u progress.Update) { s.broadcast(job.ID, u) }),
	)
	req := converter.Request{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Voice:      job.Voice,
		Speed:      job.Speed,
		Chapters:   job.Chapters,
		Progress:   sink,
	}

	attempts := uint(1)
	if s.cfg.MaxRetries > 0 {
		attempts = uint(s.cfg.MaxRetries)
	}

	var result *types.ConversionResult
	err := retry.Do(
		func() error {
			res, err := s.conv.Convert(ctx, req)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Duration(s.cfg.RetryDelayMs)*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("conversion failed, retrying", "job", job.ID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// retryable reports whether another attempt could succeed
func retryable(err error) bool {
	switch {
	case errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrConsistencyViolation),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (s *Service) natsSink(id string) progress.Sink {
	if s.nats == nil {
		return nil
	}
	return progress.NewNATSSink(s.nats, progress.Subject(s.subjectPrefix, id), s.logger)
}

// tracker copies progress into the job record. It persists on every stage
// change and otherwise at most once per persistInterval.
type tracker struct {
	svc *Service
	ctx context.Context

	mu       sync.Mutex
	job      *types.Job
	lastSave time.Time
}

func newTracker(ctx context.Context, s *Service, job *types.Job) *tracker {
	return &tracker{svc: s, job: job, ctx: ctx}
}

func (t *tracker) Report(u progress.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := &t.job.Progress
	changed := p.Stage != string(u.Stage)
	p.Stage = string(u.Stage)
	p.Percent = u.Percent
	p.Message = u.Message
	p.UpdatedAt = u.Time
	if info, ok := u.Synthesis(); ok {
		p.CurrentChunk = info.ChunksCompleted
		p.TotalChunks = info.ChunksTotal
		p.Chapter = info.Chapter
	}

	now := t.svc.now()
	if !changed && now.Sub(t.lastSave) < persistInterval {
		return
	}
	t.lastSave = now
	if err := t.svc.repo.Save(t.ctx, t.job); err != nil {
		t.svc.logger.Warn("failed to save job progress", "job", t.job.ID, "error", err)
	}
}
