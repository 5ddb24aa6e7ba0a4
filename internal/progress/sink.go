package progress

import (
	"log/slog"
	"sync"
)

// Sink receives progress updates in the order they are produced
type Sink interface {
	Report(Update)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Update)

// Report calls f(u)
func (f SinkFunc) Report(u Update) {
	f(u)
}

// Discard drops every update
var Discard Sink = SinkFunc(func(Update) {})

// Multi fans each update out to every sink, in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var kept []Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return SinkFunc(func(u Update) {
		for _, s := range kept {
			s.Report(u)
		}
	})
}

// Channel is a bounded queue between the pipeline and a reader. Report
// blocks when the buffer is full, so a slow reader slows the producer
// rather than losing updates.
type Channel struct {
	mu     sync.RWMutex
	ch     chan Update
	closed bool
}

// NewChannel creates a channel sink with the given buffer size
func NewChannel(size int) *Channel {
	if size < 0 {
		size = 0
	}
	return &Channel{ch: make(chan Update, size)}
}

// Report queues u. Updates after Close are dropped.
func (c *Channel) Report(u Update) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.ch <- u
}

// Updates returns the receive side
func (c *Channel) Updates() <-chan Update {
	return c.ch
}

// Close ends the stream; readers drain what is buffered and then stop
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// LogSink writes updates to a structured logger. Stage changes log at
// info, repeats within a stage at debug.
type LogSink struct {
	logger *slog.Logger

	mu   sync.Mutex
	last Stage
}

// NewLogSink creates a new log sink
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "progress")}
}

// Report logs u
func (l *LogSink) Report(u Update) {
	l.mu.Lock()
	changed := u.Stage != l.last
	l.last = u.Stage
	l.mu.Unlock()

	attrs := []any{"stage", u.Stage, "percent", u.Percent}
	if info, ok := u.Synthesis(); ok {
		attrs = append(attrs, "chunk", info.ChunksCompleted, "total", info.ChunksTotal)
		if info.Chapter != "" {
			attrs = append(attrs, "chapter", info.Chapter)
		}
	}

	if changed {
		l.logger.Info(u.Message, attrs...)
	} else {
		l.logger.Debug(u.Message, attrs...)
	}
}
