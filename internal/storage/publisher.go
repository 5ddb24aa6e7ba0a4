package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/unalkalkan/narrator/pkg/types"
)

// Publisher uploads finished files to an Adapter, retrying transient
// failures
type Publisher struct {
	adapter  Adapter
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

// NewPublisher creates a publisher from the job retry settings. Fewer than
// one attempt is treated as one.
func NewPublisher(adapter Adapter, cfg types.JobsConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := uint(1)
	if cfg.MaxRetries > 0 {
		attempts = uint(cfg.MaxRetries)
	}
	return &Publisher{
		adapter:  adapter,
		attempts: attempts,
		delay:    time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		logger:   logger.With("component", "publisher"),
	}
}

// Publish uploads the local file at src to key. A missing source file is
// not retried.
func (p *Publisher) Publish(ctx context.Context, src, key string) error {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("nothing to publish at %s: %w", src, types.ErrNotFound)
		}
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	err := retry.Do(
		func() error {
			return PutFile(ctx, p.adapter, key, src)
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, types.ErrInvalidInput) && !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("upload failed, retrying", "key", key, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}

	p.logger.Info("published", "key", key)
	return nil
}
