package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/unalkalkan/narrator/internal/audio"
	"github.com/unalkalkan/narrator/internal/provider"
	"github.com/unalkalkan/narrator/internal/storage"
)

// CheckFunc reports the status of one dependency
type CheckFunc func(ctx context.Context) (Status, error)

// StorageCheck probes the storage backend with an existence query
func StorageCheck(adapter storage.Adapter) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if _, err := adapter.Exists(ctx, ".healthcheck"); err != nil {
			return StatusUnhealthy, err
		}
		return StatusHealthy, nil
	}
}

// FFmpegCheck looks for the ffmpeg binary. Without it only WAV output
// works, so a missing binary degrades rather than fails the service.
func FFmpegCheck(bin string) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if err := audio.CheckFFmpeg(bin); err != nil {
			return StatusDegraded, err
		}
		return StatusHealthy, nil
	}
}

// ProvidersCheck requires at least one registered synthesizer and a
// resolvable default
func ProvidersCheck(reg *provider.Registry) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if len(reg.List()) == 0 {
			return StatusUnhealthy, errors.New("no TTS providers registered")
		}
		if _, err := reg.Get(""); err != nil {
			return StatusUnhealthy, fmt.Errorf("default TTS provider: %w", err)
		}
		return StatusHealthy, nil
	}
}

// NATSCheck reports the progress bus connection. Progress publishing is
// best effort, so a lost connection degrades the service.
func NATSCheck(conn *nats.Conn) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if conn == nil || !conn.IsConnected() {
			return StatusDegraded, errors.New("NATS not connected")
		}
		return StatusHealthy, nil
	}
}
