package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/unalkalkan/narrator/internal/api"
	"github.com/unalkalkan/narrator/internal/audio"
	"github.com/unalkalkan/narrator/internal/converter"
	"github.com/unalkalkan/narrator/internal/health"
	"github.com/unalkalkan/narrator/internal/job"
	"github.com/unalkalkan/narrator/internal/parser"
	"github.com/unalkalkan/narrator/internal/progress"
	"github.com/unalkalkan/narrator/internal/provider"
	"github.com/unalkalkan/narrator/internal/storage"
)

const shutdownTimeout = 30 * time.Second

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Start the Narrator HTTP job server.

Uploaded documents are stored in the configured storage and converted
by a pool of background workers. Jobs that were running when the server
stopped are resumed on the next start.

The server provides:
  - /health, /health/live, /health/ready
  - /api/v1/info and /api/v1/voices
  - /api/v1/jobs for uploads, progress, downloads and deletion

Examples:
  narrator serve --config config.yaml
  narrator serve --port 3000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := appConfig
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger.Info("starting narrator server", "version", version)

	store, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage adapter: %w", err)
	}
	defer store.Close()
	logger.Info("storage adapter initialized", "adapter", cfg.Storage.Adapter)

	registry := provider.NewRegistry()
	if err := registry.InitializeProviders(cfg.Providers, logger); err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	defer registry.Close()
	synth, err := registry.Get("")
	if err != nil {
		return fmt.Errorf("no TTS provider available: %w", err)
	}
	logger.Info("providers initialized", "tts", registry.List(), "default", synth.Name())

	parsers := parser.NewFactory(logger)
	conv, err := converter.New(cfg.Conversion, synth,
		converter.WithLogger(logger),
		converter.WithCheckpoints(cfg.Checkpoint.Enabled),
		converter.WithParsers(parsers),
		converter.WithTempDir(cfg.Jobs.TempDir),
	)
	if err != nil {
		return err
	}

	jobOpts := []job.Option{
		job.WithLogger(logger),
		job.WithInputFormats(parsers.Formats()),
	}
	var nc *nats.Conn
	if cfg.Messaging.NATS.Enabled {
		nc, err = progress.Connect(cfg.Messaging.NATS)
		if err != nil {
			return err
		}
		defer nc.Drain()
		jobOpts = append(jobOpts, job.WithNATS(nc, cfg.Messaging.NATS.SubjectPrefix))
		logger.Info("publishing progress to NATS", "url", cfg.Messaging.NATS.URL, "prefix", cfg.Messaging.NATS.SubjectPrefix)
	}

	jobs := job.NewService(job.NewRepository(store), store, conv, cfg.Jobs, jobOpts...)
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer jobs.Stop()

	checks := health.NewHandler(version, logger)
	checks.Register("storage", health.StorageCheck(store))
	checks.Register("ffmpeg", health.FFmpegCheck(audio.DefaultFFmpeg))
	checks.Register("providers", health.ProvidersCheck(registry))
	if nc != nil {
		checks.Register("nats", health.NATSCheck(nc))
	}

	router := api.NewRouter(api.Deps{
		Jobs:      jobs,
		Providers: registry,
		Health:    checks,
		Info: api.Info{
			Version:        version,
			StorageAdapter: cfg.Storage.Adapter,
			InputFormats:   parsers.Formats(),
			OutputFormats:  audio.Formats(),
		},
		MaxUploadMB: cfg.Server.MaxUploadMB,
		Logger:      logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
