package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/unalkalkan/narrator/internal/config"
	"github.com/unalkalkan/narrator/internal/logging"
	"github.com/unalkalkan/narrator/pkg/types"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	appConfig *types.Config
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "narrator",
	Short: "Convert PDF, EPUB and text documents into audiobooks",
	Long: `Narrator turns documents into narrated audiobooks.

It extracts the text of a PDF, EPUB or plain text file, detects its
chapters, normalizes the text for speech, and synthesizes it chunk by
chunk with a text-to-speech provider. Long conversions are checkpointed
so an interrupted run picks up where it stopped.

Documents can be converted directly from the command line, or submitted
to the HTTP job server started with "narrator serve".`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat != "" {
			cfg.Logging.Format = logFormat
		}

		l, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		slog.SetDefault(l)

		appConfig = cfg
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: built-in defaults plus NR_ environment overrides)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "", "log format: text or json",
	)

	rootCmd.AddCommand(versionCmd)
}
