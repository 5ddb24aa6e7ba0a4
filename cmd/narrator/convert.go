package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unalkalkan/narrator/internal/audio"
	"github.com/unalkalkan/narrator/internal/checkpoint"
	"github.com/unalkalkan/narrator/internal/converter"
	"github.com/unalkalkan/narrator/internal/progress"
	"github.com/unalkalkan/narrator/internal/storage"
	"github.com/unalkalkan/narrator/pkg/types"
)

var (
	convertOutput       string
	convertFormat       string
	convertVoice        string
	convertSpeed        float64
	convertChapters     string
	convertDict         string
	convertBaseDict     string
	convertProvider     string
	convertForce        bool
	convertNoCheckpoint bool
	convertMock         bool
	convertPublish      string
)

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a document to an audiobook",
	Long: `Convert a PDF, EPUB or text file into an audiobook.

The output format follows the extension of --output: .wav is written
directly, while .mp3, .m4b, .m4a and .aac are encoded with ffmpeg and
carry chapter markers.

Conversions are checkpointed next to the output file. Running the same
command again resumes an interrupted conversion; --force starts over.

Examples:
  narrator convert book.pdf -o book.m4b
  narrator convert book.epub --voice bf_emma --speed 1.2
  narrator convert book.pdf --chapters 1,3 --format mp3
  narrator convert book.pdf --mock -o test.wav
  narrator convert book.pdf -o book.m4b --publish audiobooks/book.m4b`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOutput, "output", "o", "", "output audio file (default: <input>.<format>)")
	f.StringVar(&convertFormat, "format", "", "output format when --output is not given: wav, mp3, m4b, m4a or aac (default wav)")
	f.StringVarP(&convertVoice, "voice", "v", "", "voice ID, see \"narrator voices\" (default from config)")
	f.Float64VarP(&convertSpeed, "speed", "s", 0, "speech speed, 0.5 to 2.0 (default from config)")
	f.StringVarP(&convertChapters, "chapters", "c", "", "comma-separated chapter numbers to convert, e.g. 1,2,3")
	f.StringVarP(&convertDict, "dict", "d", "", "pronunciation dictionary (YAML or TOML)")
	f.StringVar(&convertBaseDict, "base-dict", "", "base pronunciation dictionary that --dict overrides")
	f.StringVar(&convertProvider, "provider", "", "TTS provider name (default from config)")
	f.BoolVar(&convertForce, "force", false, "discard any existing checkpoint and start over")
	f.BoolVar(&convertNoCheckpoint, "no-checkpoint", false, "disable resumable checkpoints")
	f.BoolVar(&convertMock, "mock", false, "use the mock synthesizer (writes silence)")
	f.StringVar(&convertPublish, "publish", "", "storage key to upload the finished audiobook to")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	input := args[0]

	output, err := resolveOutput(input, convertOutput, convertFormat)
	if err != nil {
		return err
	}
	chapters, err := parseChapterList(convertChapters)
	if err != nil {
		return err
	}

	cfg := appConfig.Conversion
	if convertDict != "" {
		cfg.DictionaryPath = convertDict
	}
	if convertBaseDict != "" {
		cfg.BaseDictionaryPath = convertBaseDict
	}

	synth, registry, err := openSynthesizer(convertMock, convertProvider)
	if err != nil {
		return err
	}
	defer registry.Close()

	checkpoints := appConfig.Checkpoint.Enabled && !convertNoCheckpoint
	conv, err := converter.New(cfg, synth,
		converter.WithLogger(logger),
		converter.WithCheckpoints(checkpoints),
		converter.WithTempDir(appConfig.Jobs.TempDir),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Converting %s\n", input)
	fmt.Fprintf(out, "  Output:      %s\n", output)
	fmt.Fprintf(out, "  Synthesizer: %s\n", synth.Name())
	if checkpoints {
		fmt.Fprintf(out, "  Checkpoint:  %s\n", checkpoint.DirFor(output))
	}
	fmt.Fprintln(out)

	updates := progress.NewChannel(64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printProgress(cmd.ErrOrStderr(), updates.Updates())
	}()

	result, err := conv.Convert(ctx, converter.Request{
		InputPath:  input,
		OutputPath: output,
		Voice:      convertVoice,
		Speed:      convertSpeed,
		Chapters:   chapters,
		Force:      convertForce,
		Progress:   updates,
	})
	updates.Close()
	<-printed

	if err != nil {
		return explainFailure(err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Conversion complete!")
	fmt.Fprintf(out, "  Output file:      %s\n", result.OutputPath)
	fmt.Fprintf(out, "  Duration:         %s\n", result.FormattedDuration())
	fmt.Fprintf(out, "  Chunks processed: %d\n", result.ChunksProcessed)
	if result.ChunksResumed > 0 {
		fmt.Fprintf(out, "  Chunks resumed:   %d\n", result.ChunksResumed)
	}
	if len(result.Chapters) > 0 {
		fmt.Fprintf(out, "  Chapters:         %d\n", len(result.Chapters))
	}
	if result.Language != "" {
		fmt.Fprintf(out, "  Language:         %s\n", result.Language)
	}

	if convertPublish != "" {
		if err := publish(cmd, result.OutputPath, convertPublish); err != nil {
			return err
		}
		fmt.Fprintf(out, "  Published:        %s (%s)\n", convertPublish, appConfig.Storage.Adapter)
	}
	return nil
}

// resolveOutput picks the output path. An explicit --format must agree
// with the extension of --output.
func resolveOutput(input, output, format string) (string, error) {
	if output == "" {
		if format == "" {
			format = string(audio.FormatWAV)
		}
		f, err := audio.ParseFormat(format)
		if err != nil {
			return "", err
		}
		stem := strings.TrimSuffix(input, filepath.Ext(input))
		return stem + "." + string(f), nil
	}

	f, err := audio.FormatFromPath(output)
	if err != nil {
		return "", err
	}
	if format != "" {
		want, err := audio.ParseFormat(format)
		if err != nil {
			return "", err
		}
		if want != f {
			return "", fmt.Errorf("--format %s does not match output %s: %w", want, output, types.ErrInvalidInput)
		}
	}
	return output, nil
}

// printProgress writes one line per stage change and per synthesized chunk
func printProgress(w io.Writer, updates <-chan progress.Update) {
	var stage progress.Stage
	var chapter string
	for u := range updates {
		info, isChunk := u.Synthesis()
		if isChunk && info.Chapter != "" && info.Chapter != chapter {
			chapter = info.Chapter
			fmt.Fprintf(w, "  Chapter: %s\n", chapter)
		}
		if u.Stage != stage || isChunk {
			fmt.Fprintln(w, u.String())
		}
		stage = u.Stage
	}
}

// explainFailure adds the failing stage and a hint for the common cases
func explainFailure(err error) error {
	stage, ok := converter.FailedStage(err)
	switch {
	case converter.IsResumeConflict(err):
		return fmt.Errorf("checkpoint invalid: %w (use --force to discard and restart)", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("conversion interrupted, run the same command again to resume: %w", err)
	case ok:
		return fmt.Errorf("conversion failed during %s: %w", stage, err)
	}
	return err
}

// publish uploads the audiobook to the configured storage, retrying
// transient failures
func publish(cmd *cobra.Command, path, key string) error {
	store, err := storage.NewAdapter(appConfig.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher := storage.NewPublisher(store, appConfig.Jobs, logger)
	if err := publisher.Publish(cmd.Context(), path, key); err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}
