package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

// DefaultFFmpeg is the binary looked up on PATH
const DefaultFFmpeg = "ffmpeg"

var metadataEscaper = strings.NewReplacer(
	`\`, `\\`,
	"=", `\=`,
	";", `\;`,
	"#", `\#`,
	"\n", `\`+"\n",
)

// WriteMetadata renders chapter markers as an ffmpeg FFMETADATA1 file.
// Each chapter ends where the next begins; the last ends at total.
func WriteMetadata(w io.Writer, chapters []types.ChapterMarker, total float64) error {
	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")

	totalMS := millis(total)
	for i, ch := range chapters {
		end := totalMS
		if i+1 < len(chapters) {
			end = millis(chapters[i+1].StartTime)
		}
		fmt.Fprintf(&b, "\n[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n",
			millis(ch.StartTime), end, metadataEscaper.Replace(ch.Title))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FFmpegArgs builds the argument list that transcodes wavPath into output.
// metaPath may be empty when there are no chapters.
func FFmpegArgs(format Format, wavPath, metaPath, output string) []string {
	args := []string{"-y", "-i", wavPath}
	if metaPath != "" {
		args = append(args, "-i", metaPath, "-map_metadata", "1")
	}
	args = append(args, format.encoderArgs()...)
	return append(args, output)
}

// CheckFFmpeg verifies the binary can be executed
func CheckFFmpeg(bin string) error {
	if bin == "" {
		bin = DefaultFFmpeg
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

func (w *Writer) transcode() error {
	var metaPath string
	if len(w.chapters) > 0 {
		meta, err := os.CreateTemp(w.tempDir, ".narrator-*.ffmeta")
		if err != nil {
			return fmt.Errorf("failed to create metadata file: %w", err)
		}
		metaPath = meta.Name()
		defer os.Remove(metaPath)

		if err := WriteMetadata(meta, w.chapters, w.Duration()); err != nil {
			meta.Close()
			return fmt.Errorf("failed to write metadata file: %w", err)
		}
		if err := meta.Close(); err != nil {
			return fmt.Errorf("failed to write metadata file: %w", err)
		}
	}

	args := FFmpegArgs(w.format, w.wavPath, metaPath, w.path)
	w.logger.Debug("running ffmpeg", "args", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.Command(w.ffmpeg, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w: %s", err, strings.TrimSpace(lastLines(stderr.String(), 5)))
	}
	return nil
}

func millis(seconds float64) int64 {
	return int64(math.Floor(seconds * 1000))
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
