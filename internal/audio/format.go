// Package audio writes synthesized speech to disk. WAV is encoded
// directly; compressed formats are produced by handing a temporary WAV
// and a chapter metadata file to ffmpeg.
package audio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

// Format is an output container, named by its file extension
type Format string

// Supported output formats
const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
	FormatM4B Format = "m4b"
	FormatM4A Format = "m4a"
	FormatAAC Format = "aac"
)

// Formats lists the supported output formats
func Formats() []string {
	return []string{string(FormatWAV), string(FormatMP3), string(FormatM4B), string(FormatM4A), string(FormatAAC)}
}

// FormatFromPath picks the output format from the file extension
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ParseFormat(ext)
}

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(name, ".")))
	switch f {
	case FormatWAV, FormatMP3, FormatM4B, FormatM4A, FormatAAC:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q: %w", name, types.ErrInvalidInput)
}

// NeedsTranscode reports whether ffmpeg is required to produce f
func (f Format) NeedsTranscode() bool {
	return f != FormatWAV
}

// encoderArgs returns the ffmpeg codec and container flags for f
func (f Format) encoderArgs() []string {
	switch f {
	case FormatMP3:
		return []string{"-codec:a", "libmp3lame", "-b:a", "192k"}
	case FormatM4B, FormatM4A, FormatAAC:
		return []string{"-codec:a", "aac", "-b:a", "128k", "-f", "mp4"}
	}
	return nil
}
