package provider

import (
	"context"

	"github.com/unalkalkan/narrator/pkg/types"
)

// DefaultSampleRate is the output rate of the Kokoro voices and of the
// OpenAI PCM response format
const DefaultSampleRate = 24000

// Synthesizer turns text into mono float32 PCM
type Synthesizer interface {
	// Name returns the provider name
	Name() string

	// SampleRate returns the rate of the samples Synthesize produces
	SampleRate() int

	// Synthesize converts text to one or more blocks of samples in [-1, 1].
	// Whitespace-only text yields no blocks and no error.
	Synthesize(ctx context.Context, req SynthesisRequest) ([][]float32, error)

	// Close cleans up resources
	Close() error
}

// SynthesisRequest contains the text and voice settings for synthesis
type SynthesisRequest struct {
	Text  string  // Text to synthesize
	Voice string  // Provider-specific voice ID
	Speed float64 // Speech rate multiplier, 1.0 is normal
}

// VoiceLister is implemented by synthesizers that can enumerate their voices
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]types.Voice, error)
}

// Flatten concatenates synthesized blocks into one buffer
func Flatten(blocks [][]float32) []float32 {
	n := 0
	for _, b := range blocks {
		n += len(b)
	}
	out := make([]float32, 0, n)
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}
