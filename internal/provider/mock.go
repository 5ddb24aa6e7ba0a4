package provider

import (
	"context"
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

const (
	mockWordsPerMinute = 150
	mockMinSeconds     = 0.1
	mockMaxSeconds     = 60
)

// MockSynthesizer produces silence sized like speech. It lets the whole
// pipeline run without a TTS backend.
type MockSynthesizer struct {
	name       string
	sampleRate int
}

// NewMockSynthesizer creates a new mock synthesizer
func NewMockSynthesizer(name string, sampleRate int) *MockSynthesizer {
	if name == "" {
		name = "mock"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &MockSynthesizer{name: name, sampleRate: sampleRate}
}

func (m *MockSynthesizer) Name() string {
	return m.name
}

func (m *MockSynthesizer) SampleRate() int {
	return m.sampleRate
}

// Synthesize returns one block of silence lasting words/150 minutes at the
// given speed, clamped to 0.1-60 seconds
func (m *MockSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	words := len(strings.Fields(req.Text))
	seconds := float64(words) / mockWordsPerMinute * 60 / speed
	seconds = max(mockMinSeconds, min(seconds, mockMaxSeconds))

	return [][]float32{make([]float32, int(seconds*float64(m.sampleRate)))}, nil
}

// ListVoices returns the built-in voice table
func (m *MockSynthesizer) ListVoices(ctx context.Context) ([]types.Voice, error) {
	return Voices(""), nil
}

func (m *MockSynthesizer) Close() error {
	return nil
}
