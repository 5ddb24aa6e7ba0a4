package provider

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/unalkalkan/narrator/pkg/types"
)

const (
	openAIDefaultModel   = "tts-1"
	openAIDefaultTimeout = 300 * time.Second
	openAIMinSpeed       = 0.25
	openAIMaxSpeed       = 4.0
)

// OpenAISynthesizer implements Synthesizer against any OpenAI-compatible
// /audio/speech endpoint, such as a Kokoro-FastAPI server. Audio is
// requested as raw 16-bit PCM so no decoding library is needed.
type OpenAISynthesizer struct {
	name       string
	config     types.TTSProviderConfig
	client     openai.Client
	httpClient *http.Client
	model      string
	voice      string
	sampleRate int
	retries    uint
	logger     *slog.Logger
}

// NewOpenAISynthesizer creates a new OpenAI-compatible synthesizer
func NewOpenAISynthesizer(config types.TTSProviderConfig, logger *slog.Logger) (*OpenAISynthesizer, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for OpenAI TTS provider %q: %w", config.Name, types.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}

	model := config.Model
	if model == "" {
		model = config.Options["model"]
	}
	if model == "" {
		model = openAIDefaultModel
	}

	timeout := openAIDefaultTimeout
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	sampleRate := config.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	retries := config.MaxRetries
	if retries < 0 {
		retries = 0
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.Endpoint),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(retries),
	)

	return &OpenAISynthesizer{
		name:       config.Name,
		config:     config,
		client:     client,
		httpClient: httpClient,
		model:      model,
		voice:      config.Voice,
		sampleRate: sampleRate,
		retries:    uint(retries),
		logger:     logger.With("component", "tts", "provider", config.Name),
	}, nil
}

func (o *OpenAISynthesizer) Name() string {
	return o.name
}

func (o *OpenAISynthesizer) SampleRate() int {
	return o.sampleRate
}

// Synthesize requests PCM audio for req.Text
func (o *OpenAISynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([][]float32, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, nil
	}

	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}
	if voice == "" {
		voice = DefaultVoice
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	speed = max(openAIMinSpeed, min(speed, openAIMaxSpeed))

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
		Speed:          openai.Float(speed),
	}

	start := time.Now()
	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		o.logger.Warn("speech request failed", "voice", voice, "chars", len(text), "error", err)
		return nil, fmt.Errorf("failed to call TTS API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS response: %w", err)
	}

	samples := pcm16ToFloat(body)
	o.logger.Debug("speech synthesized",
		"voice", voice,
		"chars", len(text),
		"samples", len(samples),
		"took", time.Since(start),
	)
	if len(samples) == 0 {
		return nil, nil
	}
	return [][]float32{samples}, nil
}

// ListVoices fetches the voice list from the provider's /voices endpoint
func (o *OpenAISynthesizer) ListVoices(ctx context.Context) ([]types.Voice, error) {
	endpoint := strings.TrimSuffix(o.config.Endpoint, "/") + "/" + strings.TrimPrefix(o.voicesPath(), "/")

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			if o.model != "" {
				q := req.URL.Query()
				q.Add("model", o.model)
				req.URL.RawQuery = q.Encode()
			}
			if o.config.APIKey != "" {
				req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
			}

			resp, err := o.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to execute request: %w", err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				err := apiError(resp.StatusCode, data)
				if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}
			body = data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(o.retries+1),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	var apiResp voicesAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voices response: %w", err)
	}

	voices := make([]types.Voice, 0, len(apiResp.Data)+len(apiResp.Voices))
	for _, v := range apiResp.Data {
		languages := v.Languages
		if len(languages) == 0 && v.Language != "" {
			languages = []string{v.Language}
		}
		voices = append(voices, types.Voice{
			ID:          v.ID,
			Name:        v.Name,
			Languages:   languages,
			Gender:      v.Gender,
			Accent:      v.Accent,
			Description: v.Description,
		})
	}
	// Kokoro-FastAPI answers with a bare list of IDs
	for _, id := range apiResp.Voices {
		voice := kokoroVoice{id: id, lang: VoiceLanguage(id)}
		voice.description, _ = VoiceDescription(id)
		voices = append(voices, voice.toVoice())
	}

	o.logger.Debug("voices listed", "count", len(voices))
	return voices, nil
}

func (o *OpenAISynthesizer) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

func (o *OpenAISynthesizer) voicesPath() string {
	if p := o.config.Options["voices_path"]; p != "" {
		return p
	}
	return "voices"
}

// voicesAPIResponse covers both the OpenAI-style list and Kokoro's
type voicesAPIResponse struct {
	Data   []voiceData `json:"data"`
	Voices []string    `json:"voices"`
}

type voiceData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Language    string   `json:"language"`
	Languages   []string `json:"languages"`
	Gender      string   `json:"gender"`
	Accent      string   `json:"accent"`
	Description string   `json:"description"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func apiError(status int, body []byte) error {
	var errResp apiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("API error (status %d): %s", status, errResp.Error.Message)
	}
	return fmt.Errorf("API request failed with status %d: %s", status, truncate(string(body), 200))
}

// pcm16ToFloat converts little-endian signed 16-bit samples to [-1, 1).
// A trailing odd byte is dropped.
func pcm16ToFloat(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return samples
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
