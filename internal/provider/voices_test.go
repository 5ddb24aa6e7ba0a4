package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/unalkalkan/narrator/pkg/types"
)

func TestVoices(t *testing.T) {
	all := Voices("")
	if len(all) != len(kokoroVoices) {
		t.Fatalf("Expected %d voices, got %d", len(kokoroVoices), len(all))
	}

	heart := all[0]
	if heart.ID != "af_heart" || heart.Name != "Heart" || heart.Gender != "female" || heart.Accent != "american" {
		t.Errorf("Unexpected first voice: %+v", heart)
	}
	if len(heart.Languages) != 1 || heart.Languages[0] != "en" {
		t.Errorf("Expected languages [en], got %v", heart.Languages)
	}

	spanish := Voices("e")
	if len(spanish) != 2 {
		t.Fatalf("Expected 2 Spanish voices, got %d", len(spanish))
	}
	if spanish[1].ID != "em_alex" || spanish[1].Gender != "male" || spanish[1].Languages[0] != "es" {
		t.Errorf("Unexpected Spanish voice: %+v", spanish[1])
	}

	if got := Voices("q"); len(got) != 0 {
		t.Errorf("Expected no voices for unknown language, got %d", len(got))
	}
}

func TestVoiceLanguage(t *testing.T) {
	tests := []struct {
		voice string
		want  string
	}{
		{"af_heart", "a"},
		{"bm_george", "b"},
		{"ef_dora", "e"},
		{"pf_dora", "p"}, // not in the table, inferred from prefix
		{"xx_custom", "a"},
		{"", "a"},
	}

	for _, tt := range tests {
		if got := VoiceLanguage(tt.voice); got != tt.want {
			t.Errorf("VoiceLanguage(%q) = %q, want %q", tt.voice, got, tt.want)
		}
	}

	if desc, ok := VoiceDescription("bf_emma"); !ok || desc != "British English Female - Emma (B- grade)" {
		t.Errorf("Unexpected description: %q %v", desc, ok)
	}
	if _, ok := VoiceDescription("nobody"); ok {
		t.Error("Expected no description for unknown voice")
	}
	if ISOLanguage("z") != "zh" || ISOLanguage("qq") != "qq" {
		t.Error("Unexpected ISO mapping")
	}
}

func TestOpenAISynthesizer_ListVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		if r.URL.Path != "/voices" {
			t.Errorf("Expected /voices path, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-api-key" {
			t.Errorf("Expected Authorization header with Bearer token, got %s", auth)
		}
		if model := r.URL.Query().Get("model"); model != "tts-1" {
			t.Errorf("Expected model query tts-1, got %s", model)
		}

		response := voicesAPIResponse{
			Data: []voiceData{
				{ID: "alloy", Name: "Alloy", Languages: []string{"en"}, Gender: "neutral"},
				{ID: "fable", Name: "Fable", Language: "en", Accent: "british"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	s, err := NewOpenAISynthesizer(types.TTSProviderConfig{
		Name:     "test-openai",
		Endpoint: server.URL,
		APIKey:   "test-api-key",
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	defer s.Close()

	voices, err := s.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d", len(voices))
	}
	if voices[1].ID != "fable" || len(voices[1].Languages) != 1 || voices[1].Languages[0] != "en" {
		t.Errorf("Expected language fallback for fable, got %+v", voices[1])
	}
}

func TestOpenAISynthesizer_ListVoicesKokoroFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/voices" {
			t.Errorf("Expected configured voices path, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"voices":["af_heart","em_alex","zz_custom"]}`))
	}))
	defer server.Close()

	s, _ := NewOpenAISynthesizer(types.TTSProviderConfig{
		Name:     "kokoro",
		Endpoint: server.URL + "/",
		Options:  map[string]string{"voices_path": "/audio/voices"},
	}, nil)

	voices, err := s.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices failed: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("Expected 3 voices, got %d", len(voices))
	}
	if voices[0].Description != "American English Female - Heart (A grade)" {
		t.Errorf("Expected description from the voice table, got %q", voices[0].Description)
	}
	if voices[1].Languages[0] != "es" || voices[1].Gender != "male" {
		t.Errorf("Unexpected voice metadata: %+v", voices[1])
	}
	if voices[2].Description != "" {
		t.Errorf("Expected no description for unknown voice, got %q", voices[2].Description)
	}
}

func TestOpenAISynthesizer_ListVoicesRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"voices":["af_heart"]}`))
	}))
	defer server.Close()

	s, _ := NewOpenAISynthesizer(types.TTSProviderConfig{Name: "x", Endpoint: server.URL, MaxRetries: 3}, nil)
	voices, err := s.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if len(voices) != 1 || calls.Load() != 3 {
		t.Errorf("Expected 1 voice after 3 calls, got %d voices after %d calls", len(voices), calls.Load())
	}
}

func TestOpenAISynthesizer_ListVoicesClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	s, _ := NewOpenAISynthesizer(types.TTSProviderConfig{Name: "x", Endpoint: server.URL, MaxRetries: 3}, nil)
	_, err := s.ListVoices(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single call, got %d", calls.Load())
	}
}

func TestMockSynthesizer_ListVoices(t *testing.T) {
	voices, err := NewMockSynthesizer("", 0).ListVoices(context.Background())
	if err != nil || len(voices) != len(kokoroVoices) {
		t.Errorf("Expected the built-in table, got %d voices (%v)", len(voices), err)
	}
}
