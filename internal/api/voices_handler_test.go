package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unalkalkan/narrator/internal/provider"
	"github.com/unalkalkan/narrator/pkg/types"
)

func mockRegistry(t *testing.T, names ...string) *provider.Registry {
	t.Helper()
	registry := provider.NewRegistry()
	for _, name := range names {
		if err := registry.Register(provider.NewMockSynthesizer(name, 24000)); err != nil {
			t.Fatalf("Failed to register mock synthesizer: %v", err)
		}
	}
	return registry
}

type voicesResponse struct {
	Voices []VoiceResponse `json:"voices"`
	Count  int             `json:"count"`
}

func listVoices(t *testing.T, handler *VoicesHandler, target string) (*httptest.ResponseRecorder, voicesResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ListVoices(w, httptest.NewRequest(http.MethodGet, target, nil))

	var response voicesResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return w, response
}

func TestVoicesHandler_ListVoices(t *testing.T) {
	handler := NewVoicesHandler(mockRegistry(t, "kokoro"), nil)

	w, response := listVoices(t, handler, "/api/v1/voices")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(response.Voices) != len(provider.Voices("")) {
		t.Errorf("Expected %d voices, got %d", len(provider.Voices("")), len(response.Voices))
	}
	if response.Count != len(response.Voices) {
		t.Errorf("Count mismatch: count=%d, voices length=%d", response.Count, len(response.Voices))
	}

	for _, v := range response.Voices {
		if v.ID == "" || v.Name == "" || len(v.Languages) == 0 {
			t.Errorf("Voice missing fields: %+v", v)
		}
		if v.Provider != "kokoro" {
			t.Errorf("Expected provider 'kokoro', got '%s'", v.Provider)
		}
	}
}

func TestVoicesHandler_ListVoicesWithProvider(t *testing.T) {
	handler := NewVoicesHandler(mockRegistry(t, "kokoro", "backup"), nil)

	w, response := listVoices(t, handler, "/api/v1/voices?provider=backup")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(response.Voices) == 0 {
		t.Fatal("Expected voices from backup provider")
	}
	for _, v := range response.Voices {
		if v.Provider != "backup" {
			t.Errorf("Expected provider 'backup', got '%s'", v.Provider)
		}
	}
}

func TestVoicesHandler_ListVoicesWithLanguage(t *testing.T) {
	handler := NewVoicesHandler(mockRegistry(t, "kokoro"), nil)

	w, response := listVoices(t, handler, "/api/v1/voices?language=es")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(response.Voices) == 0 {
		t.Fatal("Expected Spanish voices")
	}
	for _, v := range response.Voices {
		if v.Languages[0] != "es" {
			t.Errorf("Voice %s does not speak es: %v", v.ID, v.Languages)
		}
	}
}

func TestVoicesHandler_ListVoicesProviderNotFound(t *testing.T) {
	handler := NewVoicesHandler(provider.NewRegistry(), nil)

	w, _ := listVoices(t, handler, "/api/v1/voices?provider=nonexistent")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestVoicesHandler_ListVoicesNoProviders(t *testing.T) {
	handler := NewVoicesHandler(provider.NewRegistry(), nil)

	w, _ := listVoices(t, handler, "/api/v1/voices")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestVoicesHandler_MethodNotAllowed(t *testing.T) {
	handler := NewVoicesHandler(provider.NewRegistry(), nil)

	w := httptest.NewRecorder()
	handler.ListVoices(w, httptest.NewRequest(http.MethodPost, "/api/v1/voices", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

// failingSynthesizer cannot list its voices
type failingSynthesizer struct {
	*provider.MockSynthesizer
}

func (f failingSynthesizer) ListVoices(ctx context.Context) ([]types.Voice, error) {
	return nil, errors.New("voices endpoint unavailable")
}

func TestVoicesHandler_ListVoicesPartialFailure(t *testing.T) {
	registry := mockRegistry(t, "working")
	if err := registry.Register(failingSynthesizer{provider.NewMockSynthesizer("failing", 24000)}); err != nil {
		t.Fatalf("Failed to register failing synthesizer: %v", err)
	}
	handler := NewVoicesHandler(registry, nil)

	w, response := listVoices(t, handler, "/api/v1/voices")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	for _, v := range response.Voices {
		if v.Provider != "working" {
			t.Errorf("Unexpected voice from %s", v.Provider)
		}
	}
	if len(response.Voices) == 0 {
		t.Error("Expected voices from working provider")
	}

	w, _ = listVoices(t, handler, "/api/v1/voices?provider=failing")
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
}
