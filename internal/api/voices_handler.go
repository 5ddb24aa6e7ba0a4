package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/unalkalkan/narrator/internal/provider"
	"github.com/unalkalkan/narrator/pkg/types"
)

// VoicesHandler handles TTS voice-related API endpoints
type VoicesHandler struct {
	providerReg *provider.Registry
	logger      *slog.Logger
}

// NewVoicesHandler creates a new voices handler
func NewVoicesHandler(providerReg *provider.Registry, logger *slog.Logger) *VoicesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoicesHandler{
		providerReg: providerReg,
		logger:      logger.With("component", "api"),
	}
}

// VoiceResponse represents a voice in the API response
type VoiceResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Languages   []string `json:"languages"`
	Gender      string   `json:"gender,omitempty"`
	Accent      string   `json:"accent,omitempty"`
	Description string   `json:"description,omitempty"`
	Provider    string   `json:"provider"`
}

// ListVoices handles GET /api/v1/voices. Synthesizers that cannot list
// their voices report the built-in Kokoro table.
func (h *VoicesHandler) ListVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Get optional query parameters
	providerName := r.URL.Query().Get("provider")
	language := r.URL.Query().Get("language")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	allVoices := make([]VoiceResponse, 0)

	if providerName != "" {
		synth, err := h.providerReg.Get(providerName)
		if err != nil {
			respondError(w, fmt.Sprintf("Provider '%s' not found", providerName), http.StatusNotFound)
			return
		}

		voices, err := voicesOf(ctx, synth)
		if err != nil {
			h.logger.Error("failed to list voices", "provider", providerName, "error", err)
			respondError(w, fmt.Sprintf("Failed to get voices from provider: %v", err), http.StatusBadGateway)
			return
		}
		allVoices = appendVoices(allVoices, voices, providerName, language)
	} else {
		names := h.providerReg.List()
		if len(names) == 0 {
			respondError(w, "No TTS providers configured", http.StatusServiceUnavailable)
			return
		}

		for _, name := range names {
			synth, err := h.providerReg.Get(name)
			if err != nil {
				continue
			}
			voices, err := voicesOf(ctx, synth)
			if err != nil {
				// Continue with other providers instead of failing completely
				h.logger.Warn("failed to list voices", "provider", name, "error", err)
				continue
			}
			allVoices = appendVoices(allVoices, voices, name, language)
		}
	}

	respondJSON(w, map[string]interface{}{
		"voices": allVoices,
		"count":  len(allVoices),
	}, http.StatusOK)
}

func voicesOf(ctx context.Context, synth provider.Synthesizer) ([]types.Voice, error) {
	if lister, ok := synth.(provider.VoiceLister); ok {
		return lister.ListVoices(ctx)
	}
	return provider.Voices(""), nil
}

// appendVoices adds voices speaking language (ISO-639-1, empty for any)
func appendVoices(out []VoiceResponse, voices []types.Voice, providerName, language string) []VoiceResponse {
	for _, v := range voices {
		if language != "" && !speaks(v, language) {
			continue
		}
		out = append(out, VoiceResponse{
			ID:          v.ID,
			Name:        v.Name,
			Languages:   v.Languages,
			Gender:      v.Gender,
			Accent:      v.Accent,
			Description: v.Description,
			Provider:    providerName,
		})
	}
	return out
}

func speaks(v types.Voice, language string) bool {
	for _, l := range v.Languages {
		if l == language {
			return true
		}
	}
	return false
}
