package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/unalkalkan/narrator/pkg/types"
)

// Provider types accepted in configuration
const (
	TypeMock   = "mock"
	TypeOpenAI = "openai"
)

// Registry manages synthesizer instances
type Registry struct {
	synthesizers map[string]Synthesizer
	defaultName  string
	mu           sync.RWMutex
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		synthesizers: make(map[string]Synthesizer),
	}
}

// Register adds a synthesizer. The first one registered becomes the default.
func (r *Registry) Register(s Synthesizer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.synthesizers[name]; exists {
		return fmt.Errorf("TTS provider already registered: %s", name)
	}

	r.synthesizers[name] = s
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// SetDefault selects the synthesizer returned for an empty name
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.synthesizers[name]; !exists {
		return fmt.Errorf("TTS provider %s: %w", name, types.ErrNotFound)
	}
	r.defaultName = name
	return nil
}

// Get retrieves a synthesizer by name. An empty name means the default.
func (r *Registry) Get(name string) (Synthesizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	s, exists := r.synthesizers[name]
	if !exists {
		return nil, fmt.Errorf("TTS provider %q: %w", name, types.ErrNotFound)
	}
	return s, nil
}

// List returns all registered synthesizer names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.synthesizers))
	for name := range r.synthesizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes all registered synthesizers
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, s := range r.synthesizers {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close TTS provider %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// New builds a synthesizer from its configuration
func New(cfg types.TTSProviderConfig, logger *slog.Logger) (Synthesizer, error) {
	switch cfg.Type {
	case TypeMock:
		return NewMockSynthesizer(cfg.Name, cfg.SampleRate), nil
	case TypeOpenAI, "":
		return NewOpenAISynthesizer(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown TTS provider type %q: %w", cfg.Type, types.ErrInvalidInput)
	}
}

// InitializeProviders creates synthesizers for every enabled entry
func (r *Registry) InitializeProviders(cfg types.ProvidersConfig, logger *slog.Logger) error {
	for _, ttsCfg := range cfg.TTS {
		if !ttsCfg.Enabled {
			continue
		}
		s, err := New(ttsCfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create TTS provider %s: %w", ttsCfg.Name, err)
		}
		if err := r.Register(s); err != nil {
			return err
		}
	}

	if cfg.Default != "" {
		return r.SetDefault(cfg.Default)
	}
	return nil
}
