package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unalkalkan/narrator/internal/converter"
	"github.com/unalkalkan/narrator/internal/provider"
	"github.com/unalkalkan/narrator/pkg/types"
)

// openSynthesizer returns the mock synthesizer or the named provider from
// the configuration. The returned registry must be closed by the caller.
func openSynthesizer(mock bool, name string) (provider.Synthesizer, *provider.Registry, error) {
	registry := provider.NewRegistry()
	if mock {
		synth := provider.NewMockSynthesizer("mock", 24000)
		if err := registry.Register(synth); err != nil {
			return nil, nil, err
		}
		return synth, registry, nil
	}

	if err := registry.InitializeProviders(appConfig.Providers, logger); err != nil {
		registry.Close()
		return nil, nil, err
	}
	synth, err := registry.Get(name)
	if err != nil {
		registry.Close()
		return nil, nil, err
	}
	return synth, registry, nil
}

// offlineConverter builds a converter for commands that never synthesize
func offlineConverter(cfg types.ConversionConfig) (*converter.Converter, error) {
	return converter.New(cfg, provider.NewMockSynthesizer("mock", 24000),
		converter.WithLogger(logger),
		converter.WithCheckpoints(false),
	)
}

// parseChapterList reads "1,3,5" into chapter positions
func parseChapterList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid chapter format %q, use 1,2,3: %w", s, types.ErrInvalidInput)
		}
		out = append(out, n)
	}
	return out, nil
}
