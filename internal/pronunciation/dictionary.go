// Package pronunciation loads custom pronunciation dictionaries and applies
// them to text before synthesis.
//
// A dictionary file is YAML (.yaml, .yml) or TOML (.toml) with four optional
// collections:
//
//	version: 1
//	language: en
//	words:         {Nguyen: win}
//	abbreviations: {"Dr.": Doctor}
//	acronyms:      {FBI: "F. B. I."}
//	patterns:
//	  - pattern: '(\d+)km'
//	    replacement: '$1 kilometers'
package pronunciation

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/unalkalkan/narrator/pkg/types"
)

// CurrentVersion is the dictionary schema version written by this package
const CurrentVersion = 1

// Pattern is a regex rule applied before the literal tiers
type Pattern struct {
	Pattern     string `yaml:"pattern" toml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" toml:"replacement" json:"replacement"`
}

// Dictionary holds user supplied replacements
type Dictionary struct {
	Version       int               `yaml:"version" toml:"version" json:"version"`
	Language      string            `yaml:"language" toml:"language" json:"language"`
	Words         map[string]string `yaml:"words" toml:"words" json:"words"`
	Abbreviations map[string]string `yaml:"abbreviations" toml:"abbreviations" json:"abbreviations"`
	Acronyms      map[string]string `yaml:"acronyms" toml:"acronyms" json:"acronyms"`
	Patterns      []Pattern         `yaml:"patterns" toml:"patterns" json:"patterns"`
}

// fileDocument mirrors the on-disk layout. Patterns stay loosely typed so
// malformed entries can be skipped instead of failing the whole file.
type fileDocument struct {
	Version       int               `yaml:"version" toml:"version"`
	Language      string            `yaml:"language" toml:"language"`
	Words         map[string]string `yaml:"words" toml:"words"`
	Abbreviations map[string]string `yaml:"abbreviations" toml:"abbreviations"`
	Acronyms      map[string]string `yaml:"acronyms" toml:"acronyms"`
	Patterns      []any             `yaml:"patterns" toml:"patterns"`
}

// Load reads a dictionary file
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("pronunciation dictionary not found: %s: %w", path, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read pronunciation dictionary: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty pronunciation dictionary: %s: %w", path, types.ErrInvalidInput)
	}

	var doc fileDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, &doc)
	default:
		err = decodeYAML(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return doc.dictionary(), nil
}

func decodeYAML(data []byte, doc *fileDocument) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse dictionary YAML: %v: %w", err, types.ErrInvalidInput)
	}
	if raw == nil {
		return fmt.Errorf("empty pronunciation dictionary: %w", types.ErrInvalidInput)
	}
	if _, ok := raw.(map[string]any); !ok {
		return fmt.Errorf("invalid dictionary format: expected mapping, got %T: %w", raw, types.ErrInvalidInput)
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("invalid dictionary structure: %v: %w", err, types.ErrInvalidInput)
	}
	return nil
}

func decodeTOML(data []byte, doc *fileDocument) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse dictionary TOML: %v: %w", err, types.ErrInvalidInput)
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty pronunciation dictionary: %w", types.ErrInvalidInput)
	}
	if err := toml.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("invalid dictionary structure: %v: %w", err, types.ErrInvalidInput)
	}
	return nil
}

func (doc *fileDocument) dictionary() *Dictionary {
	d := &Dictionary{
		Version:       doc.Version,
		Language:      doc.Language,
		Words:         nonNil(doc.Words),
		Abbreviations: nonNil(doc.Abbreviations),
		Acronyms:      nonNil(doc.Acronyms),
	}
	if d.Version == 0 {
		d.Version = CurrentVersion
	}
	if d.Language == "" {
		d.Language = "en"
	}

	for _, item := range doc.Patterns {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pattern, okPattern := entry["pattern"].(string)
		replacement, okReplacement := entry["replacement"].(string)
		if !okPattern || !okReplacement {
			continue
		}
		d.Patterns = append(d.Patterns, Pattern{Pattern: pattern, Replacement: replacement})
	}
	return d
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Merge combines two dictionaries. Keys in override win; patterns run base
// first, then override.
func Merge(base, override *Dictionary) *Dictionary {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &Dictionary{
		Version:       override.Version,
		Language:      override.Language,
		Words:         mergeMaps(base.Words, override.Words),
		Abbreviations: mergeMaps(base.Abbreviations, override.Abbreviations),
		Acronyms:      mergeMaps(base.Acronyms, override.Acronyms),
	}
	merged.Patterns = append(merged.Patterns, base.Patterns...)
	merged.Patterns = append(merged.Patterns, override.Patterns...)
	return merged
}

func mergeMaps(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// LoadWithBase loads path and layers it over basePath. An empty path yields
// a nil dictionary; an empty basePath skips merging.
func LoadWithBase(path, basePath string) (*Dictionary, error) {
	if path == "" {
		return nil, nil
	}

	custom, err := Load(path)
	if err != nil {
		return nil, err
	}
	if basePath == "" {
		return custom, nil
	}

	base, err := Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load base dictionary: %w", err)
	}
	return Merge(base, custom), nil
}

// Apply runs every tier over text: patterns, acronyms, abbreviations, words
func (d *Dictionary) Apply(text string) string {
	if d == nil {
		return text
	}
	text = d.ApplyPatterns(text)
	text = replaceLiterals(text, d.Acronyms, true)
	text = replaceLiterals(text, d.Abbreviations, false)
	text = replaceLiterals(text, d.Words, true)
	return text
}

// ApplyPatterns applies the regex rules in order. Invalid expressions are
// skipped. Replacements accept Go ($1) or backslash (\1) group references.
func (d *Dictionary) ApplyPatterns(text string) string {
	for _, p := range d.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, backrefPattern.ReplaceAllString(p.Replacement, `$${$1}`))
	}
	return text
}

var backrefPattern = regexp.MustCompile(`\\(\d+)`)

// String summarizes the dictionary
func (d *Dictionary) String() string {
	return fmt.Sprintf("Dictionary(language=%s, words=%d, abbreviations=%d, acronyms=%d, patterns=%d)",
		d.Language, len(d.Words), len(d.Abbreviations), len(d.Acronyms), len(d.Patterns))
}

// replaceLiterals substitutes each key, longest first. The leading edge of a
// key must sit on a word boundary; wholeWord also requires the trailing edge.
func replaceLiterals(text string, table map[string]string, wholeWord bool) string {
	for _, key := range LongestFirst(table) {
		text = ReplaceBounded(text, key, table[key], wholeWord)
	}
	return text
}
