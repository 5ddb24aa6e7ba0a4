package pronunciation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unalkalkan/narrator/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApply_DoctorNguyenMeetsFBI(t *testing.T) {
	d := &Dictionary{
		Words:         map[string]string{"Nguyen": "win"},
		Abbreviations: map[string]string{"Dr.": "Doctor"},
		Acronyms:      map[string]string{"FBI": "F. B. I."},
	}

	assert.Equal(t, "Doctor win met the F. B. I.", d.Apply("Dr. Nguyen met the FBI"))
}

func TestApply_TierOrder(t *testing.T) {
	// Patterns run first, so the acronym tier sees their output
	d := &Dictionary{
		Patterns: []Pattern{{Pattern: `N\.A\.S\.A\.`, Replacement: "NASA"}},
		Acronyms: map[string]string{"NASA": "nasa"},
	}
	assert.Equal(t, "the nasa launch", d.Apply("the N.A.S.A. launch"))
}

func TestApply_LongestFirst(t *testing.T) {
	d := &Dictionary{
		Acronyms: map[string]string{"US": "U. S.", "USA": "U. S. A."},
	}
	assert.Equal(t, "U. S. A. and U. S.", d.Apply("USA and US"))
}

func TestApply_WholeWordCaseSensitive(t *testing.T) {
	d := &Dictionary{Words: map[string]string{"read": "red"}}

	assert.Equal(t, "I red it", d.Apply("I read it"))
	assert.Equal(t, "I Read it", d.Apply("I Read it"))
	assert.Equal(t, "reader readings", d.Apply("reader readings"))
}

func TestApply_UnicodeBoundaries(t *testing.T) {
	d := &Dictionary{Words: map[string]string{"está": "esta"}}

	assert.Equal(t, "esta bien", d.Apply("está bien"))
	assert.Equal(t, "estás", d.Apply("estás"))
}

func TestApply_AbbreviationLeadingBoundaryOnly(t *testing.T) {
	d := &Dictionary{Abbreviations: map[string]string{"approx": "approximately"}}

	assert.Equal(t, "approximately. 5", d.Apply("approx. 5"))
	assert.Equal(t, "approximatelyimate", d.Apply("approximate"))
	assert.Equal(t, "reapprox", d.Apply("reapprox"))
}

func TestApplyPatterns_InvalidSkipped(t *testing.T) {
	d := &Dictionary{
		Patterns: []Pattern{
			{Pattern: `([`, Replacement: "broken"},
			{Pattern: `(\d+)km`, Replacement: `\1 kilometers`},
			{Pattern: `(\d+)kg`, Replacement: `$1 kilograms`},
		},
	}

	assert.Equal(t, "5 kilometers and 3 kilograms", d.Apply("5km and 3kg"))
}

func TestApply_NilDictionary(t *testing.T) {
	var d *Dictionary
	assert.Equal(t, "unchanged", d.Apply("unchanged"))
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "dict.yaml", `
version: 1
language: es
words:
  Nguyen: win
acronyms:
  FBI: "F. B. I."
patterns:
  - pattern: '(\d+)km'
    replacement: '$1 kilometers'
  - pattern: 'missing replacement'
  - just a string
`)

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Version)
	assert.Equal(t, "es", d.Language)
	assert.Equal(t, "win", d.Words["Nguyen"])
	assert.Equal(t, "F. B. I.", d.Acronyms["FBI"])
	assert.Empty(t, d.Abbreviations)
	require.Len(t, d.Patterns, 1)
	assert.Equal(t, `(\d+)km`, d.Patterns[0].Pattern)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "dict.toml", `
version = 1
language = "en"

[abbreviations]
"Dr." = "Doctor"

[[patterns]]
pattern = '(\d+)mph'
replacement = '$1 miles per hour'
`)

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Doctor", d.Abbreviations["Dr."])
	assert.Empty(t, d.Words)
	require.Len(t, d.Patterns, 1)
	assert.Equal(t, "Doctor drove 60 miles per hour", d.Apply("Dr. drove 60mph"))
}

func TestLoad_Defaults(t *testing.T) {
	d, err := Load(writeFile(t, "dict.yml", "words:\n  GIF: jif\n"))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, d.Version)
	assert.Equal(t, "en", d.Language)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"empty file", "empty.yaml", "  \n", types.ErrInvalidInput},
		{"null document", "null.yaml", "~\n", types.ErrInvalidInput},
		{"list at top level", "list.yaml", "- a\n- b\n", types.ErrInvalidInput},
		{"scalar at top level", "scalar.yaml", "hello\n", types.ErrInvalidInput},
		{"broken yaml", "broken.yaml", "words: [unclosed\n", types.ErrInvalidInput},
		{"broken toml", "broken.toml", "words = \n", types.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMerge(t *testing.T) {
	base := &Dictionary{
		Version:  1,
		Language: "en",
		Words:    map[string]string{"Nguyen": "new-en", "Siobhan": "shi-vawn"},
		Patterns: []Pattern{{Pattern: "a", Replacement: "b"}},
	}
	override := &Dictionary{
		Version:  1,
		Language: "es",
		Words:    map[string]string{"Nguyen": "win"},
		Acronyms: map[string]string{"ONU": "O. N. U."},
		Patterns: []Pattern{{Pattern: "c", Replacement: "d"}},
	}

	merged := Merge(base, override)
	assert.Equal(t, "es", merged.Language)
	assert.Equal(t, "win", merged.Words["Nguyen"])
	assert.Equal(t, "shi-vawn", merged.Words["Siobhan"])
	assert.Equal(t, "O. N. U.", merged.Acronyms["ONU"])
	assert.Equal(t, []Pattern{{"a", "b"}, {"c", "d"}}, merged.Patterns)

	// Inputs are left untouched
	assert.Equal(t, "new-en", base.Words["Nguyen"])
	assert.Same(t, override, Merge(nil, override))
}

func TestLoadWithBase(t *testing.T) {
	basePath := writeFile(t, "base.yaml", "words:\n  Nguyen: new\n  Siobhan: shi-vawn\n")
	customPath := writeFile(t, "custom.yaml", "words:\n  Nguyen: win\n")

	d, err := LoadWithBase(customPath, basePath)
	require.NoError(t, err)
	assert.Equal(t, "win", d.Words["Nguyen"])
	assert.Equal(t, "shi-vawn", d.Words["Siobhan"])

	d, err = LoadWithBase("", basePath)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = LoadWithBase(customPath, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLongestFirst(t *testing.T) {
	keys := LongestFirst(map[string]string{"b": "", "aa": "", "a": "", "ccc": "", "": ""})
	assert.Equal(t, []string{"ccc", "aa", "a", "b"}, keys)
}
