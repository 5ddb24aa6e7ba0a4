package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unalkalkan/narrator/internal/pronunciation"
	"github.com/unalkalkan/narrator/pkg/types"
)

func TestFixLigaturesAndEncoding(t *testing.T) {
	assert.Equal(t, "office fluffy first", FixLigatures("o\ufb03ce \ufb02u\ufb00y \ufb01rst"))
	assert.Equal(t, `"Wait" - he said... it's fine`,
		FixEncoding("\u201cWait\u201d\u2014he said\u2026 it\u2019s fine\u00ad\ufeff"))
	assert.Equal(t, "a b\nc", FixEncoding("a\u00a0b\r\nc"))
}

func TestRejoinHyphenated(t *testing.T) {
	assert.Equal(t, "an extraordinary day", RejoinHyphenated("an extra-\nordinary day"))
	assert.Equal(t, "an extraordinary day", RejoinHyphenated("an extra- \n  ordinary day"))
	// Without a line break the hyphen is a real one
	assert.Equal(t, "well-known", RejoinHyphenated("well-known"))
	assert.Equal(t, "señorío", RejoinHyphenated("seño-\nrío"))
}

func TestRemovePageArtifacts(t *testing.T) {
	in := "First line\n42\n  Page 7  \n-----\n=====\n__\nLast line"
	assert.Equal(t, "First line\n__\nLast line", RemovePageArtifacts(in))
}

func TestExpandAbbreviations(t *testing.T) {
	assert.Equal(t, "Doctor Smith and Mister Jones, that is friends",
		ExpandAbbreviations("Dr. Smith and Mr. Jones, i.e. friends", LanguageEnglish))
	assert.Equal(t, "La Doctora García y el Señor Pérez",
		ExpandAbbreviations("La Dra. García y el Sr. Pérez", LanguageSpanish))
	// Sept. must win over Sep.
	assert.Equal(t, "September 5", ExpandAbbreviations("Sept. 5", LanguageEnglish))
	// Unknown falls back to English
	assert.Equal(t, "Senior", ExpandAbbreviations("Sr.", LanguageUnknown))
}

func TestNormalizeNumbers(t *testing.T) {
	assert.Equal(t, "costs $ 5 or € 7", NormalizeNumbers("costs $5 or €7"))
	assert.Equal(t, "call 555, 123, 4567", NormalizeNumbers("call 555-123-4567"))
}

func TestNormalizePunctuation(t *testing.T) {
	assert.Equal(t, "Wait... What! Really? Yes. no", NormalizePunctuation("Wait.....What!!! Really??? Yes; no"))
	assert.Equal(t, "a (b) c", NormalizePunctuation("a(  b  )c"))
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  one\nline\n\n\n\ntwo \t words  \n\n  three\n"
	assert.Equal(t, "one line\n\ntwo words\n\nthree", NormalizeWhitespace(in))
}

func TestProcess_FullPipeline(t *testing.T) {
	raw := "Chapter 1\n\nThe \ufb01rst time Dr. Nguyen met the FBI was in an extra-\nordinary\nplace.\n\n12\n\nIt cost $40; it was worth it!!"
	dict := &pronunciation.Dictionary{
		Words:    map[string]string{"Nguyen": "win"},
		Acronyms: map[string]string{"FBI": "F. B. I."},
	}

	p := NewPreprocessor(WithDictionary(dict))
	out := p.Process(raw)

	assert.Equal(t, LanguageEnglish, p.DetectedLanguage())
	assert.Equal(t,
		"Chapter 1\n\nThe first time Doctor win met the F. B. I. was in an extraordinary place.\n\nIt cost $ 40. it was worth it!",
		out)
}

func TestProcess_ForcedLanguage(t *testing.T) {
	p := NewPreprocessor(WithLanguage(LanguageSpanish))
	out := p.Process("Sr. Smith went home")

	assert.Equal(t, LanguageSpanish, p.DetectedLanguage())
	assert.Equal(t, "Señor Smith went home", out)
}

func TestProcessChapters_RebuildsSpans(t *testing.T) {
	front := "Title Page\n\n"
	ch1 := "Chapter 1\n\nIt was a dark\nand stormy night.\n\n\n\n"
	ch2 := "Chapter 2\n\nThe   morning came.\n"
	full := front + ch1 + ch2

	chapters := []types.Chapter{
		{Title: "Chapter 1", StartChar: len(front), EndChar: types.IntPtr(len(front) + len(ch1))},
		{Title: "Chapter 2", StartChar: len(front) + len(ch1), EndChar: types.IntPtr(len(full))},
	}

	p := NewPreprocessor()
	out, rebuilt := p.ProcessChapters(full, chapters)

	assert.Equal(t, "Title Page\n\nChapter 1\n\nIt was a dark and stormy night.\n\nChapter 2\n\nThe morning came.", out)
	require.Len(t, rebuilt, 2)
	assert.Equal(t, "Chapter 1\n\nIt was a dark and stormy night.", rebuilt[0].Text(out))
	assert.Equal(t, "Chapter 2\n\nThe morning came.", rebuilt[1].Text(out))
	assert.Equal(t, len(out), *rebuilt[1].EndChar)
	assert.Equal(t, LanguageEnglish, p.DetectedLanguage())

	// Original chapters are not modified
	assert.Equal(t, len(front), chapters[0].StartChar)
}

func TestProcessChapters_NoChapters(t *testing.T) {
	out, rebuilt := NewPreprocessor().ProcessChapters("a\nb", nil)
	assert.Equal(t, "a b", out)
	assert.Nil(t, rebuilt)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "The cat sat on the mat and it was happy with the day", LanguageEnglish},
		{"spanish", "El perro de la casa es muy grande y no come más que pan", LanguageSpanish},
		{"too short", "the and of", LanguageUnknown},
		{"no markers", "Lorem ipsum dolor sit amet consectetur adipiscing", LanguageUnknown},
		{"empty", "", LanguageUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestDetectLanguage_AccentedMarkers(t *testing.T) {
	text := strings.Repeat("sí más ", 5)
	assert.Equal(t, LanguageSpanish, DetectLanguage(text))
}
