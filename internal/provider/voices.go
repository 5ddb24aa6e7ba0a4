package provider

import (
	"strings"

	"github.com/unalkalkan/narrator/pkg/types"
)

// DefaultVoice is used when no voice is configured
const DefaultVoice = "af_heart"

type kokoroVoice struct {
	id          string
	lang        string // Kokoro language code
	description string
}

// Voice IDs follow [language][gender]_[name]
var kokoroVoices = []kokoroVoice{
	{"af_heart", "a", "American English Female - Heart (A grade)"},
	{"af_bella", "a", "American English Female - Bella (A- grade)"},
	{"af_nicole", "a", "American English Female - Nicole"},
	{"af_sarah", "a", "American English Female - Sarah"},
	{"af_sky", "a", "American English Female - Sky"},
	{"am_fenrir", "a", "American English Male - Fenrir"},
	{"am_michael", "a", "American English Male - Michael"},
	{"am_puck", "a", "American English Male - Puck"},
	{"am_adam", "a", "American English Male - Adam"},
	{"bf_emma", "b", "British English Female - Emma (B- grade)"},
	{"bf_isabella", "b", "British English Female - Isabella"},
	{"bf_alice", "b", "British English Female - Alice"},
	{"bm_george", "b", "British English Male - George"},
	{"bm_lewis", "b", "British English Male - Lewis"},
	{"bm_daniel", "b", "British English Male - Daniel"},
	{"ef_dora", "e", "Spanish Female - Dora"},
	{"em_alex", "e", "Spanish Male - Alex"},
	{"ff_siwis", "f", "French Female - Siwis (B- grade)"},
	{"jf_alpha", "j", "Japanese Female - Alpha"},
	{"jm_kumo", "j", "Japanese Male - Kumo"},
	{"zf_xiaobei", "z", "Chinese Female - Xiaobei"},
	{"zm_yunjian", "z", "Chinese Male - Yunjian"},
}

// LanguageNames maps Kokoro language codes to display names
var LanguageNames = map[string]string{
	"a": "American English",
	"b": "British English",
	"e": "Spanish",
	"f": "French",
	"j": "Japanese",
	"z": "Chinese",
	"h": "Hindi",
	"i": "Italian",
	"p": "Portuguese",
}

var isoLanguages = map[string]string{
	"a": "en",
	"b": "en",
	"e": "es",
	"f": "fr",
	"j": "ja",
	"z": "zh",
	"h": "hi",
	"i": "it",
	"p": "pt",
}

// Voices returns the built-in voices, optionally filtered by Kokoro
// language code. An empty code returns every voice.
func Voices(lang string) []types.Voice {
	voices := make([]types.Voice, 0, len(kokoroVoices))
	for _, v := range kokoroVoices {
		if lang != "" && v.lang != lang {
			continue
		}
		voices = append(voices, v.toVoice())
	}
	return voices
}

// VoiceLanguage returns the Kokoro language code for a voice. Unknown
// voices are inferred from their first letter, falling back to "a".
func VoiceLanguage(id string) string {
	for _, v := range kokoroVoices {
		if v.id == id {
			return v.lang
		}
	}
	if id != "" {
		if _, ok := LanguageNames[id[:1]]; ok {
			return id[:1]
		}
	}
	return "a"
}

// VoiceDescription returns the description of a built-in voice
func VoiceDescription(id string) (string, bool) {
	for _, v := range kokoroVoices {
		if v.id == id {
			return v.description, true
		}
	}
	return "", false
}

// ISOLanguage converts a Kokoro language code to ISO-639-1
func ISOLanguage(code string) string {
	if iso, ok := isoLanguages[code]; ok {
		return iso
	}
	return code
}

func (v kokoroVoice) toVoice() types.Voice {
	name := v.id
	if _, rest, ok := strings.Cut(v.id, "_"); ok && rest != "" {
		name = strings.ToUpper(rest[:1]) + rest[1:]
	}

	var gender string
	if len(v.id) > 1 {
		switch v.id[1] {
		case 'f':
			gender = "female"
		case 'm':
			gender = "male"
		}
	}

	var accent string
	switch v.lang {
	case "a":
		accent = "american"
	case "b":
		accent = "british"
	}

	return types.Voice{
		ID:          v.id,
		Name:        name,
		Languages:   []string{ISOLanguage(v.lang)},
		Gender:      gender,
		Accent:      accent,
		Description: v.description,
	}
}
