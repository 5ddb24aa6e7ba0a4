package chapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unalkalkan/narrator/pkg/types"
)

func TestRomanToInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"I", 1, true},
		{"iv", 4, true},
		{"IX", 9, true},
		{"XIV", 14, true},
		{"XL", 40, true},
		{"MCMXCIV", 1994, true},
		{"", 0, false},
		{"ABC", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := RomanToInt(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeNumber(t *testing.T) {
	n, ok := NormalizeNumber(" 12 ")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = NormalizeNumber("VII")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = NormalizeNumber("seven")
	assert.False(t, ok)
}

func TestFindByNumber(t *testing.T) {
	chapters := []types.Chapter{
		{Title: "Prologue"},
		{Title: "Chapter I: Arrival"},
		{Title: "Chapter 3: The Storm"},
		{Title: "Chapter IV"},
		{Title: "Chapter 3 (reprise)"},
	}

	ch, ok := FindByNumber(chapters, 3)
	require.True(t, ok)
	assert.Equal(t, "Chapter 3: The Storm", ch.Title)

	ch, ok = FindByNumber(chapters, 4)
	require.True(t, ok)
	assert.Equal(t, "Chapter IV", ch.Title)

	// No chapter is titled with 2 even though one sits at position 2
	_, ok = FindByNumber(chapters, 2)
	assert.False(t, ok)
}

func TestTitleNumber(t *testing.T) {
	tests := []struct {
		title string
		want  int
		ok    bool
	}{
		{"Chapter 12", 12, true},
		{"Chapter XIV: Home", 14, true},
		{"Part 2, Chapter 5", 2, true},
		{"Prologue", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			n, ok := TitleNumber(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}
