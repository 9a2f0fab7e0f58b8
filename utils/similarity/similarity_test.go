package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		s1   string
		s2   string
		min  float64
		max  float64
	}{
		{name: "identical", s1: "Breaking Bad", s2: "Breaking Bad", min: 1.0, max: 1.0},
		{name: "case and separators", s1: "breaking.bad", s2: "Breaking Bad", min: 1.0, max: 1.0},
		{name: "ampersand", s1: "Me & You", s2: "Me.and.You", min: 1.0, max: 1.0},
		{name: "diacritics", s1: "Amélie", s2: "Amelie", min: 1.0, max: 1.0},
		{name: "close", s1: "The Matrix", s2: "The Matrixx", min: 0.85, max: 0.99},
		{name: "different", s1: "Alpha", s2: "Beta", min: 0.0, max: 0.5},
		{name: "empty", s1: "", s2: "Alpha", min: 0.0, max: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.s1, tt.s2)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Alpha.2020.1080p.BluRay.x264-GRP", "Alpha 2020 1080p"))
	assert.True(t, Contains("Release: Alpha.2020.1080p.BluRay.en", "alpha.2020"))
	assert.False(t, Contains("Beta.2020.srt", "Alpha"))
	assert.False(t, Contains("", "Alpha"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alpha 2020 1080p bluray", Normalize("Alpha.2020.1080p-BluRay!"))
	assert.Equal(t, "me and you", Normalize("Me & You"))
	assert.Equal(t, "", Normalize("..."))
}
