package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "simple sentence",
			text:     "Remind me about the meeting",
			expected: []string{"remind", "me", "about", "the", "meeting"},
		},
		{
			name:     "punctuation and case",
			text:     "What's the Wi-Fi password?",
			expected: []string{"what", "the", "wi", "fi", "password"},
		},
		{
			name:     "single-rune tokens dropped",
			text:     "a b c word",
			expected: []string{"word"},
		},
		{
			name:     "duplicates preserved",
			text:     "test test test",
			expected: []string{"test", "test", "test"},
		},
		{
			name:     "digits kept",
			text:     "order 42 confirmed",
			expected: []string{"order", "42", "confirmed"},
		},
		{
			name:     "empty input",
			text:     "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.text)
			if len(tt.expected) == 0 {
				assert.Empty(t, tokens)
				return
			}
			assert.Equal(t, tt.expected, tokens)
		})
	}
}

func TestTermFrequencies(t *testing.T) {
	freq := termFrequencies([]string{"alpha", "beta", "alpha", "alpha"})
	assert.Equal(t, map[string]int{"alpha": 3, "beta": 1}, freq)
}
