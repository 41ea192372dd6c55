package store

import (
	"strings"
	"unicode"
)

// minTokenLength filters out single-rune noise like "a" or "I".
const minTokenLength = 2

// Tokenize lowercases text and splits it on any non-alphanumeric rune.
// Duplicates are preserved so callers can compute term frequencies.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// termFrequencies counts occurrences of each token.
func termFrequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}
