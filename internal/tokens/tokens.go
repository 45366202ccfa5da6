// Package tokens estimates model token counts without a tokenizer.
package tokens

import (
	"strings"
	"unicode"
)

// Estimator returns the approximate number of tokens in text.
type Estimator func(text string) int

// Estimate approximates token count as ~1.3 tokens per word plus one token for
// every two punctuation runes. It is deterministic, which the chunker relies on.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	wordCount := len(strings.Fields(text))

	punctCount := 0
	for _, r := range text {
		if unicode.IsPunct(r) {
			punctCount++
		}
	}

	return int(float64(wordCount)*1.3) + punctCount/2
}

// Words returns an Estimator that counts whitespace-separated words only.
// Useful when a budget is expressed in words.
func Words() Estimator {
	return func(text string) int {
		return len(strings.Fields(text))
	}
}
