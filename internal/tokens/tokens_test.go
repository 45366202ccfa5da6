package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
	// 10 words -> 13, no punctuation.
	assert.Equal(t, 13, Estimate("one two three four five six seven eight nine ten"))
	// 2 words -> 2, 4 punctuation runes -> 2.
	assert.Equal(t, 4, Estimate("hello, world!!!"))
}

func TestEstimate_Deterministic(t *testing.T) {
	text := "Quarterly revenue rose 12%, driven by services; margins held."
	first := Estimate(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Estimate(text))
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, 3, Words()("a b\n c"))
}
