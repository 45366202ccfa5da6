package chunker

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sizedEstimator charges each page block a fixed cost keyed by page index.
func sizedEstimator(sizes map[int]int) tokens.Estimator {
	return func(block string) int {
		var idx int
		if _, err := fmt.Sscanf(block, "Page %d", &idx); err != nil {
			return 0
		}
		return sizes[idx]
	}
}

func makePages(n int) []models.Page {
	pages := make([]models.Page, n)
	for i := range pages {
		pages[i] = models.Page{
			Index:   i + 1,
			OCRText: fmt.Sprintf("text of page %d", i+1),
			Caption: fmt.Sprintf("caption of page %d", i+1),
			Status:  models.PageOK,
		}
	}
	return pages
}

func uniform(n, cost int) map[int]int {
	sizes := make(map[int]int, n)
	for i := 1; i <= n; i++ {
		sizes[i] = cost
	}
	return sizes
}

func TestChunk_TwoPagesPerChunk(t *testing.T) {
	chunks, err := Chunk(makePages(5), 20, sizedEstimator(uniform(5, 10)))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, []int{1, 2}, chunks[0].PageIndices)
	assert.Equal(t, []int{3, 4}, chunks[1].PageIndices)
	assert.Equal(t, []int{5}, chunks[2].PageIndices)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.False(t, c.Oversized)
		assert.LessOrEqual(t, c.Tokens, 20)
	}
	assert.Contains(t, chunks[1].Body, "Page 3")
	assert.Contains(t, chunks[1].Body, "Page 4")
	assert.NotContains(t, chunks[1].Body, "Page 5")
}

func TestChunk_OversizedPageStandsAlone(t *testing.T) {
	sizes := map[int]int{1: 5, 2: 50, 3: 5, 4: 5}
	chunks, err := Chunk(makePages(4), 20, sizedEstimator(sizes))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, []int{1}, chunks[0].PageIndices)
	assert.Equal(t, []int{2}, chunks[1].PageIndices)
	assert.True(t, chunks[1].Oversized)
	assert.Equal(t, 50, chunks[1].Tokens)
	assert.Equal(t, []int{3, 4}, chunks[2].PageIndices)
	assert.False(t, chunks[2].Oversized)
}

func TestChunk_ExactFitStaysInChunk(t *testing.T) {
	sizes := map[int]int{1: 12, 2: 8, 3: 1}
	chunks, err := Chunk(makePages(3), 20, sizedEstimator(sizes))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []int{1, 2}, chunks[0].PageIndices)
	assert.Equal(t, 20, chunks[0].Tokens)
	assert.Equal(t, []int{3}, chunks[1].PageIndices)
}

func TestChunk_CoversEveryPageOnceAndIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(40)
		budget := 5 + rng.Intn(60)
		sizes := make(map[int]int, n)
		for i := 1; i <= n; i++ {
			sizes[i] = 1 + rng.Intn(80)
		}
		pages := makePages(n)

		first, err := Chunk(pages, budget, sizedEstimator(sizes))
		require.NoError(t, err)
		second, err := Chunk(pages, budget, sizedEstimator(sizes))
		require.NoError(t, err)
		assert.Equal(t, first, second)

		var seen []int
		for _, c := range first {
			seen = append(seen, c.PageIndices...)
			if len(c.PageIndices) > 1 || !c.Oversized {
				assert.LessOrEqual(t, c.Tokens, budget)
			}
			if c.Oversized {
				assert.Len(t, c.PageIndices, 1)
				assert.Greater(t, c.Tokens, budget)
			}
		}
		expected := make([]int, n)
		for i := range expected {
			expected[i] = i + 1
		}
		assert.Equal(t, expected, seen)
	}
}

func TestChunk_InvalidBudget(t *testing.T) {
	_, err := Chunk(makePages(1), 0, nil)
	assert.Error(t, err)
}

func TestChunk_NoPages(t *testing.T) {
	chunks, err := Chunk(nil, 100, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRenderPage_Fallbacks(t *testing.T) {
	block := RenderPage(models.Page{Index: 2, Status: models.PagePartial, SourceRef: "gs://bucket/doc.pdf#page=2"})
	assert.Equal(t, "Page 2\nCaption: No Caption detected\nText: No text lines detected\nImage: gs://bucket/doc.pdf#page=2", block)
}
