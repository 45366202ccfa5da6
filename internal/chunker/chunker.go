// Package chunker packs extracted pages into token-bounded batches for the
// summarization model.
package chunker

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/tokens"
)

// Fallback text for pages with no usable extraction.
const (
	NoCaption = "No Caption detected"
	NoText    = "No text lines detected"
)

const pageSeparator = "\n\n"

// RenderPage serializes one page into the block used in prompts.
func RenderPage(p models.Page) string {
	caption := p.Caption
	if caption == "" {
		caption = NoCaption
	}
	text := p.OCRText
	if text == "" {
		text = NoText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Page %d\nCaption: %s\nText: %s", p.Index, caption, text)
	if p.SourceRef != "" {
		fmt.Fprintf(&b, "\nImage: %s", p.SourceRef)
	}
	return b.String()
}

// Chunk greedily groups consecutive pages while the summed token estimate of
// their rendered blocks stays within budget. A page that alone exceeds the
// budget gets its own chunk marked Oversized. Every page lands in exactly one
// chunk and order is preserved. The result depends only on the inputs.
func Chunk(pages []models.Page, budget int, estimate tokens.Estimator) ([]models.ContentChunk, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("token budget must be positive, got %d", budget)
	}
	if estimate == nil {
		estimate = tokens.Estimate
	}

	var (
		chunks  []models.ContentChunk
		current models.ContentChunk
		blocks  []string
	)
	flush := func() {
		if len(current.PageIndices) == 0 {
			return
		}
		current.Index = len(chunks)
		current.Body = strings.Join(blocks, pageSeparator)
		chunks = append(chunks, current)
		current = models.ContentChunk{}
		blocks = nil
	}

	for _, p := range pages {
		block := RenderPage(p)
		cost := estimate(block)

		if cost > budget {
			flush()
			current = models.ContentChunk{PageIndices: []int{p.Index}, Tokens: cost, Oversized: true}
			blocks = []string{block}
			flush()
			continue
		}
		if current.Tokens+cost > budget {
			flush()
		}
		current.PageIndices = append(current.PageIndices, p.Index)
		current.Tokens += cost
		blocks = append(blocks, block)
	}
	flush()

	return chunks, nil
}
