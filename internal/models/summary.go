package models

import "fmt"

// PageRange is an inclusive, 1-based span of pages.
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

func (r PageRange) String() string {
	if r.First == r.Last {
		return fmt.Sprintf("page %d", r.First)
	}
	return fmt.Sprintf("pages %d-%d", r.First, r.Last)
}

// Len returns the number of pages the range spans.
func (r PageRange) Len() int {
	if r.Last < r.First {
		return 0
	}
	return r.Last - r.First + 1
}

// ContentChunk is a token-bounded run of consecutive pages sent to the
// summarization model in one call.
type ContentChunk struct {
	Index       int
	PageIndices []int
	Tokens      int
	Body        string
	Oversized   bool
}

// Range returns the first and last page of the chunk.
func (c ContentChunk) Range() PageRange {
	if len(c.PageIndices) == 0 {
		return PageRange{}
	}
	return PageRange{First: c.PageIndices[0], Last: c.PageIndices[len(c.PageIndices)-1]}
}

// ChunkStatus is the outcome of summarizing one chunk.
type ChunkStatus string

const (
	ChunkOK     ChunkStatus = "ok"
	ChunkFailed ChunkStatus = "failed"
)

// PartialSummary is the structured output for one ContentChunk.
type PartialSummary struct {
	ChunkIndex int         `json:"chunkIndex"`
	Pages      PageRange   `json:"pages"`
	Summary    string      `json:"summary"`
	KeyFacts   []string    `json:"keyFacts,omitempty"`
	Entities   []string    `json:"entities,omitempty"`
	Status     ChunkStatus `json:"status"`
	Attempts   int         `json:"attempts"`
	Detail     string      `json:"detail,omitempty"`
}

// Finding is one ordered section of the final summary.
type Finding struct {
	Pages    PageRange `json:"pages"`
	Summary  string    `json:"summary"`
	KeyFacts []string  `json:"keyFacts,omitempty"`
}

// FailedRange records a span of pages that produced no summary and why.
type FailedRange struct {
	Pages  PageRange `json:"pages"`
	Reason string    `json:"reason"`
}

// FinalSummary is the merged artifact handed back to callers.
type FinalSummary struct {
	DocumentID        string         `json:"documentId"`
	Status            DocumentStatus `json:"status"`
	PageCount         int            `json:"pageCount"`
	OriginalPageCount int            `json:"originalPageCount,omitempty"`
	Truncated         bool           `json:"truncated,omitempty"`
	Findings          []Finding      `json:"findings"`
	Entities          []string       `json:"entities"`
	Covered           []PageRange    `json:"covered"`
	FailedRanges      []FailedRange  `json:"failedRanges"`
	PartialPages      []int          `json:"partialPages,omitempty"`
	FailedPages       []int          `json:"failedPages,omitempty"`
	Digest            string         `json:"digest,omitempty"`
}
