// Package summarizer drives the summary model over content chunks in page
// order, threading a bounded running digest from one chunk to the next.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/retry"
)

// Model summarizes one chunk prompt.
type Model interface {
	Summarize(ctx context.Context, p Prompt) (Draft, error)
}

// Orchestrator runs the sequential summarization loop.
type Orchestrator struct {
	model     Model
	policy    retry.Policy
	digestMax int
	logger    *slog.Logger
}

// RunResult holds one PartialSummary per chunk, in chunk order, and the
// digest after the last successful chunk.
type RunResult struct {
	Partials []models.PartialSummary
	Digest   string
}

// NewOrchestrator creates an Orchestrator. digestMax bounds the running
// digest in sentences.
func NewOrchestrator(model Model, policy retry.Policy, digestMax int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if digestMax <= 0 {
		digestMax = 8
	}
	return &Orchestrator{model: model, policy: policy, digestMax: digestMax, logger: logger}
}

// Run summarizes chunks strictly in order. A chunk that is rejected or runs
// out of retries is recorded as failed and the loop continues with the last
// good digest. Cancellation stops before the next chunk; the remaining chunks
// are recorded as failed and the context error is returned.
func (o *Orchestrator) Run(ctx context.Context, chunks []models.ContentChunk, digest string) (*RunResult, error) {
	res := &RunResult{Partials: make([]models.PartialSummary, 0, len(chunks)), Digest: digest}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			o.cancelRemaining(res, chunks[i:], err)
			return res, err
		}

		logCtx := o.logger.With("chunkIndex", chunk.Index, "pages", chunk.Range().String())
		prompt := Prompt{
			ChunkIndex:         chunk.Index,
			Pages:              chunk.Range(),
			Body:               chunk.Body,
			Digest:             res.Digest,
			DigestMaxSentences: o.digestMax,
			Oversized:          chunk.Oversized,
		}

		var draft Draft
		attempts, err := retry.Do(ctx, o.policy, logCtx, "summarize", func(ctx context.Context) error {
			d, err := o.model.Summarize(ctx, prompt)
			if err != nil {
				return err
			}
			draft = d
			return nil
		})

		partial := models.PartialSummary{
			ChunkIndex: chunk.Index,
			Pages:      chunk.Range(),
			Attempts:   attempts,
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				o.cancelRemaining(res, chunks[i:], ctxErr)
				return res, ctxErr
			}
			partial.Status = models.ChunkFailed
			partial.Detail = failureDetail(err)
			logCtx.Error("Chunk summarization failed, continuing with last digest.", "attempts", attempts, "error", err)
			res.Partials = append(res.Partials, partial)
			continue
		}

		partial.Status = models.ChunkOK
		partial.Summary = draft.Summary
		partial.KeyFacts = draft.KeyFacts
		partial.Entities = draft.Entities
		res.Partials = append(res.Partials, partial)
		res.Digest = NextDigest(res.Digest, draft, o.digestMax)
		logCtx.Info("Chunk summarized.", "attempts", attempts)
	}

	return res, nil
}

func (o *Orchestrator) cancelRemaining(res *RunResult, remaining []models.ContentChunk, cause error) {
	for _, c := range remaining {
		res.Partials = append(res.Partials, models.PartialSummary{
			ChunkIndex: c.Index,
			Pages:      c.Range(),
			Status:     models.ChunkFailed,
			Detail:     fmt.Sprintf("cancelled: %v", cause),
		})
	}
	o.logger.Warn("Summarization cancelled.", "unprocessedChunks", len(remaining), "error", cause)
}

func failureDetail(err error) string {
	if errors.Is(err, models.ErrSummarizationRejected) {
		return fmt.Sprintf("rejected: %v", err)
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return fmt.Sprintf("retries exhausted: %v", err)
	}
	return err.Error()
}

// NextDigest returns the running digest after a successful chunk. The
// model's updated digest is preferred; without one, the prior digest and the
// new summary are concatenated. Either way the result keeps at most limit
// sentences, dropping the oldest first.
func NextDigest(prior string, d Draft, limit int) string {
	next := d.Digest
	if next == "" {
		next = strings.TrimSpace(prior + " " + d.Summary)
	}
	return CapSentences(next, limit)
}

// CapSentences keeps the last n sentences of text.
func CapSentences(text string, n int) string {
	sentences := splitSentences(text)
	if len(sentences) > n {
		sentences = sentences[len(sentences)-n:]
	}
	return strings.Join(sentences, " ")
}

func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' && runes[i+1] != '\t' {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
