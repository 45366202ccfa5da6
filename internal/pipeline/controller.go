// Package pipeline composes splitting, extraction, chunking and summarization
// into one document run and assembles the final summary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/docsummaryflow/internal/chunker"
	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/splitter"
	"github.com/Lllllllleong/docsummaryflow/internal/summarizer"
	"github.com/Lllllllleong/docsummaryflow/internal/tokens"
)

// BlobStore stores and fetches opaque files by reference.
type BlobStore interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// StatusRecorder persists document status transitions.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, documentID string, status models.DocumentStatus, details string) error
}

// Splitter turns a file into ordered page images.
type Splitter interface {
	Split(ctx context.Context, data []byte, filename string) (*splitter.Result, error)
}

// PageExtractor extracts all pages, returning them in page order.
type PageExtractor interface {
	ExtractAll(ctx context.Context, pages []models.PageImage) ([]models.Page, error)
}

// ChunkSummarizer summarizes chunks sequentially.
type ChunkSummarizer interface {
	Run(ctx context.Context, chunks []models.ContentChunk, digest string) (*summarizer.RunResult, error)
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Splitter   Splitter
	Extractor  PageExtractor
	Summarizer ChunkSummarizer
	Recorder   StatusRecorder
	Estimator  tokens.Estimator
	Logger     *slog.Logger
}

// Input is one document to summarize.
type Input struct {
	DocumentID string
	Filename   string
	Data       []byte
}

// Controller runs the end-to-end pipeline for one document at a time.
type Controller struct {
	cfg  config.PipelineConfig
	deps Deps
}

// NewController creates a Controller. A nil Estimator uses tokens.Estimate and
// a nil Recorder discards status updates.
func NewController(cfg config.PipelineConfig, deps Deps) *Controller {
	if deps.Estimator == nil {
		deps.Estimator = tokens.Estimate
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	return &Controller{cfg: cfg, deps: deps}
}

// run tracks the state machine of a single document.
type run struct {
	id       string
	status   models.DocumentStatus
	recorder StatusRecorder
	logCtx   *slog.Logger
}

func (r *run) transition(ctx context.Context, next models.DocumentStatus, details string) error {
	if !r.status.CanTransition(next) {
		return fmt.Errorf("invalid status transition %s -> %s", r.status, next)
	}
	r.logCtx.Info("Document status changed.", "from", r.status, "to", next)
	r.status = next
	// Status is recorded even when the run context is already cancelled.
	if err := r.recorder.RecordStatus(context.WithoutCancel(ctx), r.id, next, details); err != nil {
		r.logCtx.Error("Failed to record document status.", "status", next, "error", err)
	}
	return nil
}

func (r *run) fail(ctx context.Context, message string, err error) error {
	r.logCtx.Error(message, "error", err)
	details := fmt.Sprintf("%s: %v", message, err)
	if tErr := r.transition(ctx, models.StatusFailed, details); tErr != nil {
		r.logCtx.Error("CRITICAL: Failed to move document to failed status.", "error", tErr)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Run executes pending → splitting → extracting → chunking → summarizing →
// complete|partial|failed for in. Per-page and per-chunk failures are
// recorded in the returned FinalSummary. If every chunk fails the summary is
// returned together with a PipelineAborted error. If ctx is cancelled during
// summarization the summary is returned with the context error, and its
// status is partial when at least one chunk was summarized.
func (c *Controller) Run(ctx context.Context, in Input) (*models.FinalSummary, error) {
	r := &run{
		id:       in.DocumentID,
		status:   models.StatusPending,
		recorder: c.deps.Recorder,
		logCtx:   c.deps.Logger.With("documentId", in.DocumentID),
	}
	r.logCtx.Info("Starting document run.", "file", in.Filename)

	if err := r.transition(ctx, models.StatusSplitting, ""); err != nil {
		return nil, err
	}
	split, err := c.deps.Splitter.Split(ctx, in.Data, in.Filename)
	if err != nil {
		return nil, r.fail(ctx, "failed to split document", err)
	}

	if err := r.transition(ctx, models.StatusExtracting, ""); err != nil {
		return nil, err
	}
	pages, err := c.deps.Extractor.ExtractAll(ctx, split.Pages)
	if err != nil {
		return nil, r.fail(ctx, "page extraction interrupted", err)
	}

	if err := r.transition(ctx, models.StatusChunking, ""); err != nil {
		return nil, err
	}
	chunks, err := chunker.Chunk(pages, c.cfg.ContextTokenBudget, c.deps.Estimator)
	if err != nil {
		return nil, r.fail(ctx, "failed to chunk pages", err)
	}
	r.logCtx.Info("Pages chunked.", "pageCount", len(pages), "chunkCount", len(chunks))

	if err := r.transition(ctx, models.StatusSummarizing, ""); err != nil {
		return nil, err
	}
	result, runErr := c.deps.Summarizer.Run(ctx, chunks, "")
	if result == nil {
		result = &summarizer.RunResult{}
	}

	final := Merge(in.DocumentID, pages, result.Partials)
	final.Digest = result.Digest
	final.OriginalPageCount = split.OriginalPageCount
	final.Truncated = split.Truncated

	if runErr != nil {
		// Chunks summarized before the interruption are kept.
		if final.Status == models.StatusPartial {
			r.logCtx.Warn("Summarization interrupted after some chunks succeeded.", "failedRanges", len(final.FailedRanges), "error", runErr)
			if err := r.transition(ctx, models.StatusPartial, fmt.Sprintf("summarization interrupted: %v", runErr)); err != nil {
				return final, err
			}
			return final, fmt.Errorf("summarization interrupted: %w", runErr)
		}
		final.Status = models.StatusFailed
		return final, r.fail(ctx, "summarization interrupted", runErr)
	}

	details := ""
	if len(final.FailedRanges) > 0 {
		details = fmt.Sprintf("%d of %d chunks not summarized", len(final.FailedRanges), len(chunks))
	}
	if err := r.transition(ctx, final.Status, details); err != nil {
		return final, err
	}

	if final.Status == models.StatusFailed {
		return final, models.NewError(models.KindPipelineAborted, fmt.Sprintf("all %d chunks failed", len(chunks)), nil)
	}
	r.logCtx.Info("Document run finished.", "status", final.Status, "findings", len(final.Findings), "failedRanges", len(final.FailedRanges))
	return final, nil
}

type nopRecorder struct{}

func (nopRecorder) RecordStatus(context.Context, string, models.DocumentStatus, string) error {
	return nil
}
