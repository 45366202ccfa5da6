package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/gcp"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/pipeline"
)

// Fetcher reads whole stored files.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ResultWriter writes summary artifacts. A later run replaces the artifacts of
// an earlier one.
type ResultWriter interface {
	Put(ctx context.Context, object, contentType string, data []byte) (string, error)
}

// ResultRegistry records run status and results on the document record.
type ResultRegistry interface {
	pipeline.StatusRecorder
	SetResult(ctx context.Context, id, summaryURI string, pageCount int) error
}

// Runner runs the pipeline for one document.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*models.FinalSummary, error)
}

// SummarizerFunction runs the pipeline for a document and stores the result.
type SummarizerFunction struct {
	sources  Fetcher
	results  ResultWriter
	registry ResultRegistry
	runner   Runner
	// closers release clients owned by the function, in reverse order.
	closers []func() error
}

// NewSummarizer creates the production SummarizerFunction from cfg.
func NewSummarizer(ctx context.Context, cfg *config.Config) (*SummarizerFunction, error) {
	if cfg.GCP.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if cfg.GCP.SummaryBucket == "" {
		return nil, fmt.Errorf("SUMMARY_BUCKET environment variable must be set")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	backend, closeBackend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	extractCache, closeCache := NewExtractionCache(ctx, cfg.Cache)

	registry := gcp.NewDocumentStore(firestoreClient, cfg.GCP.CollectionName)
	controller := NewController(cfg, backend, extractCache, registry, slog.Default())

	slog.Info("Summarizer logic initialized.", "provider", cfg.Model.Provider, "summaryBucket", cfg.GCP.SummaryBucket)
	f := NewSummarizerFunction(
		gcp.NewBlobStore(storageClient, cfg.GCP.UploadBucket),
		gcp.NewBlobStore(storageClient, cfg.GCP.SummaryBucket),
		registry,
		controller,
	)
	f.closers = []func() error{storageClient.Close, firestoreClient.Close, closeBackend, closeCache}
	return f, nil
}

func NewSummarizerFunction(sources Fetcher, results ResultWriter, registry ResultRegistry, runner Runner) *SummarizerFunction {
	return &SummarizerFunction{sources: sources, results: results, registry: registry, runner: runner}
}

// Process summarizes one document. A run that ends partial is a success.
// When the run fails with a summary available (every chunk failed) the
// artifacts are still written and the response is returned together with
// the error.
func (f *SummarizerFunction) Process(ctx context.Context, req *models.SummarizeRequest) (*models.SummarizeResponse, error) {
	logCtx := slog.With("documentId", req.DocumentID, "executionId", req.ExecutionID)
	logCtx.Info("Starting summarization.", "gcsUri", req.GCSUri)

	if req.DocumentID == "" || req.GCSUri == "" {
		return nil, fmt.Errorf("documentId and gcsUri are required")
	}

	data, err := f.sources.Fetch(ctx, req.GCSUri)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, req.DocumentID, "failed to fetch source file", err)
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = path.Base(req.GCSUri)
	}

	final, runErr := f.runner.Run(ctx, pipeline.Input{DocumentID: req.DocumentID, Filename: fileName, Data: data})
	if final == nil {
		// The controller has already recorded the failure.
		return nil, runErr
	}

	summaryJSON, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	summaryURI, err := f.results.Put(ctx, req.DocumentID+"/summary.json", "application/json", summaryJSON)
	if err != nil {
		logCtx.Error("Failed to save summary.json", "error", err)
		return nil, err
	}
	reportURI, err := f.results.Put(ctx, req.DocumentID+"/summary.md", "text/markdown", []byte(RenderReport(fileName, final)))
	if err != nil {
		logCtx.Error("Failed to save summary.md", "error", err)
		return nil, err
	}

	if err := f.registry.SetResult(ctx, req.DocumentID, summaryURI, final.PageCount); err != nil {
		logCtx.Error("Failed to record summary location.", "error", err)
		return nil, err
	}

	resp := &models.SummarizeResponse{
		Status:        final.Status,
		SummaryGCSUri: summaryURI,
		ReportGCSUri:  reportURI,
		PageCount:     final.PageCount,
		FailedRanges:  final.FailedRanges,
	}
	if runErr != nil {
		logCtx.Error("Summarization failed.", "error", runErr)
		return resp, runErr
	}
	logCtx.Info("Summarization complete.", "status", final.Status, "summaryGcsUri", summaryURI)
	return resp, nil
}

// Close releases the clients created by NewSummarizer. A warm function
// instance keeps them for its whole lifetime; Close is for callers that
// stop using the function, such as tests and local tools.
func (f *SummarizerFunction) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

func (f *SummarizerFunction) handleError(ctx context.Context, logCtx *slog.Logger, docID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.registry.RecordStatus(ctx, docID, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
