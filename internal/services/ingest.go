package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/gcp"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
)

// ObjectOpener streams stored files.
type ObjectOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// DocumentRegistry is the document record store used by ingest.
type DocumentRegistry interface {
	FindByHash(ctx context.Context, fileHash string) (string, bool, error)
	Create(ctx context.Context, doc models.Document) (string, error)
	SetExecutionID(ctx context.Context, id, executionID string) error
	RecordStatus(ctx context.Context, id string, status models.DocumentStatus, details string) error
}

// WorkflowStarter starts the orchestration workflow for a document.
type WorkflowStarter interface {
	Trigger(ctx context.Context, arg models.WorkflowArgument) (string, error)
}

// IngestFunction registers uploaded files and hands them to the workflow.
type IngestFunction struct {
	objects   ObjectOpener
	registry  DocumentRegistry
	workflows WorkflowStarter
}

// NewIngest creates the production IngestFunction from cfg.
func NewIngest(ctx context.Context, cfg *config.Config) (*IngestFunction, error) {
	if cfg.GCP.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}

	f := NewIngestFunction(
		gcp.NewBlobStore(storageClient, cfg.GCP.UploadBucket),
		gcp.NewDocumentStore(firestoreClient, cfg.GCP.CollectionName),
		gcp.NewWorkflowTrigger(executionsClient, cfg.GCP.ProjectID, cfg.GCP.WorkflowLocation, cfg.GCP.WorkflowID),
	)
	slog.Info("Ingest logic initialized.", "workflowId", cfg.GCP.WorkflowID)
	return f, nil
}

func NewIngestFunction(objects ObjectOpener, registry DocumentRegistry, workflows WorkflowStarter) *IngestFunction {
	return &IngestFunction{objects: objects, registry: registry, workflows: workflows}
}

// Process handles one object-finalize event. It returns the document ID, or
// "" when the object was skipped.
func (f *IngestFunction) Process(ctx context.Context, e models.IngestEvent) (string, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	if e.Name == "" || strings.HasSuffix(e.Name, "/") {
		logCtx.Info("Object is a folder placeholder. Skipping.")
		return "", nil
	}
	sourceURI := gcp.ObjectURI(e.Bucket, e.Name)

	fileHash, err := f.hashObject(ctx, sourceURI)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return "", err
	}
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, isDuplicate, err := f.registry.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return "", err
	}
	if isDuplicate {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", existingID)
		return "", nil
	}

	fileName := path.Base(e.Name)
	docID, err := f.registry.Create(ctx, models.Document{
		FileHash:         fileHash,
		OriginalFilename: fileName,
		SourceURI:        sourceURI,
		Status:           models.StatusPending,
	})
	if err != nil {
		logCtx.Error("Failed to create initial Firestore document", "error", err)
		return "", err
	}
	logCtx = logCtx.With("documentId", docID)
	logCtx.Info("Created master document in Firestore.")

	executionID, err := f.workflows.Trigger(ctx, models.WorkflowArgument{
		DocumentID: docID,
		GCSUri:     sourceURI,
		FileName:   fileName,
	})
	if err != nil {
		return docID, f.handleError(ctx, logCtx, docID, "failed to trigger workflow execution", err)
	}

	if err := f.registry.SetExecutionID(ctx, docID, executionID); err != nil {
		// The workflow is already running; the record is only missing its back-reference.
		logCtx.Warn("Failed to store workflow execution id.", "executionId", executionID, "error", err)
	}
	logCtx.Info("Hand-off to workflow complete.", "executionId", executionID)
	return docID, nil
}

func (f *IngestFunction) hashObject(ctx context.Context, ref string) (string, error) {
	reader, err := f.objects.Open(ctx, ref)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, reader); err != nil {
		return "", fmt.Errorf("failed to stream %s: %w", ref, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func (f *IngestFunction) handleError(ctx context.Context, logCtx *slog.Logger, docID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.registry.RecordStatus(ctx, docID, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
