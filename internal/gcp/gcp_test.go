package gcp

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/Lllllllleong/docsummaryflow/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	_ pipeline.BlobStore      = (*BlobStore)(nil)
	_ pipeline.StatusRecorder = (*DocumentStore)(nil)
)

func TestParseObjectURI(t *testing.T) {
	bucket, object, err := ParseObjectURI("gs://uploads/2024/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "uploads", bucket)
	assert.Equal(t, "2024/report.pdf", object)
	assert.Equal(t, "gs://uploads/2024/report.pdf", ObjectURI(bucket, object))

	for _, bad := range []string{"", "uploads/report.pdf", "gs://uploads", "gs:///report.pdf", "gs://uploads/"} {
		_, _, err := ParseObjectURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestWorkflowParent(t *testing.T) {
	assert.Equal(t,
		"projects/p1/locations/us-central1/workflows/document-summary-orchestrator",
		WorkflowParent("p1", "us-central1", "document-summary-orchestrator"))
}

func TestClassifyVertexError(t *testing.T) {
	blocked := classifyVertexError(&genai.BlockedError{}, "summarize", models.KindSummarizationTransient, models.KindSummarizationRejected)
	assert.ErrorIs(t, blocked, models.ErrSummarizationRejected)

	unavailable := classifyVertexError(status.Error(codes.Unavailable, "try later"), "ocr", models.KindExtractionTransient, models.KindExtractionUnavailable)
	assert.ErrorIs(t, unavailable, models.ErrExtractionTransient)

	deadline := classifyVertexError(context.DeadlineExceeded, "ocr", models.KindExtractionTransient, models.KindExtractionUnavailable)
	assert.ErrorIs(t, deadline, models.ErrExtractionTransient)

	invalid := classifyVertexError(status.Error(codes.InvalidArgument, "bad image"), "ocr", models.KindExtractionTransient, models.KindExtractionUnavailable)
	assert.Equal(t, models.ErrorKind(""), models.KindOf(invalid))
	assert.False(t, errors.Is(invalid, models.ErrExtractionTransient))
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(" {\"summary\":"), genai.Text("\"x\"} ")}},
	}}}
	assert.Equal(t, `{"summary":"x"}`, responseText(resp))
}
