package models

// These structs define the JSON payloads exchanged between the Cloud Workflow
// and the worker Cloud Functions.

// IngestEvent is the subset of the GCS object-finalize event we use.
type IngestEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// WorkflowArgument is passed to the orchestration workflow on ingest.
type WorkflowArgument struct {
	DocumentID string `json:"documentId"`
	GCSUri     string `json:"gcsUri"`
	FileName   string `json:"fileName"`
}

// SummarizeRequest is the input for the document-summarizer function.
type SummarizeRequest struct {
	DocumentID  string `json:"documentId"`
	GCSUri      string `json:"gcsUri"`
	FileName    string `json:"fileName,omitempty"`
	ExecutionID string `json:"executionId"`
}

// SummarizeResponse is the output of the document-summarizer function.
type SummarizeResponse struct {
	Status        DocumentStatus `json:"status"`
	SummaryGCSUri string         `json:"summaryGcsUri"`
	ReportGCSUri  string         `json:"reportGcsUri"`
	PageCount     int            `json:"pageCount"`
	FailedRanges  []FailedRange  `json:"failedRanges"`
}
