package models

import "time"

// DocumentStatus is the lifecycle state of a summarization run.
type DocumentStatus string

const (
	StatusPending     DocumentStatus = "pending"
	StatusSplitting   DocumentStatus = "splitting"
	StatusExtracting  DocumentStatus = "extracting"
	StatusChunking    DocumentStatus = "chunking"
	StatusSummarizing DocumentStatus = "summarizing"
	StatusComplete    DocumentStatus = "complete"
	StatusPartial     DocumentStatus = "partial"
	StatusFailed      DocumentStatus = "failed"
)

// nextStage lists the single forward move allowed out of each working stage.
var nextStage = map[DocumentStatus]DocumentStatus{
	StatusPending:    StatusSplitting,
	StatusSplitting:  StatusExtracting,
	StatusExtracting: StatusChunking,
	StatusChunking:   StatusSummarizing,
}

// IsTerminal reports whether no further transitions are allowed.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusPartial || s == StatusFailed
}

// CanTransition reports whether moving from s to next respects the
// pending → splitting → extracting → chunking → summarizing → terminal order.
// Any non-terminal stage may fall to failed.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	if s == StatusSummarizing {
		return next == StatusComplete || next == StatusPartial
	}
	return nextStage[s] == next
}

// Document represents the master record for a summarization job in Firestore.
// It tracks the overall status and metadata of the uploaded file.
type Document struct {
	ID                  string         `firestore:"-"`
	FileHash            string         `firestore:"fileHash,omitempty"`
	OriginalFilename    string         `firestore:"originalFilename,omitempty"`
	SourceURI           string         `firestore:"sourceUri,omitempty"`
	Status              DocumentStatus `firestore:"status,omitempty"`
	ErrorDetails        string         `firestore:"errorDetails,omitempty"`
	PageCount           int            `firestore:"pageCount,omitempty"`
	WorkflowExecutionID string         `firestore:"workflowExecutionId,omitempty"`
	SummaryURI          string         `firestore:"summaryUri,omitempty"`
	CreatedAt           time.Time      `firestore:"createdAt,omitempty"`
	UpdatedAt           time.Time      `firestore:"updatedAt,omitempty"`
}

// PageImage is one rendered page handed to the extractor.
type PageImage struct {
	Index     int
	MIMEType  string
	Data      []byte
	Width     int
	Height    int
	SourceRef string
}

// PageStatus is the outcome of extracting a single page.
type PageStatus string

const (
	PageOK      PageStatus = "ok"
	PagePartial PageStatus = "partial"
	PageFailed  PageStatus = "failed"
)

// Page holds the extracted content of one page. Index is 1-based.
type Page struct {
	Index      int        `json:"index"`
	SourceRef  string     `json:"sourceRef,omitempty"`
	OCRText    string     `json:"ocrText"`
	Caption    string     `json:"caption"`
	Confidence float64    `json:"confidence"`
	Status     PageStatus `json:"status"`
	Detail     string     `json:"detail,omitempty"`
}

// ExtractionRecord is the cacheable result of running OCR and captioning on a page image.
type ExtractionRecord struct {
	OCRText    string  `json:"ocrText"`
	Caption    string  `json:"caption"`
	Confidence float64 `json:"confidence"`
}
