// Package guidance defines core types shared across the harvest and
// extraction subsystems.
package guidance

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a crawl session.
type SessionStatus string

// Session status values persisted in the session store.
const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionPaused    SessionStatus = "paused"
)

// SessionKind distinguishes harvest runs from feature-extraction runs.
type SessionKind string

const (
	SessionKindHarvest SessionKind = "harvest"
	SessionKindExtract SessionKind = "extract"
)

// DocumentStatus represents the per-document processing state.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

// DownloadStatus represents the state of a stored attachment.
type DownloadStatus string

const (
	DownloadPending   DownloadStatus = "pending"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// ExtractionStatus classifies the outcome of a feature-extraction attempt.
type ExtractionStatus string

const (
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionPartial   ExtractionStatus = "partial"
	ExtractionFailed    ExtractionStatus = "failed"
)

// Session represents the metadata persisted for each harvest or
// extraction run. Counters accumulate monotonically across resumes.
type Session struct {
	ID                  uuid.UUID     `json:"id"`
	Kind                SessionKind   `json:"kind"`
	Status              SessionStatus `json:"status"`
	StartedAt           time.Time     `json:"started_at"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	TotalDocuments      *int          `json:"total_documents,omitempty"`
	ProcessedDocuments  int           `json:"processed_documents"`
	SuccessfulDownloads int           `json:"successful_downloads"`
	FailedDocuments     int           `json:"failed_documents"`
	ConcurrencyLimit    int           `json:"concurrency_limit"`
	RateLimit           float64       `json:"rate_limit"`
	TestLimit           *int          `json:"test_limit,omitempty"`
	ErrorCount          int           `json:"error_count"`
	LastError           *string       `json:"last_error,omitempty"`
}

// Active reports whether the session can still accept progress updates.
func (s *Session) Active() bool {
	return s.Status == SessionRunning || s.Status == SessionPaused
}

// Candidate is a catalog listing entry before it is persisted. Listing
// strategies produce candidates with whatever fields the source exposes;
// empty fields are filled in later from the detail page.
type Candidate struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	AttachmentSize string `json:"attachment_size,omitempty"`
	Summary        string `json:"summary,omitempty"`
	IssueDate      string `json:"issue_date,omitempty"`
	Organization   string `json:"organization,omitempty"`
	Topic          string `json:"topic,omitempty"`
	GuidanceStatus string `json:"guidance_status,omitempty"`
	DocketNumber   string `json:"docket_number,omitempty"`
	OpenForComment *bool  `json:"open_for_comment,omitempty"`
}

// Merge overlays detail-page metadata onto a listing candidate. Detail
// values win only where they are present; existing listing values are
// never clobbered by blanks.
func (c Candidate) Merge(detail Candidate) Candidate {
	out := c
	if detail.Title != "" {
		out.Title = detail.Title
	}
	if detail.AttachmentURL != "" {
		out.AttachmentURL = detail.AttachmentURL
	}
	if detail.Summary != "" {
		out.Summary = detail.Summary
	}
	if detail.IssueDate != "" {
		out.IssueDate = detail.IssueDate
	}
	if detail.Organization != "" {
		out.Organization = detail.Organization
	}
	if detail.Topic != "" {
		out.Topic = detail.Topic
	}
	if detail.GuidanceStatus != "" {
		out.GuidanceStatus = detail.GuidanceStatus
	}
	if detail.DocketNumber != "" {
		out.DocketNumber = detail.DocketNumber
	}
	if detail.OpenForComment != nil {
		out.OpenForComment = detail.OpenForComment
	}
	return out
}

// Document is the persisted catalog record, keyed by source URL.
type Document struct {
	ID               uuid.UUID      `json:"id"`
	SessionID        uuid.UUID      `json:"session_id"`
	URL              string         `json:"url"`
	Title            string         `json:"title"`
	AttachmentURL    string         `json:"attachment_url,omitempty"`
	Summary          string         `json:"summary,omitempty"`
	IssueDate        string         `json:"issue_date,omitempty"`
	Organization     string         `json:"organization,omitempty"`
	Topic            string         `json:"topic,omitempty"`
	GuidanceStatus   string         `json:"guidance_status,omitempty"`
	DocketNumber     string         `json:"docket_number,omitempty"`
	OpenForComment   *bool          `json:"open_for_comment,omitempty"`
	ProcessingStatus DocumentStatus `json:"processing_status"`
	ProcessingError  *string        `json:"processing_error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
}

// Attachment is the binary payload downloaded for a document, stored
// inline with its integrity metadata.
type Attachment struct {
	ID             uuid.UUID      `json:"id"`
	DocumentID     uuid.UUID      `json:"document_id"`
	Filename       string         `json:"filename"`
	SourceURL      string         `json:"source_url"`
	Content        []byte         `json:"-"`
	Checksum       string         `json:"checksum,omitempty"`
	SizeBytes      int64          `json:"size_bytes"`
	DownloadStatus DownloadStatus `json:"download_status"`
	DownloadError  *string        `json:"download_error,omitempty"`
	DownloadedAt   *time.Time     `json:"downloaded_at,omitempty"`
}

// FeatureRecord holds the structured fields extracted from one document.
// Features is the flattened field map; ConfidenceScore is recomputed
// server-side and always falls in [0, 1].
type FeatureRecord struct {
	ID              uuid.UUID        `json:"id"`
	DocumentID      uuid.UUID        `json:"document_id"`
	SessionID       uuid.UUID        `json:"session_id"`
	ExtractedText   string           `json:"-"`
	Features        map[string]any   `json:"features"`
	ConfidenceScore float64          `json:"confidence_score"`
	Status          ExtractionStatus `json:"status"`
	ErrorText       *string          `json:"error_text,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ExtractionSource pairs a completed document with its stored attachment
// bytes for the extraction stage.
type ExtractionSource struct {
	Document  Document
	Filename  string
	Content   []byte
	SourceURL string
	Checksum  string
}

// TextResult is the outcome of attachment text extraction.
type TextResult struct {
	Text      string
	PageCount int
	Truncated bool
}

// ExtractionPayload is what the feature model sees for one document.
type ExtractionPayload struct {
	Title    string
	URL      string
	Metadata map[string]string
	Text     string
}
