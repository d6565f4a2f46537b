package guidance

import (
	"context"

	"github.com/google/uuid"
)

// ListingStrategy acquires the catalog listing from one source.
// Implementations return an error or an empty slice when the source is
// unavailable; ordering between strategies is handled by the caller.
type ListingStrategy interface {
	Name() string
	Acquire(ctx context.Context, limit int) ([]Candidate, error)
}

// DetailFetcher enriches a candidate with metadata from its detail page.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, url string) (Candidate, error)
}

// AttachmentFetcher downloads the binary attachment for a document.
type AttachmentFetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// TextExtractor turns attachment bytes into plain text.
type TextExtractor interface {
	ExtractText(data []byte) (TextResult, error)
}

// FeatureModel runs structured extraction over document text and returns
// the model's raw response.
type FeatureModel interface {
	Extract(ctx context.Context, payload ExtractionPayload) (string, error)
}

// SessionStore persists session metadata and counters.
type SessionStore interface {
	Create(ctx context.Context, session Session) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	SetRunning(ctx context.Context, id uuid.UUID) error
	SetTotal(ctx context.Context, id uuid.UUID, total int) error
	RecordProgress(ctx context.Context, id uuid.UUID, success bool) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, errText string) error
}

// DocumentStore persists catalog documents and their attachments.
type DocumentStore interface {
	Upsert(ctx context.Context, cand Candidate, sessionID uuid.UUID) (Document, error)
	FindByURL(ctx context.Context, url string) (Document, error)
	IsCompleted(ctx context.Context, url string) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, status DocumentStatus, errText string) error
	StoreAttachment(ctx context.Context, att Attachment) (Attachment, error)
	FindAttachment(ctx context.Context, documentID uuid.UUID, sourceURL string) (Attachment, error)
	ListUnfinishedURLs(ctx context.Context, sessionID uuid.UUID) ([]Candidate, error)
	ListForExtraction(ctx context.Context, filter string, limit int) ([]ExtractionSource, error)
}

// FeatureStore persists extraction results, one row per document.
type FeatureStore interface {
	Insert(ctx context.Context, rec FeatureRecord) error
	GetByDocument(ctx context.Context, documentID uuid.UUID) (FeatureRecord, error)
}
