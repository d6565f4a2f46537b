package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/hash/sha256"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/session"
)

// --- fakes ---

type fakeSessionStore struct {
	processed, succeeded, failed int
}

func (f *fakeSessionStore) Create(_ context.Context, s guidance.Session) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (f *fakeSessionStore) Get(_ context.Context, id uuid.UUID) (guidance.Session, error) {
	return guidance.Session{ID: id, Status: guidance.SessionRunning}, nil
}

func (f *fakeSessionStore) SetRunning(context.Context, uuid.UUID) error    { return nil }
func (f *fakeSessionStore) SetTotal(context.Context, uuid.UUID, int) error { return nil }

func (f *fakeSessionStore) RecordProgress(_ context.Context, _ uuid.UUID, success bool) error {
	f.processed++
	if success {
		f.succeeded++
	} else {
		f.failed++
	}
	return nil
}

func (f *fakeSessionStore) Complete(context.Context, uuid.UUID) error     { return nil }
func (f *fakeSessionStore) Fail(context.Context, uuid.UUID, string) error { return nil }

type attachmentKey struct {
	docID uuid.UUID
	url   string
}

type fakeDocumentStore struct {
	docs        map[string]*guidance.Document
	attachments map[attachmentKey]*guidance.Attachment
	upsertErr   error
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		docs:        make(map[string]*guidance.Document),
		attachments: make(map[attachmentKey]*guidance.Attachment),
	}
}

func (f *fakeDocumentStore) Upsert(_ context.Context, cand guidance.Candidate, sessionID uuid.UUID) (guidance.Document, error) {
	if f.upsertErr != nil {
		return guidance.Document{}, f.upsertErr
	}
	if existing, ok := f.docs[cand.URL]; ok {
		merged := guidance.Candidate{
			URL:            existing.URL,
			Title:          existing.Title,
			AttachmentURL:  existing.AttachmentURL,
			Summary:        existing.Summary,
			IssueDate:      existing.IssueDate,
			Organization:   existing.Organization,
			Topic:          existing.Topic,
			GuidanceStatus: existing.GuidanceStatus,
			DocketNumber:   existing.DocketNumber,
			OpenForComment: existing.OpenForComment,
		}.Merge(cand)
		existing.Title = merged.Title
		existing.AttachmentURL = merged.AttachmentURL
		existing.Summary = merged.Summary
		existing.DocketNumber = merged.DocketNumber
		existing.UpdatedAt = time.Now()
		return *existing, nil
	}
	doc := &guidance.Document{
		ID:               uuid.New(),
		SessionID:        sessionID,
		URL:              cand.URL,
		Title:            cand.Title,
		AttachmentURL:    cand.AttachmentURL,
		Summary:          cand.Summary,
		IssueDate:        cand.IssueDate,
		Organization:     cand.Organization,
		Topic:            cand.Topic,
		GuidanceStatus:   cand.GuidanceStatus,
		DocketNumber:     cand.DocketNumber,
		OpenForComment:   cand.OpenForComment,
		ProcessingStatus: guidance.DocumentPending,
		CreatedAt:        time.Now(),
	}
	f.docs[cand.URL] = doc
	return *doc, nil
}

func (f *fakeDocumentStore) FindByURL(_ context.Context, url string) (guidance.Document, error) {
	if d, ok := f.docs[url]; ok {
		return *d, nil
	}
	return guidance.Document{}, guidance.ErrNotFound
}

func (f *fakeDocumentStore) IsCompleted(_ context.Context, url string) (bool, error) {
	d, ok := f.docs[url]
	return ok && d.ProcessingStatus == guidance.DocumentCompleted, nil
}

func (f *fakeDocumentStore) TransitionStatus(_ context.Context, id uuid.UUID, status guidance.DocumentStatus, errText string) error {
	for _, d := range f.docs {
		if d.ID == id {
			d.ProcessingStatus = status
			if errText != "" {
				d.ProcessingError = &errText
			} else {
				d.ProcessingError = nil
			}
			return nil
		}
	}
	return guidance.ErrNotFound
}

func (f *fakeDocumentStore) StoreAttachment(_ context.Context, att guidance.Attachment) (guidance.Attachment, error) {
	att.ID = uuid.New()
	stored := att
	f.attachments[attachmentKey{att.DocumentID, att.SourceURL}] = &stored
	return att, nil
}

func (f *fakeDocumentStore) FindAttachment(_ context.Context, docID uuid.UUID, sourceURL string) (guidance.Attachment, error) {
	if a, ok := f.attachments[attachmentKey{docID, sourceURL}]; ok {
		return *a, nil
	}
	return guidance.Attachment{}, guidance.ErrNotFound
}

func (f *fakeDocumentStore) ListUnfinishedURLs(context.Context, uuid.UUID) ([]guidance.Candidate, error) {
	return nil, nil
}

func (f *fakeDocumentStore) ListForExtraction(context.Context, string, int) ([]guidance.ExtractionSource, error) {
	return nil, nil
}

type fakeDetailFetcher struct {
	detail guidance.Candidate
	err    error
	calls  int
}

func (f *fakeDetailFetcher) FetchDetail(context.Context, string) (guidance.Candidate, error) {
	f.calls++
	return f.detail, f.err
}

type fakeAttachmentFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeAttachmentFetcher) Download(context.Context, string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func newTestProcessor(docs *fakeDocumentStore, sessions *fakeSessionStore, detail *fakeDetailFetcher, att *fakeAttachmentFetcher) *Processor {
	mgr := session.NewManager(sessions, zap.NewNop())
	return New(docs, mgr, detail, att, zap.NewNop())
}

// --- tests ---

func TestProcessHappyPath(t *testing.T) {
	t.Parallel()

	docs := newFakeDocumentStore()
	sessions := &fakeSessionStore{}
	detail := &fakeDetailFetcher{detail: guidance.Candidate{
		Summary:      "A detailed summary of the guidance document under review.",
		DocketNumber: "FDA-2025-D-0001",
	}}
	payload := []byte("%PDF-1.7 content")
	att := &fakeAttachmentFetcher{data: payload}

	p := newTestProcessor(docs, sessions, detail, att)
	sessionID := uuid.New()

	err := p.Process(context.Background(), sessionID, guidance.Candidate{
		URL:           "https://example.test/doc",
		Title:         "Guidance Title",
		AttachmentURL: "https://example.test/media/1/download",
	})
	require.NoError(t, err)

	doc := docs.docs["https://example.test/doc"]
	require.Equal(t, guidance.DocumentCompleted, doc.ProcessingStatus)
	require.Equal(t, "FDA-2025-D-0001", doc.DocketNumber)

	stored, err := docs.FindAttachment(context.Background(), doc.ID, "https://example.test/media/1/download")
	require.NoError(t, err)
	require.Equal(t, guidance.DownloadCompleted, stored.DownloadStatus)
	require.Equal(t, sha256.Sum(payload), stored.Checksum)
	require.Equal(t, int64(len(payload)), stored.SizeBytes)

	require.Equal(t, 1, sessions.processed)
	require.Equal(t, 1, sessions.succeeded)
	require.Zero(t, sessions.failed)
}

func TestProcessSkipsCompletedDocument(t *testing.T) {
	t.Parallel()

	docs := newFakeDocumentStore()
	sessions := &fakeSessionStore{}
	detail := &fakeDetailFetcher{}
	att := &fakeAttachmentFetcher{data: []byte("x")}

	docs.docs["https://example.test/doc"] = &guidance.Document{
		ID:               uuid.New(),
		URL:              "https://example.test/doc",
		ProcessingStatus: guidance.DocumentCompleted,
	}

	p := newTestProcessor(docs, sessions, detail, att)
	err := p.Process(context.Background(), uuid.New(), guidance.Candidate{
		URL: "https://example.test/doc",
	})
	require.NoError(t, err)
	require.Zero(t, detail.calls, "completed documents skip detail fetch")
	require.Zero(t, att.calls, "completed documents skip download")
	require.Equal(t, 1, sessions.succeeded)
}

func TestProcessFailsWithoutAttachmentURL(t *testing.T) {
	t.Parallel()

	docs := newFakeDocumentStore()
	sessions := &fakeSessionStore{}
	p := newTestProcessor(docs, sessions, &fakeDetailFetcher{}, &fakeAttachmentFetcher{})

	err := p.Process(context.Background(), uuid.New(), guidance.Candidate{
		URL:   "https://example.test/doc",
		Title: "No Attachment Here",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no attachment url")

	doc := docs.docs["https://example.test/doc"]
	require.Equal(t, guidance.DocumentFailed, doc.ProcessingStatus)
	require.NotNil(t, doc.ProcessingError)
	require.Equal(t, 1, sessions.failed)
}

func TestProcessFailsOnDownloadError(t *testing.T) {
	t.Parallel()

	docs := newFakeDocumentStore()
	sessions := &fakeSessionStore{}
	att := &fakeAttachmentFetcher{err: errors.New("connection reset")}
	p := newTestProcessor(docs, sessions, &fakeDetailFetcher{}, att)

	err := p.Process(context.Background(), uuid.New(), guidance.Candidate{
		URL:           "https://example.test/doc",
		AttachmentURL: "https://example.test/media/2/download",
	})
	require.Error(t, err)

	doc := docs.docs["https://example.test/doc"]
	require.Equal(t, guidance.DocumentFailed, doc.ProcessingStatus)
	require.Equal(t, 1, sessions.failed)
}

func TestProcessSurvivesDetailFetchFailure(t *testing.T) {
	t.Parallel()

	docs := newFakeDocumentStore()
	sessions := &fakeSessionStore{}
	detail := &fakeDetailFetcher{err: errors.New("detail page 500")}
	att := &fakeAttachmentFetcher{data: []byte("pdf bytes")}
	p := newTestProcessor(docs, sessions, detail, att)

	err := p.Process(context.Background(), uuid.New(), guidance.Candidate{
		URL:           "https://example.test/doc",
		Title:         "Listing Title",
		AttachmentURL: "https://example.test/media/3/download",
	})
	require.NoError(t, err)
	require.Equal(t, guidance.DocumentCompleted, docs.docs["https://example.test/doc"].ProcessingStatus)
}

func TestProcessReusesStoredAttachment(t *testing.T) {
	t.Parallel()

	docs := newFakeDocumentStore()
	sessions := &fakeSessionStore{}
	att := &fakeAttachmentFetcher{data: []byte("new bytes")}
	p := newTestProcessor(docs, sessions, &fakeDetailFetcher{}, att)

	sessionID := uuid.New()
	cand := guidance.Candidate{
		URL:           "https://example.test/doc",
		Title:         "Guidance Title",
		AttachmentURL: "https://example.test/media/4/download",
	}

	// Seed a document with a completed attachment, as if a prior run
	// downloaded it but crashed before finishing the document.
	doc, err := docs.Upsert(context.Background(), cand, sessionID)
	require.NoError(t, err)
	_, err = docs.StoreAttachment(context.Background(), guidance.Attachment{
		DocumentID:     doc.ID,
		SourceURL:      cand.AttachmentURL,
		Content:        []byte("old bytes"),
		DownloadStatus: guidance.DownloadCompleted,
	})
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), sessionID, cand))
	require.Zero(t, att.calls, "intact attachments are not re-downloaded")
	require.Equal(t, 1, sessions.succeeded)
}
