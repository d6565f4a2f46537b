package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

func documentRows(id, sessionID uuid.UUID, url, title string, status guidance.DocumentStatus) *pgxmock.Rows {
	now := time.Unix(1700000000, 0).UTC()
	return pgxmock.NewRows([]string{
		"id", "session_id", "url", "title", "attachment_url", "summary",
		"issue_date", "organization", "topic", "guidance_status", "docket_number",
		"open_for_comment", "processing_status", "processing_error",
		"created_at", "updated_at", "processed_at",
	}).AddRow(
		id, sessionID, url, title, (*string)(nil), (*string)(nil),
		(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
		(*bool)(nil), status, (*string)(nil), now, now, (*time.Time)(nil),
	)
}

func TestDocumentStoreUpsertReturnsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	sessionID := uuid.New()
	docID := uuid.New()
	cand := guidance.Candidate{
		URL:   "https://example.test/doc",
		Title: "Guidance Title",
	}

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(
			pgxmock.AnyArg(),
			sessionID,
			cand.URL,
			cand.Title,
			"", "", "", "", "", "", "",
			(*bool)(nil),
			guidance.DocumentPending,
		).
		WillReturnRows(documentRows(docID, sessionID, cand.URL, cand.Title, guidance.DocumentPending))

	doc, err := store.Upsert(context.Background(), cand, sessionID)
	require.NoError(t, err)
	require.Equal(t, docID, doc.ID)
	require.Equal(t, cand.URL, doc.URL)
	require.Equal(t, guidance.DocumentPending, doc.ProcessingStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreUpsertRequiresURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	_, err = store.Upsert(context.Background(), guidance.Candidate{Title: "no url"}, uuid.New())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreIsCompleted(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("https://example.test/doc", guidance.DocumentCompleted).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	done, err := store.IsCompleted(context.Background(), "https://example.test/doc")
	require.NoError(t, err)
	require.True(t, done)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreTransitionStatusNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectExec("UPDATE documents SET").
		WithArgs(id, guidance.DocumentFailed, "download failed",
			guidance.DocumentCompleted, guidance.DocumentFailed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.TransitionStatus(context.Background(), id, guidance.DocumentFailed, "download failed")
	require.ErrorIs(t, err, guidance.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreStoreAttachmentUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	docID := uuid.New()
	attID := uuid.New()
	downloaded := time.Unix(1700000000, 0).UTC()
	content := []byte("%PDF-1.7 payload")

	mock.ExpectQuery("INSERT INTO attachments").
		WithArgs(
			pgxmock.AnyArg(),
			docID,
			"guidance-title-176439.pdf",
			"https://example.test/media/176439/download",
			content,
			"abc123",
			int64(len(content)),
			guidance.DownloadCompleted,
			"",
			guidance.DownloadCompleted,
		).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "document_id", "filename", "source_url", "checksum",
			"size_bytes", "download_status", "download_error", "downloaded_at",
		}).AddRow(
			attID, docID, "guidance-title-176439.pdf",
			"https://example.test/media/176439/download", strPtr("abc123"),
			int64(len(content)), guidance.DownloadCompleted, (*string)(nil), &downloaded,
		))

	stored, err := store.StoreAttachment(context.Background(), guidance.Attachment{
		DocumentID:     docID,
		Filename:       "guidance-title-176439.pdf",
		SourceURL:      "https://example.test/media/176439/download",
		Content:        content,
		Checksum:       "abc123",
		SizeBytes:      int64(len(content)),
		DownloadStatus: guidance.DownloadCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, attID, stored.ID)
	require.Equal(t, "abc123", stored.Checksum)
	require.Equal(t, content, stored.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreStoreAttachmentKeepsCompletedRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	docID := uuid.New()
	attID := uuid.New()
	downloaded := time.Unix(1700000000, 0).UTC()
	sourceURL := "https://example.test/media/176439/download"
	original := []byte("%PDF-1.7 original payload")
	retry := []byte("%PDF-1.7 different payload")

	// The guarded upsert skips a completed row, returning nothing.
	mock.ExpectQuery("INSERT INTO attachments").
		WithArgs(
			pgxmock.AnyArg(),
			docID,
			"guidance-title-176439.pdf",
			sourceURL,
			retry,
			"retry-checksum",
			int64(len(retry)),
			guidance.DownloadCompleted,
			"",
			guidance.DownloadCompleted,
		).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "document_id", "filename", "source_url", "checksum",
			"size_bytes", "download_status", "download_error", "downloaded_at",
		}))

	mock.ExpectQuery("SELECT (.+) FROM attachments").
		WithArgs(docID, sourceURL).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "document_id", "filename", "source_url", "content", "checksum",
			"size_bytes", "download_status", "download_error", "downloaded_at",
		}).AddRow(
			attID, docID, "guidance-title-176439.pdf", sourceURL, original,
			strPtr("original-checksum"), int64(len(original)),
			guidance.DownloadCompleted, (*string)(nil), &downloaded,
		))

	stored, err := store.StoreAttachment(context.Background(), guidance.Attachment{
		DocumentID:     docID,
		Filename:       "guidance-title-176439.pdf",
		SourceURL:      sourceURL,
		Content:        retry,
		Checksum:       "retry-checksum",
		SizeBytes:      int64(len(retry)),
		DownloadStatus: guidance.DownloadCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, attID, stored.ID)
	require.Equal(t, "original-checksum", stored.Checksum)
	require.Equal(t, original, stored.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreFindAttachmentNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	docID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM attachments").
		WithArgs(docID, "https://example.test/media/1/download").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = store.FindAttachment(context.Background(), docID, "https://example.test/media/1/download")
	require.ErrorIs(t, err, guidance.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreListUnfinishedURLs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock)
	require.NoError(t, err)

	sessionID := uuid.New()
	rows := pgxmock.NewRows([]string{
		"url", "title", "attachment_url", "summary", "issue_date",
		"organization", "topic", "guidance_status", "docket_number", "open_for_comment",
	}).AddRow(
		"https://example.test/doc-1", "Pending Doc", strPtr("https://example.test/media/1/download"),
		(*string)(nil), strPtr("07/31/2025"), (*string)(nil), (*string)(nil),
		(*string)(nil), (*string)(nil), (*bool)(nil),
	).AddRow(
		"https://example.test/doc-2", "Failed Doc", (*string)(nil),
		(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
		(*string)(nil), (*string)(nil), (*bool)(nil),
	)
	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs(sessionID, guidance.DocumentCompleted).
		WillReturnRows(rows)

	cands, err := store.ListUnfinishedURLs(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	require.Equal(t, "https://example.test/doc-1", cands[0].URL)
	require.Equal(t, "https://example.test/media/1/download", cands[0].AttachmentURL)
	require.Equal(t, "Failed Doc", cands[1].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
