package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

// DocumentStore implements guidance.DocumentStore on Postgres.
type DocumentStore struct {
	pool querier
}

// NewDocumentStore constructs a store over an existing pool.
func NewDocumentStore(pool querier) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &DocumentStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const documentColumns = `id, session_id, url, title, attachment_url, summary,
	issue_date, organization, topic, guidance_status, docket_number,
	open_for_comment, processing_status, processing_error,
	created_at, updated_at, processed_at`

// Upsert inserts the candidate or merges it into the existing row keyed
// by URL. Merge semantics: a present candidate field replaces the stored
// value, an absent one leaves it alone. The owning session of an
// existing row is never reassigned.
func (s *DocumentStore) Upsert(ctx context.Context, cand guidance.Candidate, sessionID uuid.UUID) (guidance.Document, error) {
	if cand.URL == "" {
		return guidance.Document{}, fmt.Errorf("candidate url is required")
	}
	query := `
INSERT INTO documents (id, session_id, url, title, attachment_url, summary,
	issue_date, organization, topic, guidance_status, docket_number,
	open_for_comment, processing_status)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
	NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, $13)
ON CONFLICT (url) DO UPDATE SET
	title = COALESCE(NULLIF(EXCLUDED.title, ''), documents.title),
	attachment_url = COALESCE(EXCLUDED.attachment_url, documents.attachment_url),
	summary = COALESCE(EXCLUDED.summary, documents.summary),
	issue_date = COALESCE(EXCLUDED.issue_date, documents.issue_date),
	organization = COALESCE(EXCLUDED.organization, documents.organization),
	topic = COALESCE(EXCLUDED.topic, documents.topic),
	guidance_status = COALESCE(EXCLUDED.guidance_status, documents.guidance_status),
	docket_number = COALESCE(EXCLUDED.docket_number, documents.docket_number),
	open_for_comment = COALESCE(EXCLUDED.open_for_comment, documents.open_for_comment),
	updated_at = now()
RETURNING ` + documentColumns
	row := s.pool.QueryRow(ctx, query,
		uuid.New(),
		sessionID,
		cand.URL,
		cand.Title,
		cand.AttachmentURL,
		cand.Summary,
		cand.IssueDate,
		cand.Organization,
		cand.Topic,
		cand.GuidanceStatus,
		cand.DocketNumber,
		cand.OpenForComment,
		guidance.DocumentPending,
	)
	doc, err := scanDocument(row)
	if err != nil {
		return guidance.Document{}, fmt.Errorf("upsert document: %w", err)
	}
	return doc, nil
}

// FindByURL loads a document by its source URL.
func (s *DocumentStore) FindByURL(ctx context.Context, url string) (guidance.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE url = $1`
	doc, err := scanDocument(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return guidance.Document{}, guidance.ErrNotFound
	}
	if err != nil {
		return guidance.Document{}, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// IsCompleted reports whether the URL already has a completed document.
// The processor uses this to short-circuit rework on resume.
func (s *DocumentStore) IsCompleted(ctx context.Context, url string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM documents WHERE url = $1 AND processing_status = $2)`
	var done bool
	if err := s.pool.QueryRow(ctx, query, url, guidance.DocumentCompleted).Scan(&done); err != nil {
		return false, fmt.Errorf("check completed: %w", err)
	}
	return done, nil
}

// TransitionStatus moves a document through its lifecycle. Terminal
// transitions stamp processed_at.
func (s *DocumentStore) TransitionStatus(ctx context.Context, id uuid.UUID, status guidance.DocumentStatus, errText string) error {
	query := `
UPDATE documents SET
	processing_status = $2,
	processing_error = NULLIF($3, ''),
	updated_at = now(),
	processed_at = CASE WHEN $2 IN ($4, $5) THEN now() ELSE processed_at END
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, status, errText,
		guidance.DocumentCompleted, guidance.DocumentFailed)
	if err != nil {
		return fmt.Errorf("transition document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return guidance.ErrNotFound
	}
	return nil
}

// StoreAttachment writes the attachment row for (document, source URL),
// replacing an earlier failed attempt if one exists. A row that already
// reached completed is never overwritten; the stored record is returned
// instead.
func (s *DocumentStore) StoreAttachment(ctx context.Context, att guidance.Attachment) (guidance.Attachment, error) {
	if att.DocumentID == uuid.Nil {
		return guidance.Attachment{}, fmt.Errorf("attachment document id is required")
	}
	query := `
INSERT INTO attachments (id, document_id, filename, source_url, content,
	checksum, size_bytes, download_status, download_error, downloaded_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''),
	CASE WHEN $8 = $10 THEN now() ELSE NULL END)
ON CONFLICT (document_id, source_url) DO UPDATE SET
	filename = EXCLUDED.filename,
	content = EXCLUDED.content,
	checksum = EXCLUDED.checksum,
	size_bytes = EXCLUDED.size_bytes,
	download_status = EXCLUDED.download_status,
	download_error = EXCLUDED.download_error,
	downloaded_at = EXCLUDED.downloaded_at
WHERE attachments.download_status <> $10
RETURNING id, document_id, filename, source_url, checksum, size_bytes,
	download_status, download_error, downloaded_at`
	var errText string
	if att.DownloadError != nil {
		errText = *att.DownloadError
	}
	row := s.pool.QueryRow(ctx, query,
		uuid.New(),
		att.DocumentID,
		att.Filename,
		att.SourceURL,
		att.Content,
		att.Checksum,
		att.SizeBytes,
		att.DownloadStatus,
		errText,
		guidance.DownloadCompleted,
	)
	stored, err := scanAttachmentMeta(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflicted with a completed row; the guarded update skipped
		// it, so hand back what is already stored.
		return s.FindAttachment(ctx, att.DocumentID, att.SourceURL)
	}
	if err != nil {
		return guidance.Attachment{}, fmt.Errorf("store attachment: %w", err)
	}
	stored.Content = att.Content
	return stored, nil
}

// FindAttachment loads attachment metadata and content for a document URL pair.
func (s *DocumentStore) FindAttachment(ctx context.Context, documentID uuid.UUID, sourceURL string) (guidance.Attachment, error) {
	query := `
SELECT id, document_id, filename, source_url, content, checksum, size_bytes,
	download_status, download_error, downloaded_at
FROM attachments WHERE document_id = $1 AND source_url = $2`
	var att guidance.Attachment
	var checksum, errText *string
	err := s.pool.QueryRow(ctx, query, documentID, sourceURL).Scan(
		&att.ID,
		&att.DocumentID,
		&att.Filename,
		&att.SourceURL,
		&att.Content,
		&checksum,
		&att.SizeBytes,
		&att.DownloadStatus,
		&errText,
		&att.DownloadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return guidance.Attachment{}, guidance.ErrNotFound
	}
	if err != nil {
		return guidance.Attachment{}, fmt.Errorf("find attachment: %w", err)
	}
	att.Checksum = deref(checksum)
	att.DownloadError = errText
	return att, nil
}

// ListUnfinishedURLs returns the candidates a resumed session still has
// to work through: everything not yet completed.
func (s *DocumentStore) ListUnfinishedURLs(ctx context.Context, sessionID uuid.UUID) ([]guidance.Candidate, error) {
	query := `
SELECT url, title, attachment_url, summary, issue_date, organization,
	topic, guidance_status, docket_number, open_for_comment
FROM documents
WHERE session_id = $1 AND processing_status <> $2
ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, sessionID, guidance.DocumentCompleted)
	if err != nil {
		return nil, fmt.Errorf("list unfinished: %w", err)
	}
	defer rows.Close()

	var out []guidance.Candidate
	for rows.Next() {
		var c guidance.Candidate
		var attachmentURL, summary, issueDate, org, topic, gStatus, docket *string
		if err := rows.Scan(&c.URL, &c.Title, &attachmentURL, &summary, &issueDate,
			&org, &topic, &gStatus, &docket, &c.OpenForComment); err != nil {
			return nil, fmt.Errorf("scan unfinished row: %w", err)
		}
		c.AttachmentURL = deref(attachmentURL)
		c.Summary = deref(summary)
		c.IssueDate = deref(issueDate)
		c.Organization = deref(org)
		c.Topic = deref(topic)
		c.GuidanceStatus = deref(gStatus)
		c.DocketNumber = deref(docket)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unfinished: %w", err)
	}
	return out, nil
}

// ListForExtraction returns completed documents with a downloaded
// attachment and no feature row yet. An empty filter matches everything;
// otherwise it is a case-insensitive substring match on title, topic, or
// organization. A zero limit means no limit.
func (s *DocumentStore) ListForExtraction(ctx context.Context, filter string, limit int) ([]guidance.ExtractionSource, error) {
	query := `
SELECT ` + prefixedDocumentColumns("d") + `,
	a.filename, a.source_url, a.content, a.checksum
FROM documents d
JOIN attachments a ON a.document_id = d.id AND a.download_status = $1
LEFT JOIN document_features f ON f.document_id = d.id
WHERE d.processing_status = $2
	AND f.id IS NULL
	AND ($3 = '' OR d.title ILIKE '%' || $3 || '%'
		OR d.topic ILIKE '%' || $3 || '%'
		OR d.organization ILIKE '%' || $3 || '%')
ORDER BY d.created_at
LIMIT NULLIF($4, 0)`
	rows, err := s.pool.Query(ctx, query,
		guidance.DownloadCompleted, guidance.DocumentCompleted, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("list for extraction: %w", err)
	}
	defer rows.Close()

	var out []guidance.ExtractionSource
	for rows.Next() {
		var src guidance.ExtractionSource
		var checksum *string
		dests, finish := documentScanDests(&src.Document)
		dests = append(dests, &src.Filename, &src.SourceURL, &src.Content, &checksum)
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan extraction row: %w", err)
		}
		finish()
		src.Checksum = deref(checksum)
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list for extraction: %w", err)
	}
	return out, nil
}

// scan plumbing. Nullable text columns land in local temporaries; the
// returned finish func folds them back into the struct after Scan.

func documentScanDests(d *guidance.Document) ([]any, func()) {
	var attachmentURL, summary, issueDate, organization *string
	var topic, guidanceStatus, docketNumber *string
	dests := []any{
		&d.ID,
		&d.SessionID,
		&d.URL,
		&d.Title,
		&attachmentURL,
		&summary,
		&issueDate,
		&organization,
		&topic,
		&guidanceStatus,
		&docketNumber,
		&d.OpenForComment,
		&d.ProcessingStatus,
		&d.ProcessingError,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ProcessedAt,
	}
	finish := func() {
		d.AttachmentURL = deref(attachmentURL)
		d.Summary = deref(summary)
		d.IssueDate = deref(issueDate)
		d.Organization = deref(organization)
		d.Topic = deref(topic)
		d.GuidanceStatus = deref(guidanceStatus)
		d.DocketNumber = deref(docketNumber)
	}
	return dests, finish
}

func scanDocument(row pgx.Row) (guidance.Document, error) {
	var d guidance.Document
	dests, finish := documentScanDests(&d)
	if err := row.Scan(dests...); err != nil {
		return guidance.Document{}, err
	}
	finish()
	return d, nil
}

func scanAttachmentMeta(row pgx.Row) (guidance.Attachment, error) {
	var att guidance.Attachment
	var checksum *string
	err := row.Scan(
		&att.ID,
		&att.DocumentID,
		&att.Filename,
		&att.SourceURL,
		&checksum,
		&att.SizeBytes,
		&att.DownloadStatus,
		&att.DownloadError,
		&att.DownloadedAt,
	)
	if err != nil {
		return guidance.Attachment{}, err
	}
	att.Checksum = deref(checksum)
	return att, nil
}

func prefixedDocumentColumns(alias string) string {
	return alias + `.id, ` + alias + `.session_id, ` + alias + `.url, ` + alias + `.title, ` +
		alias + `.attachment_url, ` + alias + `.summary, ` + alias + `.issue_date, ` +
		alias + `.organization, ` + alias + `.topic, ` + alias + `.guidance_status, ` +
		alias + `.docket_number, ` + alias + `.open_for_comment, ` + alias + `.processing_status, ` +
		alias + `.processing_error, ` + alias + `.created_at, ` + alias + `.updated_at, ` +
		alias + `.processed_at`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
