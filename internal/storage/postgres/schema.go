package postgres

import (
	"context"
	"fmt"
)

// schemaDDL holds one statement per object so a failure points at the
// statement that broke.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ,
		total_documents INTEGER,
		processed_documents INTEGER NOT NULL DEFAULT 0,
		successful_downloads INTEGER NOT NULL DEFAULT 0,
		failed_documents INTEGER NOT NULL DEFAULT 0,
		concurrency_limit INTEGER NOT NULL DEFAULT 1,
		rate_limit DOUBLE PRECISION NOT NULL DEFAULT 1,
		test_limit INTEGER,
		error_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES sessions(id),
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		attachment_url TEXT,
		summary TEXT,
		issue_date TEXT,
		organization TEXT,
		topic TEXT,
		guidance_status TEXT,
		docket_number TEXT,
		open_for_comment BOOLEAN,
		processing_status TEXT NOT NULL DEFAULT 'pending',
		processing_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS documents_session_idx ON documents (session_id)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (processing_status)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id),
		filename TEXT NOT NULL,
		source_url TEXT NOT NULL,
		content BYTEA,
		checksum TEXT,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		download_status TEXT NOT NULL DEFAULT 'pending',
		download_error TEXT,
		downloaded_at TIMESTAMPTZ,
		UNIQUE (document_id, source_url)
	)`,
	`CREATE TABLE IF NOT EXISTS document_features (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL UNIQUE REFERENCES documents(id),
		session_id UUID NOT NULL,
		extracted_text TEXT,
		features JSONB NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		error_text TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema. All statements are idempotent, so running
// it against an initialized database is a no-op.
func Migrate(ctx context.Context, q querier) error {
	for _, stmt := range schemaDDL {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
