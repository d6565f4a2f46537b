package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

// SessionStore implements guidance.SessionStore on Postgres.
type SessionStore struct {
	pool querier
}

// NewSessionStore constructs a store over an existing pool.
func NewSessionStore(pool querier) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SessionStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *SessionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new session row and returns its generated ID.
func (s *SessionStore) Create(ctx context.Context, session guidance.Session) (uuid.UUID, error) {
	id := session.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
INSERT INTO sessions (id, kind, status, started_at, concurrency_limit, rate_limit, test_limit)
VALUES ($1, $2, $3, now(), $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		id,
		session.Kind,
		guidance.SessionRunning,
		session.ConcurrencyLimit,
		session.RateLimit,
		session.TestLimit,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// Get loads a session by ID.
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (guidance.Session, error) {
	query := `
SELECT id, kind, status, started_at, completed_at, total_documents,
	processed_documents, successful_downloads, failed_documents,
	concurrency_limit, rate_limit, test_limit, error_count, last_error
FROM sessions WHERE id = $1`
	var sess guidance.Session
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sess.ID,
		&sess.Kind,
		&sess.Status,
		&sess.StartedAt,
		&sess.CompletedAt,
		&sess.TotalDocuments,
		&sess.ProcessedDocuments,
		&sess.SuccessfulDownloads,
		&sess.FailedDocuments,
		&sess.ConcurrencyLimit,
		&sess.RateLimit,
		&sess.TestLimit,
		&sess.ErrorCount,
		&sess.LastError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return guidance.Session{}, guidance.ErrSessionNotFound
	}
	if err != nil {
		return guidance.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// SetRunning moves a resumed session back into the running state.
func (s *SessionStore) SetRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET status = $2, completed_at = NULL WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, guidance.SessionRunning)
	if err != nil {
		return fmt.Errorf("set session running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return guidance.ErrSessionNotFound
	}
	return nil
}

// SetTotal records how many documents the listing produced for this run.
func (s *SessionStore) SetTotal(ctx context.Context, id uuid.UUID, total int) error {
	query := `UPDATE sessions SET total_documents = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, total)
	if err != nil {
		return fmt.Errorf("set session total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return guidance.ErrSessionNotFound
	}
	return nil
}

// RecordProgress atomically bumps the processed counter plus exactly one
// of the success/failure counters. Updates against sessions already in a
// terminal state are dropped silently; a worker finishing after a crash
// marked the session failed must not disturb the final tallies.
func (s *SessionStore) RecordProgress(ctx context.Context, id uuid.UUID, success bool) error {
	query := `
UPDATE sessions SET
	processed_documents = processed_documents + 1,
	successful_downloads = successful_downloads + CASE WHEN $2 THEN 1 ELSE 0 END,
	failed_documents = failed_documents + CASE WHEN $2 THEN 0 ELSE 1 END
WHERE id = $1 AND status IN ($3, $4)`
	_, err := s.pool.Exec(ctx, query, id, success, guidance.SessionRunning, guidance.SessionPaused)
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	return nil
}

// Complete marks a session finished.
func (s *SessionStore) Complete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET status = $2, completed_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, guidance.SessionCompleted)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return guidance.ErrSessionNotFound
	}
	return nil
}

// Fail marks a session failed and records the triggering error.
func (s *SessionStore) Fail(ctx context.Context, id uuid.UUID, errText string) error {
	query := `
UPDATE sessions SET status = $2, completed_at = now(),
	error_count = error_count + 1, last_error = $3
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, guidance.SessionFailed, errText)
	if err != nil {
		return fmt.Errorf("fail session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return guidance.ErrSessionNotFound
	}
	return nil
}
