package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

// FeatureStore implements guidance.FeatureStore on Postgres.
type FeatureStore struct {
	pool querier
}

// NewFeatureStore constructs a store over an existing pool.
func NewFeatureStore(pool querier) (*FeatureStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &FeatureStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *FeatureStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Insert writes one feature row per document. A second insert for the
// same document is a no-op, which makes extraction retries idempotent.
func (s *FeatureStore) Insert(ctx context.Context, rec guidance.FeatureRecord) error {
	if rec.DocumentID == uuid.Nil {
		return fmt.Errorf("feature record document id is required")
	}
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
INSERT INTO document_features (id, document_id, session_id, extracted_text,
	features, confidence_score, status, error_text, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (document_id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		id,
		rec.DocumentID,
		rec.SessionID,
		rec.ExtractedText,
		features,
		rec.ConfidenceScore,
		rec.Status,
		rec.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("insert features: %w", err)
	}
	return nil
}

// GetByDocument loads the feature row for a document.
func (s *FeatureStore) GetByDocument(ctx context.Context, documentID uuid.UUID) (guidance.FeatureRecord, error) {
	query := `
SELECT id, document_id, session_id, extracted_text, features,
	confidence_score, status, error_text, created_at
FROM document_features WHERE document_id = $1`
	var rec guidance.FeatureRecord
	var features []byte
	err := s.pool.QueryRow(ctx, query, documentID).Scan(
		&rec.ID,
		&rec.DocumentID,
		&rec.SessionID,
		&rec.ExtractedText,
		&features,
		&rec.ConfidenceScore,
		&rec.Status,
		&rec.ErrorText,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return guidance.FeatureRecord{}, guidance.ErrNotFound
	}
	if err != nil {
		return guidance.FeatureRecord{}, fmt.Errorf("get features: %w", err)
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &rec.Features); err != nil {
			return guidance.FeatureRecord{}, fmt.Errorf("unmarshal features: %w", err)
		}
	}
	return rec, nil
}
