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

func TestFeatureStoreInsertMarshalsFeatures(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFeatureStore(mock)
	require.NoError(t, err)

	docID := uuid.New()
	sessionID := uuid.New()
	mock.ExpectExec("INSERT INTO document_features").
		WithArgs(
			pgxmock.AnyArg(),
			docID,
			sessionID,
			"extracted text",
			[]byte(`{"device_classification":"Class II"}`),
			0.2,
			guidance.ExtractionCompleted,
			(*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Insert(context.Background(), guidance.FeatureRecord{
		DocumentID:      docID,
		SessionID:       sessionID,
		ExtractedText:   "extracted text",
		Features:        map[string]any{"device_classification": "Class II"},
		ConfidenceScore: 0.2,
		Status:          guidance.ExtractionCompleted,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureStoreInsertDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFeatureStore(mock)
	require.NoError(t, err)

	docID := uuid.New()
	mock.ExpectExec("INSERT INTO document_features").
		WithArgs(
			pgxmock.AnyArg(), docID, uuid.Nil, "",
			[]byte(`null`), 0.0, guidance.ExtractionCompleted, (*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = store.Insert(context.Background(), guidance.FeatureRecord{
		DocumentID: docID,
		Status:     guidance.ExtractionCompleted,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureStoreGetByDocument(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFeatureStore(mock)
	require.NoError(t, err)

	docID := uuid.New()
	created := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "document_id", "session_id", "extracted_text", "features",
		"confidence_score", "status", "error_text", "created_at",
	}).AddRow(
		uuid.New(), docID, uuid.New(), "text",
		[]byte(`{"device_type":"infusion pump","standards_referenced":["ISO 14971"]}`),
		0.35, guidance.ExtractionPartial, (*string)(nil), created,
	)
	mock.ExpectQuery("SELECT (.+) FROM document_features").
		WithArgs(docID).
		WillReturnRows(rows)

	rec, err := store.GetByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, guidance.ExtractionPartial, rec.Status)
	require.Equal(t, "infusion pump", rec.Features["device_type"])
	require.InDelta(t, 0.35, rec.ConfidenceScore, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureStoreGetByDocumentNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFeatureStore(mock)
	require.NoError(t, err)

	docID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM document_features").
		WithArgs(docID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = store.GetByDocument(context.Background(), docID)
	require.ErrorIs(t, err, guidance.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
