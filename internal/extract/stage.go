package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/config"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/session"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/telemetry"
)

const partialConfidence = 0.3

// Stage runs feature extraction for one document at a time: attachment
// text, a model call with retries, validation, and persistence. Safe
// for concurrent use.
type Stage struct {
	features guidance.FeatureStore
	sessions *session.Manager
	text     guidance.TextExtractor
	model    guidance.FeatureModel
	cfg      config.ExtractionConfig
	weights  map[string]float64
	schema   *gojsonschema.Schema
	logger   *zap.Logger
}

// NewStage constructs a Stage. Configured weights override the default
// per-field entries; fields without an override keep their default.
func NewStage(
	features guidance.FeatureStore,
	sessions *session.Manager,
	text guidance.TextExtractor,
	model guidance.FeatureModel,
	cfg config.ExtractionConfig,
	logger *zap.Logger,
) (*Stage, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(featuresSchema))
	if err != nil {
		return nil, fmt.Errorf("compile features schema: %w", err)
	}
	weights := DefaultWeights()
	for field, w := range cfg.ConfidenceWeights {
		weights[field] = w
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		features: features,
		sessions: sessions,
		text:     text,
		model:    model,
		cfg:      cfg,
		weights:  weights,
		schema:   schema,
		logger:   logger,
	}, nil
}

// ExtractDocument runs the full extraction pipeline for one harvested
// document. Every outcome is persisted so the document never reappears
// in later extraction runs; the returned error reports a failed
// document, not an aborted run.
func (s *Stage) ExtractDocument(ctx context.Context, sessionID uuid.UUID, src guidance.ExtractionSource) error {
	log := s.logger.With(
		zap.String("document_id", src.Document.ID.String()),
		zap.String("filename", src.Filename),
	)

	textRes, err := s.text.ExtractText(src.Content)
	if err != nil {
		return s.fail(ctx, sessionID, src, "", fmt.Errorf("extract text: %w", err), log)
	}
	if len(textRes.Text) < s.cfg.MinTextChars {
		err := fmt.Errorf("extracted text too short: %d chars (minimum %d)", len(textRes.Text), s.cfg.MinTextChars)
		return s.fail(ctx, sessionID, src, textRes.Text, err, log)
	}

	payload := guidance.ExtractionPayload{
		Title: src.Document.Title,
		URL:   src.Document.URL,
		Metadata: map[string]string{
			"organization":    src.Document.Organization,
			"issue_date":      src.Document.IssueDate,
			"topic":           src.Document.Topic,
			"guidance_status": src.Document.GuidanceStatus,
		},
		Text: textRes.Text,
	}

	raw, err := s.callModel(ctx, payload, log)
	if err != nil {
		return s.fail(ctx, sessionID, src, textRes.Text, fmt.Errorf("model call: %w", err), log)
	}

	rec, err := s.buildRecord(sessionID, src, textRes.Text, raw)
	if err != nil {
		return s.fail(ctx, sessionID, src, textRes.Text, err, log)
	}

	if err := s.features.Insert(ctx, rec); err != nil {
		return s.fail(ctx, sessionID, src, textRes.Text, fmt.Errorf("store features: %w", err), log)
	}

	s.sessions.RecordProgress(ctx, sessionID, true)
	telemetry.ObserveExtraction(string(rec.Status))
	log.Info("Extracted document features",
		zap.String("status", string(rec.Status)),
		zap.Float64("confidence", rec.ConfidenceScore),
		zap.Int("pages", textRes.PageCount),
		zap.Bool("truncated", textRes.Truncated),
	)
	return nil
}

// callModel retries transient model failures with exponential backoff.
// Only the model call retries; parsing failures are not transient.
func (s *Stage) callModel(ctx context.Context, payload guidance.ExtractionPayload, log *zap.Logger) (string, error) {
	var lastErr error
	attempts := s.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			telemetry.ObserveModelRetry()
			delay := s.cfg.RetryDelay() * time.Duration(1<<(attempt-1))
			log.Warn("Retrying model call",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
		raw, err := s.model.Extract(ctx, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// buildRecord parses and validates the model response. A response that
// fails schema validation is salvaged field by field into a partial
// record rather than discarded.
func (s *Stage) buildRecord(sessionID uuid.UUID, src guidance.ExtractionSource, text, raw string) (guidance.FeatureRecord, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return guidance.FeatureRecord{}, fmt.Errorf("parse model response: %w", err)
	}

	// Some responses wrap the fields in a "features" envelope.
	if inner, ok := parsed["features"].(map[string]any); ok {
		parsed = inner
	}

	features := flatten(parsed)

	rec := guidance.FeatureRecord{
		DocumentID:    src.Document.ID,
		SessionID:     sessionID,
		ExtractedText: text,
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(features))
	if err != nil {
		return guidance.FeatureRecord{}, fmt.Errorf("validate model response: %w", err)
	}

	if result.Valid() {
		reported, ok := modelConfidence(features["confidence_score"])
		delete(features, "confidence_score")
		rec.Features = features
		if ok {
			rec.ConfidenceScore = reported
		} else {
			rec.ConfidenceScore = scoreConfidence(features, s.weights)
		}
		rec.Status = guidance.ExtractionCompleted
		return rec, nil
	}

	kept := salvage(features)
	if len(kept) == 0 {
		return guidance.FeatureRecord{}, fmt.Errorf("model response failed validation: %s", validationErrors(result))
	}
	note := fmt.Sprintf("partial extraction, validation errors: %s", validationErrors(result))
	rec.Features = kept
	rec.ConfidenceScore = partialConfidence
	rec.Status = guidance.ExtractionPartial
	rec.ErrorText = &note
	return rec, nil
}

// fail persists a failed record so the document is not retried on the
// next run, then records the failure against the session.
func (s *Stage) fail(ctx context.Context, sessionID uuid.UUID, src guidance.ExtractionSource, text string, cause error, log *zap.Logger) error {
	errText := cause.Error()
	rec := guidance.FeatureRecord{
		DocumentID:    src.Document.ID,
		SessionID:     sessionID,
		ExtractedText: text,
		Features:      map[string]any{},
		Status:        guidance.ExtractionFailed,
		ErrorText:     &errText,
	}
	if err := s.features.Insert(ctx, rec); err != nil {
		log.Warn("Failed to persist extraction failure", zap.Error(err))
	}
	s.sessions.RecordProgress(ctx, sessionID, false)
	telemetry.ObserveExtraction("failed")
	log.Warn("Extraction failed", zap.Error(cause))
	return cause
}

func validationErrors(result *gojsonschema.Result) string {
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	if len(msgs) > 3 {
		msgs = msgs[:3]
	}
	out := ""
	for i, m := range msgs {
		if i > 0 {
			out += "; "
		}
		out += m
	}
	return out
}
