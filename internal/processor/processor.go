// Package processor runs the per-document harvest pipeline: dedup
// check, detail enrichment, persistence, and attachment download.
package processor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/fetch"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/hash/sha256"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/session"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/telemetry"
)

// Processor executes the pipeline for one candidate at a time. It is
// safe for concurrent use; all state lives in the stores.
type Processor struct {
	docs        guidance.DocumentStore
	sessions    *session.Manager
	detail      guidance.DetailFetcher
	attachments guidance.AttachmentFetcher
	logger      *zap.Logger
}

// New constructs a Processor.
func New(
	docs guidance.DocumentStore,
	sessions *session.Manager,
	detail guidance.DetailFetcher,
	attachments guidance.AttachmentFetcher,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		docs:        docs,
		sessions:    sessions,
		detail:      detail,
		attachments: attachments,
		logger:      logger,
	}
}

// Process runs one candidate through the pipeline. Every outcome is
// recorded against the session; the returned error reports a failed
// document, not an aborted run.
func (p *Processor) Process(ctx context.Context, sessionID uuid.UUID, cand guidance.Candidate) error {
	log := p.logger.With(zap.String("url", cand.URL))

	done, err := p.docs.IsCompleted(ctx, cand.URL)
	if err != nil {
		p.sessions.RecordProgress(ctx, sessionID, false)
		telemetry.ObserveDocument("failed", 0)
		return fmt.Errorf("dedup check: %w", err)
	}
	if done {
		log.Debug("document already completed, skipping")
		p.sessions.RecordProgress(ctx, sessionID, true)
		telemetry.ObserveDocument("skipped", 0)
		return nil
	}

	// Detail enrichment is best-effort: the listing row alone is enough
	// to persist the document.
	if detail, err := p.detail.FetchDetail(ctx, cand.URL); err != nil {
		log.Warn("detail fetch failed, using listing data only", zap.Error(err))
	} else {
		cand = cand.Merge(detail)
	}

	doc, err := p.docs.Upsert(ctx, cand, sessionID)
	if err != nil {
		p.sessions.RecordProgress(ctx, sessionID, false)
		telemetry.ObserveDocument("failed", 0)
		return fmt.Errorf("persist document: %w", err)
	}

	if err := p.docs.TransitionStatus(ctx, doc.ID, guidance.DocumentProcessing, ""); err != nil {
		log.Warn("failed to mark document processing", zap.Error(err))
	}

	downloaded, err := p.handleAttachment(ctx, doc, cand)
	if err != nil {
		if terr := p.docs.TransitionStatus(ctx, doc.ID, guidance.DocumentFailed, err.Error()); terr != nil {
			log.Warn("failed to mark document failed", zap.Error(terr))
		}
		p.sessions.RecordProgress(ctx, sessionID, false)
		telemetry.ObserveDocument("failed", 0)
		log.Warn("document failed", zap.Error(err))
		return err
	}

	if err := p.docs.TransitionStatus(ctx, doc.ID, guidance.DocumentCompleted, ""); err != nil {
		p.sessions.RecordProgress(ctx, sessionID, false)
		telemetry.ObserveDocument("failed", 0)
		return fmt.Errorf("mark document completed: %w", err)
	}
	p.sessions.RecordProgress(ctx, sessionID, true)
	telemetry.ObserveDocument("success", downloaded)
	log.Info("document completed", zap.Int("attachment_bytes", downloaded))
	return nil
}

// handleAttachment downloads and stores the attachment unless an intact
// copy is already there. Returns the number of freshly downloaded bytes.
func (p *Processor) handleAttachment(ctx context.Context, doc guidance.Document, cand guidance.Candidate) (int, error) {
	url := cand.AttachmentURL
	if url == "" {
		return 0, fmt.Errorf("no attachment url discovered")
	}

	if existing, err := p.docs.FindAttachment(ctx, doc.ID, url); err == nil &&
		existing.DownloadStatus == guidance.DownloadCompleted {
		p.logger.Debug("attachment already stored",
			zap.String("url", url),
			zap.String("checksum", existing.Checksum))
		return 0, nil
	}

	data, err := p.attachments.Download(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("download attachment: %w", err)
	}

	att := guidance.Attachment{
		DocumentID:     doc.ID,
		Filename:       fetch.AttachmentFilename(cand.Title, cand.IssueDate, url),
		SourceURL:      url,
		Content:        data,
		Checksum:       sha256.Sum(data),
		SizeBytes:      int64(len(data)),
		DownloadStatus: guidance.DownloadCompleted,
	}
	if _, err := p.docs.StoreAttachment(ctx, att); err != nil {
		return 0, fmt.Errorf("store attachment: %w", err)
	}
	return len(data), nil
}
