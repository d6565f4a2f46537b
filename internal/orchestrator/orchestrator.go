// Package orchestrator wires listing acquisition, the worker pool, and
// the per-document pipelines into complete harvest and extraction runs.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/config"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/extract"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/logging"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/processor"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/session"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/worker"
)

// Orchestrator coordinates full runs. The extraction stage is optional;
// harvest-only deployments leave it nil.
type Orchestrator struct {
	cfg      config.Config
	listing  guidance.ListingStrategy
	docs     guidance.DocumentStore
	sessions *session.Manager
	proc     *processor.Processor
	stage    *extract.Stage
	logger   *zap.Logger
}

// New constructs an Orchestrator.
func New(
	cfg config.Config,
	listing guidance.ListingStrategy,
	docs guidance.DocumentStore,
	sessions *session.Manager,
	proc *processor.Processor,
	stage *extract.Stage,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		listing:  listing,
		docs:     docs,
		sessions: sessions,
		proc:     proc,
		stage:    stage,
		logger:   logger,
	}
}

// Crawl acquires the catalog listing and runs every candidate through
// the harvest pipeline under a new session. Individual document
// failures are counted, not fatal; only listing acquisition failure or
// cancellation fails the run.
func (o *Orchestrator) Crawl(ctx context.Context) (guidance.Session, error) {
	limit := o.cfg.Crawler.TestLimit
	cands, err := o.listing.Acquire(ctx, limit)
	if err != nil {
		return guidance.Session{}, fmt.Errorf("acquire listing: %w", err)
	}

	var testLimit *int
	if limit > 0 {
		testLimit = &limit
	}
	sess, err := o.sessions.Begin(ctx, guidance.SessionKindHarvest, o.cfg.Crawler.Concurrency, o.cfg.Crawler.RateLimit, testLimit)
	if err != nil {
		return guidance.Session{}, fmt.Errorf("begin session: %w", err)
	}

	log := logging.ForSession(o.logger, sess.ID.String())
	log.Info("Starting harvest run", zap.Int("candidates", len(cands)))

	if err := o.sessions.SetTotal(ctx, sess.ID, len(cands)); err != nil {
		log.Warn("Failed to record total", zap.Error(err))
	}

	return o.runHarvest(ctx, sess.ID, cands, o.cfg.Crawler.Concurrency, o.cfg.Crawler.RateLimit, log)
}

// Resume picks up an interrupted harvest session and reprocesses only
// its unfinished documents. Counters carry over from the earlier run.
func (o *Orchestrator) Resume(ctx context.Context, id uuid.UUID) (guidance.Session, error) {
	sess, err := o.sessions.Resume(ctx, id)
	if err != nil {
		return guidance.Session{}, err
	}

	cands, err := o.docs.ListUnfinishedURLs(ctx, id)
	if err != nil {
		return guidance.Session{}, fmt.Errorf("list unfinished documents: %w", err)
	}

	concurrency := sess.ConcurrencyLimit
	if concurrency <= 0 {
		concurrency = o.cfg.Crawler.Concurrency
	}
	rateLimit := sess.RateLimit
	if rateLimit <= 0 {
		rateLimit = o.cfg.Crawler.RateLimit
	}

	log := logging.ForSession(o.logger, sess.ID.String())
	log.Info("Resuming harvest run", zap.Int("unfinished", len(cands)))

	return o.runHarvest(ctx, sess.ID, cands, concurrency, rateLimit, log)
}

func (o *Orchestrator) runHarvest(ctx context.Context, sessionID uuid.UUID, cands []guidance.Candidate, concurrency int, rateLimit float64, log *zap.Logger) (guidance.Session, error) {
	pool, err := worker.New(worker.Config{Concurrency: concurrency, RateLimit: rateLimit}, log)
	if err != nil {
		return o.abort(ctx, sessionID, fmt.Errorf("build worker pool: %w", err), log)
	}

	outcomes := pool.Run(ctx, len(cands), func(ctx context.Context, i int) error {
		return o.proc.Process(ctx, sessionID, cands[i])
	})

	return o.finish(ctx, sessionID, outcomes, log)
}

// Extract runs the feature-extraction stage over completed documents
// that have no feature record yet, optionally filtered by a metadata
// substring and capped at limit documents.
func (o *Orchestrator) Extract(ctx context.Context, filter string, limit int) (guidance.Session, error) {
	if o.stage == nil {
		return guidance.Session{}, fmt.Errorf("extraction stage is not configured")
	}

	sources, err := o.docs.ListForExtraction(ctx, filter, limit)
	if err != nil {
		return guidance.Session{}, fmt.Errorf("list documents for extraction: %w", err)
	}

	var testLimit *int
	if limit > 0 {
		testLimit = &limit
	}
	sess, err := o.sessions.Begin(ctx, guidance.SessionKindExtract, o.cfg.Extraction.Concurrency, o.cfg.Extraction.RateLimit, testLimit)
	if err != nil {
		return guidance.Session{}, fmt.Errorf("begin session: %w", err)
	}

	log := logging.ForSession(o.logger, sess.ID.String())
	log.Info("Starting extraction run", zap.Int("documents", len(sources)))

	if err := o.sessions.SetTotal(ctx, sess.ID, len(sources)); err != nil {
		log.Warn("Failed to record total", zap.Error(err))
	}

	pool, err := worker.New(worker.Config{
		Concurrency: o.cfg.Extraction.Concurrency,
		RateLimit:   o.cfg.Extraction.RateLimit,
	}, log)
	if err != nil {
		return o.abort(ctx, sess.ID, fmt.Errorf("build worker pool: %w", err), log)
	}

	outcomes := pool.Run(ctx, len(sources), func(ctx context.Context, i int) error {
		return o.stage.ExtractDocument(ctx, sess.ID, sources[i])
	})

	return o.finish(ctx, sess.ID, outcomes, log)
}

// Status returns the current state of a session.
func (o *Orchestrator) Status(ctx context.Context, id uuid.UUID) (guidance.Session, error) {
	return o.sessions.Status(ctx, id)
}

// abort fails the session when the run dies before its first dispatch,
// so an already-created session is never stranded in running.
func (o *Orchestrator) abort(ctx context.Context, sessionID uuid.UUID, cause error, log *zap.Logger) (guidance.Session, error) {
	storeCtx := context.WithoutCancel(ctx)
	if err := o.sessions.Finish(storeCtx, sessionID, cause); err != nil {
		log.Warn("Failed to finalize session", zap.Error(err))
	}
	return guidance.Session{}, cause
}

// finish closes out the session. The final status write uses a context
// detached from cancellation so an interrupted run still persists as
// failed rather than vanishing mid-flight.
func (o *Orchestrator) finish(ctx context.Context, sessionID uuid.UUID, outcomes []worker.Outcome, log *zap.Logger) (guidance.Session, error) {
	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		}
	}

	runErr := ctx.Err()
	storeCtx := context.WithoutCancel(ctx)
	if err := o.sessions.Finish(storeCtx, sessionID, runErr); err != nil {
		log.Warn("Failed to finalize session", zap.Error(err))
	}

	sess, err := o.sessions.Status(storeCtx, sessionID)
	if err != nil {
		return guidance.Session{}, fmt.Errorf("load final session state: %w", err)
	}

	log.Info("Run finished",
		zap.String("status", string(sess.Status)),
		zap.Int("documents", len(outcomes)),
		zap.Int("failed", failed),
	)
	if runErr != nil {
		return sess, runErr
	}
	return sess, nil
}
