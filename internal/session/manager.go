// Package session manages crawl session lifecycle and progress counters.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

// Manager enforces the session state machine over a SessionStore.
// Allowed flow: running -> completed | failed | paused, and a resume
// takes failed or paused (never completed) back to running.
type Manager struct {
	store  guidance.SessionStore
	logger *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(store guidance.SessionStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// Begin creates a fresh running session and returns it. Invalid limits
// are rejected before anything is persisted; CLI flag overrides bypass
// config validation, so the gate lives here.
func (m *Manager) Begin(ctx context.Context, kind guidance.SessionKind, concurrency int, rateLimit float64, testLimit *int) (guidance.Session, error) {
	if concurrency <= 0 {
		return guidance.Session{}, &guidance.ConfigError{Field: "concurrency_limit", Reason: "must be > 0"}
	}
	if rateLimit <= 0 {
		return guidance.Session{}, &guidance.ConfigError{Field: "rate_limit", Reason: "must be > 0"}
	}
	id, err := m.store.Create(ctx, guidance.Session{
		Kind:             kind,
		ConcurrencyLimit: concurrency,
		RateLimit:        rateLimit,
		TestLimit:        testLimit,
	})
	if err != nil {
		return guidance.Session{}, fmt.Errorf("begin session: %w", err)
	}
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return guidance.Session{}, fmt.Errorf("load session: %w", err)
	}
	m.logger.Info("session started",
		zap.String("session_id", id.String()),
		zap.String("kind", string(kind)))
	return sess, nil
}

// Resume reopens an interrupted session. Completed sessions are final
// and cannot be resumed; counters carry over untouched so a resumed run
// accumulates on top of the earlier progress.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID) (guidance.Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return guidance.Session{}, err
	}
	if sess.Status == guidance.SessionCompleted {
		return guidance.Session{}, guidance.ErrSessionCompleted
	}
	if err := m.store.SetRunning(ctx, id); err != nil {
		return guidance.Session{}, fmt.Errorf("reopen session: %w", err)
	}
	sess.Status = guidance.SessionRunning
	sess.CompletedAt = nil
	m.logger.Info("session resumed",
		zap.String("session_id", id.String()),
		zap.Int("processed_so_far", sess.ProcessedDocuments))
	return sess, nil
}

// SetTotal records the listing size for this run.
func (m *Manager) SetTotal(ctx context.Context, id uuid.UUID, total int) error {
	return m.store.SetTotal(ctx, id, total)
}

// RecordProgress bumps the counters for one finished document.
func (m *Manager) RecordProgress(ctx context.Context, id uuid.UUID, success bool) {
	if err := m.store.RecordProgress(ctx, id, success); err != nil {
		// Progress is advisory; the document row already holds the
		// authoritative outcome.
		m.logger.Warn("failed to record progress",
			zap.String("session_id", id.String()),
			zap.Error(err))
	}
}

// Finish closes the session: completed on a clean run, failed with the
// error text otherwise.
func (m *Manager) Finish(ctx context.Context, id uuid.UUID, runErr error) error {
	if runErr == nil {
		if err := m.store.Complete(ctx, id); err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		m.logger.Info("session completed", zap.String("session_id", id.String()))
		return nil
	}
	if err := m.store.Fail(ctx, id, runErr.Error()); err != nil {
		return fmt.Errorf("fail session: %w", err)
	}
	m.logger.Warn("session failed",
		zap.String("session_id", id.String()),
		zap.Error(runErr))
	return nil
}

// Status returns the current session snapshot.
func (m *Manager) Status(ctx context.Context, id uuid.UUID) (guidance.Session, error) {
	return m.store.Get(ctx, id)
}
