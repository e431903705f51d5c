package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotoba/internal/keyword"
	"github.com/hyperjump/kotoba/internal/models"
	"github.com/hyperjump/kotoba/internal/storage"
)

// ErrNoLogStore is returned by log operations when no store is configured.
var ErrNoLogStore = errors.New("query log is disabled")

// record appends one handled request to the log. Failures are logged and do not
// fail the request.
func (e *Engine) record(ctx context.Context, q *models.AnalogyQuery, answer *string) {
	if e.logStore == nil || !e.cfg.Analogy.LogRequestsOrDefault() {
		return
	}
	entry := models.NewLogEntry(q.A, q.B, q.C, answer)
	if err := e.logStore.Append(ctx, entry); err != nil {
		e.logger.Warn("failed to append query log", zap.Error(err))
		return
	}
	if e.logIndex != nil {
		if err := e.logIndex.Index(ctx, entry); err != nil {
			e.logger.Warn("failed to index query log entry", zap.String("id", entry.ID), zap.Error(err))
		}
	}
}

// Logs returns logged requests in the order they were handled. limit <= 0 means all.
func (e *Engine) Logs(ctx context.Context, offset, limit int) ([]*models.LogEntry, error) {
	if e.logStore == nil {
		return []*models.LogEntry{}, nil
	}
	return e.logStore.List(ctx, offset, limit)
}

// SearchLogs finds logged requests whose words or answer match query, best first.
func (e *Engine) SearchLogs(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]models.LogHit, error) {
	if e.logStore == nil || e.logIndex == nil {
		return nil, ErrNoLogStore
	}
	hits, err := e.logIndex.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.LogHit, 0, len(hits))
	for _, h := range hits {
		entry, err := e.logStore.Get(ctx, h.ID)
		if errors.Is(err, storage.ErrNotFound) {
			// Index is ahead of a store that was truncated by hand.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, models.LogHit{Entry: entry, Score: h.Score})
	}
	return out, nil
}

// RebuildLogIndex indexes every stored entry when the log index is missing some.
// It returns the number of entries indexed.
func (e *Engine) RebuildLogIndex(ctx context.Context) (int, error) {
	if e.logStore == nil || e.logIndex == nil {
		return 0, nil
	}
	stored, err := e.logStore.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count log entries: %w", err)
	}
	indexed, err := e.logIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count indexed entries: %w", err)
	}
	if uint64(stored) == indexed {
		return 0, nil
	}

	entries, err := e.logStore.List(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	if err := e.logIndex.IndexAll(ctx, entries); err != nil {
		return 0, err
	}
	e.logger.Info("query log index rebuilt", zap.Int("entries", len(entries)))
	return len(entries), nil
}
