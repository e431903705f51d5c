// Package storage persists the append-only log of handled analogy requests.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotoba/internal/models"
)

// ErrNotFound is returned by Get for an unknown entry id.
var ErrNotFound = errors.New("log entry not found")

// LogStore is an append-only log. List replays entries in append order.
type LogStore interface {
	// Append stores entry and sets its Seq (and ID when empty).
	Append(ctx context.Context, entry *models.LogEntry) error
	// List returns entries in append order. limit <= 0 means all remaining entries.
	List(ctx context.Context, offset, limit int) ([]*models.LogEntry, error)
	Get(ctx context.Context, id string) (*models.LogEntry, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Backend names a LogStore implementation.
type Backend string

const (
	// BackendJSON keeps the log in a single JSON file of [A, B, C, D|null] rows.
	BackendJSON Backend = "json"
	// BackendSQLite keeps the log in a SQLite database.
	BackendSQLite Backend = "sqlite"
)

// Options selects and locates a LogStore.
type Options struct {
	Backend      string
	JSONPath     string
	DatabasePath string
}

// NewLogStore opens the configured backend. Empty Backend means json.
func NewLogStore(opts Options) (LogStore, error) {
	switch Backend(opts.Backend) {
	case BackendJSON, "":
		s, err := NewJSONStorage(opts.JSONPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := NewSQLiteStorage(opts.DatabasePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: json, sqlite)", opts.Backend)
	}
}

// Path returns the file the configured backend writes to.
func (o Options) Path() string {
	if Backend(o.Backend) == BackendSQLite {
		return o.DatabasePath
	}
	return o.JSONPath
}

func window(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
