package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kotoba/internal/models"
)

// JSONStorage keeps the log as a JSON array of [A, B, C, D|null] rows, the format
// earlier versions of the service wrote to db.json. Only positions are persisted,
// so entry ids are derived from them (models.SeqID) and timestamps are not kept.
type JSONStorage struct {
	path    string
	mu      sync.RWMutex
	entries []*models.LogEntry
}

// NewJSONStorage loads path if it exists. Parent directories are created if needed.
func NewJSONStorage(path string) (*JSONStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("json storage path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	s := &JSONStorage{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStorage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read log file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var rows [][]*string
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse log file %s: %w", s.path, err)
	}
	s.entries = make([]*models.LogEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) != 4 {
			return fmt.Errorf("log file %s: row %d has %d fields, want 4", s.path, i, len(row))
		}
		seq := int64(i + 1)
		s.entries = append(s.entries, &models.LogEntry{
			ID:     models.SeqID(seq),
			Seq:    seq,
			Word1:  deref(row[0]),
			Word2:  deref(row[1]),
			Word3:  deref(row[2]),
			Answer: row[3],
		})
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Append adds entry and rewrites the file.
func (s *JSONStorage) Append(ctx context.Context, entry *models.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Seq = int64(len(s.entries) + 1)
	entry.ID = models.SeqID(entry.Seq)
	s.entries = append(s.entries, entry)
	if err := s.flush(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return err
	}
	return nil
}

// flush writes all rows to a temporary file and renames it over the log.
func (s *JSONStorage) flush() error {
	rows := make([][4]*string, len(s.entries))
	for i, e := range s.entries {
		rows[i] = e.Tuple()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".log-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp log file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace log file: %w", err)
	}
	return nil
}

// List returns entries in append order.
func (s *JSONStorage) List(ctx context.Context, offset, limit int) ([]*models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, end := window(len(s.entries), offset, limit)
	out := make([]*models.LogEntry, end-start)
	copy(out, s.entries[start:end])
	return out, nil
}

// Get returns the entry with the given id.
func (s *JSONStorage) Get(ctx context.Context, id string) (*models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Count returns the number of entries.
func (s *JSONStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close is a no-op; every Append is already on disk.
func (s *JSONStorage) Close() error {
	return nil
}
