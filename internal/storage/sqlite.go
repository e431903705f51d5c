package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotoba/internal/models"
)

// SQLiteStorage implements LogStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		word1 TEXT NOT NULL,
		word2 TEXT NOT NULL,
		word3 TEXT NOT NULL,
		answer TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Append inserts entry. A missing id is generated.
func (s *SQLiteStorage) Append(ctx context.Context, entry *models.LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	var answer sql.NullString
	if entry.Answer != nil {
		answer = sql.NullString{String: *entry.Answer, Valid: true}
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (id, word1, word2, word3, answer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Word1, entry.Word2, entry.Word3, answer, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.Seq = seq
	return nil
}

const selectEntry = `SELECT seq, id, word1, word2, word3, answer, created_at FROM query_log`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.LogEntry, error) {
	var e models.LogEntry
	var answer sql.NullString
	if err := row.Scan(&e.Seq, &e.ID, &e.Word1, &e.Word2, &e.Word3, &answer, &e.CreatedAt); err != nil {
		return nil, err
	}
	if answer.Valid {
		a := answer.String
		e.Answer = &a
	}
	return &e, nil
}

// List returns entries in append order.
func (s *SQLiteStorage) List(ctx context.Context, offset, limit int) ([]*models.LogEntry, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, selectEntry+` ORDER BY seq LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.LogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns an entry by id.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*models.LogEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Count returns the total number of entries.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_log`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
