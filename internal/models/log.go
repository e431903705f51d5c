// Package models defines the data structures shared by the engine, storage and HTTP layers.
package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one handled analogy request: A is to B as C is to Answer.
// Answer is nil when no answer was found.
type LogEntry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Word1     string    `json:"word1"`
	Word2     string    `json:"word2"`
	Word3     string    `json:"word3"`
	Answer    *string   `json:"answer"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NewLogEntry creates an entry with a fresh id and the current time.
func NewLogEntry(w1, w2, w3 string, answer *string) *LogEntry {
	return &LogEntry{
		ID:        uuid.NewString(),
		Word1:     w1,
		Word2:     w2,
		Word3:     w3,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
}

// Tuple returns the entry in the [A, B, C, D|null] shape served by /logs.
func (e *LogEntry) Tuple() [4]*string {
	w1, w2, w3 := e.Word1, e.Word2, e.Word3
	return [4]*string{&w1, &w2, &w3, e.Answer}
}

// Text is the searchable text of the entry.
func (e *LogEntry) Text() string {
	parts := []string{e.Word1, e.Word2, e.Word3}
	if e.Answer != nil {
		parts = append(parts, *e.Answer)
	}
	return strings.Join(parts, " ")
}

// logNamespace scopes ids derived from a log position.
var logNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/kotoba/log"))

// SeqID returns the stable id of the entry at 1-based position seq, for stores
// that only persist positions.
func SeqID(seq int64) string {
	return uuid.NewSHA1(logNamespace, []byte(strconv.FormatInt(seq, 10))).String()
}

// LogHit is a query log entry matched by a log search.
type LogHit struct {
	Entry *LogEntry `json:"entry"`
	Score float64   `json:"score"`
}
