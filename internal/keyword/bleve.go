// Package keyword provides full-text search over the query log using Bleve.
package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kotoba/internal/models"
)

const (
	fieldWords  = "words"
	fieldAnswer = "answer"
)

// SearchOptions optional parameters for log search. Nil means use defaults.
type SearchOptions struct {
	// AnswerOnly restricts matching to the answer field.
	AnswerOnly bool
	// Fuzzy enables typo-tolerant matching within Fuzziness edits (default 1).
	Fuzzy     bool
	Fuzziness int
}

// Result is a single log search hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// BleveIndex indexes log entries by their words and answer.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so "kings" does not match "king".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldWords, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldAnswer, textFieldMapping)
	im.AddDocumentMapping("entry", docMapping)
	im.DefaultType = "entry"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an
// in-memory index, which is rebuilt from the log store at startup.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func document(e *models.LogEntry) map[string]any {
	doc := map[string]any{
		fieldWords: strings.Join([]string{e.Word1, e.Word2, e.Word3}, " "),
	}
	if e.Answer != nil {
		doc[fieldAnswer] = *e.Answer
	}
	return doc
}

// Index indexes (or re-indexes) one log entry under its id.
func (b *BleveIndex) Index(ctx context.Context, e *models.LogEntry) error {
	return b.index.Index(e.ID, document(e))
}

// IndexAll indexes entries in a single batch. Existing ids are overwritten.
func (b *BleveIndex) IndexAll(ctx context.Context, entries []*models.LogEntry) error {
	batch := b.index.NewBatch()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(e.ID, document(e)); err != nil {
			return fmt.Errorf("failed to batch entry %s: %w", e.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index log batch: %w", err)
	}
	return nil
}

// Search runs a match query over the log and returns up to limit hits, best first.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	field := ""
	fuzzy, fuzziness := false, 1
	if opts != nil {
		if opts.AnswerOnly {
			field = fieldAnswer
		}
		fuzzy = opts.Fuzzy
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var q blevequery.Query
	if fuzzy {
		q = buildFuzzyQuery(query, fuzziness, field)
	} else {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		q = mq
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term.
// If field is empty, all fields are searched.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(queryStr))
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}

	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes an entry from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed entries.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
