// Package analogy answers "A is to B as C is to ?" queries by vector arithmetic
// over a vocabulary followed by a nearest-neighbor lookup.
package analogy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/kotoba/internal/vector"
	"github.com/hyperjump/kotoba/internal/vocab"
)

// DefaultTopK is the number of neighbors fetched per analogy.
const DefaultTopK = 4

// Vocabulary is the read side of a vocab.Store the solver needs.
type Vocabulary interface {
	VectorOf(word string) ([]float32, error)
	WordOf(id int) string
	Dim() int
}

// Suggester proposes known words close to an unknown one.
type Suggester interface {
	Suggest(word string) []string
}

// Solver turns three operand words into ranked analogy completions.
// It is safe for concurrent use.
type Solver struct {
	vocab     Vocabulary
	index     vector.Index
	cache     *Cache
	suggester Suggester
}

// Option configures a Solver.
type Option func(*Solver)

// WithCache enables an LRU cache of answers. size <= 0 disables it.
func WithCache(size int) Option {
	return func(s *Solver) {
		if size > 0 {
			s.cache = NewCache(size)
		}
	}
}

// WithSuggester fills UnknownWordError.Suggestions using sg.
func WithSuggester(sg Suggester) Option {
	return func(s *Solver) { s.suggester = sg }
}

// NewSolver creates a solver over v and an index built from the same vectors.
func NewSolver(v Vocabulary, index vector.Index, opts ...Option) *Solver {
	s := &Solver{vocab: v, index: index}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheLen returns the number of cached answers.
func (s *Solver) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

// Solve returns up to topK words completing "w1 is to w2 as w3 is to ?", closest
// first. topK <= 0 means DefaultTopK. Results equal to any input word as given are
// removed, so fewer than topK words may be returned. An empty slice means no
// answer; unknown inputs return *UnknownWordError before any arithmetic.
func (s *Solver) Solve(ctx context.Context, w1, w2, w3 string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	key := cacheKey(w1, w2, w3, topK)
	if s.cache != nil {
		if words, ok := s.cache.Get(key); ok {
			return words, nil
		}
	}

	vecs, err := s.lookup(w1, w2, w3)
	if err != nil {
		return nil, err
	}

	// target = v3 + (v2 - v1)
	target := make([]float32, s.vocab.Dim())
	for i := range target {
		target[i] = vecs[2][i] + (vecs[1][i] - vecs[0][i])
	}

	neighbors, err := s.index.Search(ctx, target, topK)
	if err != nil {
		return nil, fmt.Errorf("search analogy target: %w", err)
	}

	words := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		word := s.vocab.WordOf(n.ID)
		if word == w1 || word == w2 || word == w3 {
			continue
		}
		words = append(words, word)
	}

	if s.cache != nil {
		s.cache.Set(key, words)
	}
	return words, nil
}

// lookup fetches the vectors of words, collecting every unknown one.
func (s *Solver) lookup(words ...string) ([][]float32, error) {
	vecs := make([][]float32, len(words))
	var missing []string
	for i, w := range words {
		v, err := s.vocab.VectorOf(w)
		if err != nil {
			var nf *vocab.NotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
			missing = append(missing, w)
			continue
		}
		vecs[i] = v
	}
	if len(missing) > 0 {
		return nil, s.unknown(missing)
	}
	return vecs, nil
}

func (s *Solver) unknown(words []string) *UnknownWordError {
	e := &UnknownWordError{Words: words}
	if s.suggester == nil {
		return e
	}
	for _, w := range words {
		if sg := s.suggester.Suggest(vocab.Normalize(w)); len(sg) > 0 {
			if e.Suggestions == nil {
				e.Suggestions = make(map[string][]string)
			}
			e.Suggestions[w] = sg
		}
	}
	return e
}

// Match is a neighbor word with its Euclidean distance.
type Match struct {
	Word     string  `json:"word"`
	Distance float32 `json:"distance"`
}

// Nearest returns up to n words closest to word, excluding word itself.
func (s *Solver) Nearest(ctx context.Context, word string, n int) ([]Match, error) {
	if n <= 0 {
		return []Match{}, nil
	}
	vecs, err := s.lookup(word)
	if err != nil {
		return nil, err
	}
	neighbors, err := s.index.Search(ctx, vecs[0], n+1)
	if err != nil {
		return nil, fmt.Errorf("search neighbors: %w", err)
	}

	self := vocab.Normalize(word)
	out := make([]Match, 0, n)
	for _, nb := range neighbors {
		w := s.vocab.WordOf(nb.ID)
		if w == self {
			continue
		}
		out = append(out, Match{Word: w, Distance: nb.Distance})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func cacheKey(w1, w2, w3 string, topK int) string {
	return strings.Join([]string{w1, w2, w3, strconv.Itoa(topK)}, "\x00")
}
