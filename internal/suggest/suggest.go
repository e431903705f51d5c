// Package suggest proposes vocabulary words close in spelling to an unknown word.
package suggest

import (
	"container/list"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/hyperjump/kotoba/internal/vocab"
)

const (
	// DefaultMaxWordLength bounds the words worth correcting; longer input gets no suggestions.
	DefaultMaxWordLength = 32
	// DefaultCacheSize is how many looked-up words keep their suggestions.
	DefaultCacheSize = 1024
)

// Vocabulary is the subset of vocab.Store used as a dictionary. Pre-trained
// vector files list words by descending corpus frequency, so a lower id is
// treated as a more frequent word.
type Vocabulary interface {
	Len() int
	WordOf(id int) string
}

// Suggestion is a candidate correction with its score.
type Suggestion struct {
	Word     string  `json:"word"`
	Distance int     `json:"distance"`
	Rank     int     `json:"rank"` // vocabulary id; lower is more frequent
	Score    float64 `json:"score"`
}

// Suggester finds close spellings. It indexes the vocabulary once and is safe for
// concurrent use.
type Suggester struct {
	maxDistance    int
	maxSuggestions int
	maxWordLength  int
	transpositions bool

	cache *cache

	// byLen buckets ids by word length in runes, ascending id order within a bucket.
	byLen map[int][]int32
	words Vocabulary
	total int
}

// Option configures a Suggester.
type Option func(*Suggester)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) Option {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions per word.
func WithMaxSuggestions(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// WithMaxWordLength sets the longest word, in runes, that is looked up.
func WithMaxWordLength(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.maxWordLength = n
		}
	}
}

// WithCacheSize sets how many words keep their suggestions. Negative disables caching.
func WithCacheSize(n int) Option {
	return func(s *Suggester) {
		switch {
		case n > 0:
			s.cache = newCache(n)
		case n < 0:
			s.cache = nil
		}
	}
}

// WithTranspositions counts swapped adjacent letters ("teh") as a single edit.
func WithTranspositions(on bool) Option {
	return func(s *Suggester) { s.transpositions = on }
}

// New indexes v for suggestions.
func New(v Vocabulary, opts ...Option) *Suggester {
	s := &Suggester{
		maxDistance:    2,
		maxSuggestions: 5,
		maxWordLength:  DefaultMaxWordLength,
		transpositions: true,
		cache:          newCache(DefaultCacheSize),
		byLen:          make(map[int][]int32),
		words:          v,
		total:          v.Len(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for id := range s.total {
		n := utf8.RuneCountInString(v.WordOf(id))
		s.byLen[n] = append(s.byLen[n], int32(id))
	}
	return s
}

// Candidates returns scored suggestions for word, best first. Results are
// cached per word; the returned slice must not be modified.
func (s *Suggester) Candidates(word string) []Suggestion {
	word = vocab.Normalize(word)
	n := utf8.RuneCountInString(word)
	if n > s.maxWordLength {
		return []Suggestion{}
	}
	if s.cache != nil {
		if out, ok := s.cache.get(word); ok {
			return out
		}
	}
	out := s.scan(word, n)
	if s.cache != nil {
		s.cache.set(word, out)
	}
	return out
}

// scan compares word against every vocabulary word of a reachable length.
func (s *Suggester) scan(word string, n int) []Suggestion {
	out := make([]Suggestion, 0)

	// Words whose length differs by more than maxDistance cannot be within distance.
	for l := max(n-s.maxDistance, 0); l <= n+s.maxDistance; l++ {
		for _, id := range s.byLen[l] {
			w := s.words.WordOf(int(id))
			if w == word {
				continue
			}
			var d int
			if s.transpositions {
				d = DamerauLevenshtein(word, w)
			} else {
				d = Levenshtein(word, w)
			}
			if d > s.maxDistance {
				continue
			}
			// Closer is better, more frequent is better.
			freq := s.total - int(id)
			out = append(out, Suggestion{
				Word:     w,
				Distance: d,
				Rank:     int(id),
				Score:    float64(freq) / float64(d+1),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Rank < out[j].Rank
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}

// Suggest returns up to the configured number of words close to word, best first.
func (s *Suggester) Suggest(word string) []string {
	cands := s.Candidates(word)
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Word
	}
	return out
}

// cache is a small LRU of scan results keyed by normalized word.
type cache struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	word  string
	cands []Suggestion
}

func newCache(capacity int) *cache {
	return &cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *cache) get(word string) ([]Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[word]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).cands, true
	}
	return nil, false
}

func (c *cache) set(word string, cands []Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[word]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).cands = cands
		return
	}
	c.items[word] = c.lru.PushFront(&cacheEntry{word: word, cands: cands})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).word)
	}
}

func (c *cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
