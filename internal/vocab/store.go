// Package vocab holds a read-only vocabulary of pre-trained word vectors.
//
// Words are lowercased at load time (see Normalize) and receive dense ids in
// first-seen order.
// All vectors share one dimension and live in a single contiguous table.
// A Store is immutable once returned and safe for concurrent readers.
package vocab

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode/utf8"
)

// DuplicatePolicy decides what happens when a word appears twice.
type DuplicatePolicy int

const (
	// DuplicateReplace keeps the first-seen id and replaces the vector with the later one.
	DuplicateReplace DuplicatePolicy = iota
	// DuplicateReject fails the load with a DuplicateWordError.
	DuplicateReject
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateReplace:
		return "replace"
	case DuplicateReject:
		return "reject"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParseDuplicatePolicy parses "replace" or "reject". Empty means replace.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return DuplicateReplace, nil
	case "reject":
		return DuplicateReject, nil
	default:
		return 0, fmt.Errorf("unknown duplicate policy: %s (supported: replace, reject)", s)
	}
}

// Option configures loading.
type Option func(*options)

type options struct {
	duplicates DuplicatePolicy
	maxWords   int
}

// WithDuplicatePolicy sets the duplicate-word policy. Default is DuplicateReplace.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) { o.duplicates = p }
}

// WithMaxWords keeps the first n distinct words. Zero or negative means no limit.
// Pre-trained files are frequency ordered, so this keeps the most common words.
// Later lines repeating a kept word still apply the duplicate policy.
func WithMaxWords(n int) Option {
	return func(o *options) { o.maxWords = n }
}

func newOptions(opts []Option) options {
	o := options{duplicates: DuplicateReplace}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store owns the word<->id bijection and the vector table.
type Store struct {
	dim         int
	words       []string
	ids         map[string]int
	data        []float32
	fingerprint uint64
}

// New builds a Store from parallel word and vector slices. The same validation as Load
// applies; entry i is reported as line i+1 in errors.
func New(words []string, vectors [][]float32, opts ...Option) (*Store, error) {
	if len(words) != len(vectors) {
		return nil, fmt.Errorf("words and vectors length mismatch: %d != %d", len(words), len(vectors))
	}
	b := newBuilder(newOptions(opts))
	for i, w := range words {
		if b.full() {
			break
		}
		for _, v := range vectors[i] {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, &FormatError{Line: i + 1, Reason: fmt.Sprintf("non-finite component for %q", w)}
			}
		}
		if err := b.add(i+1, w, vectors[i]); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}

// Len returns the number of words.
func (s *Store) Len() int { return len(s.words) }

// Dim returns the vector dimension, or 0 for an empty store.
func (s *Store) Dim() int { return s.dim }

// Normalize maps word to its vocabulary key: lowercase for valid UTF-8.
// Invalid UTF-8 is returned unchanged so distinct byte strings stay distinct.
func Normalize(word string) string {
	if !utf8.ValidString(word) {
		return word
	}
	return strings.ToLower(word)
}

// ID returns the id of word after Normalize.
func (s *Store) ID(word string) (int, bool) {
	id, ok := s.ids[Normalize(word)]
	return id, ok
}

// WordOf returns the word with the given id. id must be in [0, Len()).
func (s *Store) WordOf(id int) string { return s.words[id] }

// Vector returns the vector for id. The slice aliases the table and must not be modified.
func (s *Store) Vector(id int) []float32 {
	off := id * s.dim
	return s.data[off : off+s.dim : off+s.dim]
}

// VectorOf looks up a word case-insensitively.
func (s *Store) VectorOf(word string) ([]float32, error) {
	id, ok := s.ID(word)
	if !ok {
		return nil, &NotFoundError{Word: word}
	}
	return s.Vector(id), nil
}

// Words returns a copy of the vocabulary in id order.
func (s *Store) Words() []string {
	return append([]string(nil), s.words...)
}

// Fingerprint identifies the exact contents of the store (words, order and vector bits).
func (s *Store) Fingerprint() uint64 { return s.fingerprint }

type builder struct {
	opts      options
	dim       int
	words     []string
	ids       map[string]int
	firstLine map[string]int
	data      []float32
}

func newBuilder(o options) *builder {
	return &builder{
		opts:      o,
		ids:       make(map[string]int),
		firstLine: make(map[string]int),
	}
}

func (b *builder) full() bool {
	return b.opts.maxWords > 0 && len(b.words) >= b.opts.maxWords
}

// known reports whether word is already in the vocabulary.
func (b *builder) known(word string) bool {
	_, ok := b.ids[Normalize(word)]
	return ok
}

func (b *builder) add(line int, word string, vec []float32) error {
	word = Normalize(word)
	if len(vec) == 0 {
		return &FormatError{Line: line, Reason: fmt.Sprintf("no vector components for %q", word)}
	}
	if b.dim == 0 {
		b.dim = len(vec)
	} else if len(vec) != b.dim {
		return &DimensionMismatchError{Line: line, Word: word, Expected: b.dim, Actual: len(vec)}
	}
	if id, ok := b.ids[word]; ok {
		if b.opts.duplicates == DuplicateReject {
			return &DuplicateWordError{Line: line, FirstLine: b.firstLine[word], Word: word}
		}
		copy(b.data[id*b.dim:(id+1)*b.dim], vec)
		return nil
	}
	b.ids[word] = len(b.words)
	b.firstLine[word] = line
	b.words = append(b.words, word)
	b.data = append(b.data, vec...)
	return nil
}

func (b *builder) finish() *Store {
	s := &Store{
		dim:   b.dim,
		words: b.words,
		ids:   b.ids,
		data:  b.data,
	}
	s.fingerprint = fingerprint(s)
	return s
}

func fingerprint(s *Store) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	putUint32 := func(v uint32) {
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
		buf[2] = byte(v >> 16)
		buf[3] = byte(v >> 24)
		_, _ = h.Write(buf[:])
	}
	putUint32(uint32(s.dim))
	for _, w := range s.words {
		_, _ = h.Write([]byte(w))
		_, _ = h.Write([]byte{0})
	}
	for _, v := range s.data {
		putUint32(math.Float32bits(v))
	}
	return h.Sum64()
}
