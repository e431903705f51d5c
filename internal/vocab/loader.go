package vocab

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const maxLineBytes = 64 << 20

// isFieldSpace matches ASCII whitespace only; a non-breaking space can be part of a word.
func isFieldSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// Load parses "word f0 f1 ... fD-1" lines from r, fields separated by ASCII
// whitespace. Blank lines are skipped. Once the WithMaxWords limit is reached,
// only lines repeating a kept word are parsed.
// Any malformed line aborts the load; no partial Store is returned.
// An empty source yields an empty Store.
func Load(r io.Reader, opts ...Option) (*Store, error) {
	b := newBuilder(newOptions(opts))
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		line int
		vec  []float32
	)
	for sc.Scan() {
		line++
		fields := strings.FieldsFunc(sc.Text(), isFieldSpace)
		if len(fields) == 0 {
			continue
		}
		word := fields[0]
		if b.full() && !b.known(word) {
			continue
		}
		if len(fields) == 1 {
			return nil, &FormatError{Line: line, Reason: fmt.Sprintf("no vector components for %q", word)}
		}
		vec = vec[:0]
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, &FormatError{Line: line, Reason: fmt.Sprintf("component %d of %q is not numeric: %q", i, word, f), cause: err}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &FormatError{Line: line, Reason: fmt.Sprintf("component %d of %q is not finite: %q", i, word, f)}
			}
			vec = append(vec, float32(v))
		}
		if err := b.add(line, word, vec); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	return b.finish(), nil
}

// LoadFile opens path and loads it with Load. Files ending in .gz or .zst are decompressed.
func LoadFile(path string, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 1<<20)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip embeddings: %w", err)
		}
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zstd embeddings: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	s, err := Load(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}
