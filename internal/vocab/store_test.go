package vocab

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `the 0.1 0.2 0.3
King 1 0 0

queen 0.9 0.1 0
`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.Dim())
	assert.Equal(t, "the", s.WordOf(0))
	assert.Equal(t, "king", s.WordOf(1), "words are lowercased at load time")
	assert.Equal(t, "queen", s.WordOf(2))

	id, ok := s.ID("KING")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	v, err := s.VectorOf("Queen")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.9, 0.1, 0}, v)
	assert.Equal(t, []string{"the", "king", "queen"}, s.Words())
}

func TestLoad_Empty(t *testing.T) {
	s, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Dim())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "word without components",
			input: "a 1 2\nlonely\n",
			check: func(t *testing.T, err error) {
				var fe *FormatError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, 2, fe.Line)
			},
		},
		{
			name:  "non numeric component",
			input: "a 1 x\n",
			check: func(t *testing.T, err error) {
				var fe *FormatError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, 1, fe.Line)
				assert.NotNil(t, errors.Unwrap(fe))
			},
		},
		{
			name:  "non finite component",
			input: "a 1 NaN\n",
			check: func(t *testing.T, err error) {
				var fe *FormatError
				require.ErrorAs(t, err, &fe)
			},
		},
		{
			name:  "dimension mismatch",
			input: "a 1 2 3\nb 1 2\n",
			check: func(t *testing.T, err error) {
				var de *DimensionMismatchError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, 2, de.Line)
				assert.Equal(t, "b", de.Word)
				assert.Equal(t, 3, de.Expected)
				assert.Equal(t, 2, de.Actual)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, s, "no partial store on failure")
			tt.check(t, err)
		})
	}
}

func TestLoad_DuplicateReplace(t *testing.T) {
	input := "cat 1 1\ndog 2 2\nCat 3 3\n"
	s, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len(), "ids stay contiguous")
	id, ok := s.ID("cat")
	require.True(t, ok)
	assert.Equal(t, 0, id, "first-seen id is kept")
	assert.Equal(t, []float32{3, 3}, s.Vector(id), "last vector wins")
}

func TestLoad_DuplicateReject(t *testing.T) {
	input := "cat 1 1\ndog 2 2\ncat 3 3\n"
	_, err := Load(strings.NewReader(input), WithDuplicatePolicy(DuplicateReject))
	var de *DuplicateWordError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.Line)
	assert.Equal(t, 1, de.FirstLine)
	assert.Equal(t, "cat", de.Word)
}

func TestLoad_MaxWords(t *testing.T) {
	s, err := Load(strings.NewReader(sample), WithMaxWords(2))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestLoad_MaxWordsStillReplaces(t *testing.T) {
	input := "a 1 1\nb 2 2\nc 3 3\nA 9 9\nd not-a-number\n"
	s, err := Load(strings.NewReader(input), WithMaxWords(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Words())
	v, err := s.VectorOf("a")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, v, "a kept word is replaced after the cap")

	_, err = Load(strings.NewReader(input), WithMaxWords(2), WithDuplicatePolicy(DuplicateReject))
	var de *DuplicateWordError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 4, de.Line)
}

func TestLoad_InvalidUTF8WordsStayDistinct(t *testing.T) {
	input := "x\xff 1 1\nx\xfe 2 2\n"
	s, err := Load(strings.NewReader(input), WithDuplicatePolicy(DuplicateReject))
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "x\xff", s.WordOf(0), "invalid bytes are kept as is")

	v, err := s.VectorOf("x\xfe")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, v)
	_, ok := s.ID("x\ufffd")
	assert.False(t, ok)
}

func TestLoad_NonBreakingSpaceIsPartOfWord(t *testing.T) {
	input := "caf\u00a0e 1 2\nnext\u0085line 3 4\nplain\t5\v6\f\r\n"
	s, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"caf\u00a0e", "next\u0085line", "plain"}, s.Words())
	v, err := s.VectorOf("plain")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6}, v)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"King", "king"},
		{"ÉCOLE", "école"},
		{"x\xff", "x\xff"},
		{"X\xfe", "X\xfe"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestVectorOf_NotFound(t *testing.T) {
	s, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	_, err = s.VectorOf("xyzzy")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "xyzzy", nf.Word)
}

func TestVector_CapacityIsBounded(t *testing.T) {
	s, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	v := s.Vector(0)
	_ = append(v, 42)
	assert.Equal(t, float32(1), s.Vector(1)[0], "appending to a returned vector must not clobber the next one")
}

func TestNew(t *testing.T) {
	s, err := New([]string{"a", "b"}, [][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = New([]string{"a"}, nil)
	require.Error(t, err)

	_, err = New([]string{"a", "b"}, [][]float32{{1, 2}, {3}})
	var de *DimensionMismatchError
	require.ErrorAs(t, err, &de)
}

func TestFingerprint(t *testing.T) {
	a, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	b, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	c, err := Load(strings.NewReader(strings.Replace(sample, "0.9", "0.8", 1)))
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReplace, p)

	p, err = ParseDuplicatePolicy("Reject")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReject, p)
	assert.Equal(t, "reject", p.String())

	_, err = ParseDuplicatePolicy("merge")
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "vectors.txt")
	require.NoError(t, os.WriteFile(plain, []byte(sample), 0644))

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	gzPath := filepath.Join(dir, "vectors.txt.gz")
	require.NoError(t, os.WriteFile(gzPath, gz.Bytes(), 0644))

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	zstPath := filepath.Join(dir, "vectors.txt.zst")
	require.NoError(t, os.WriteFile(zstPath, zs.Bytes(), 0644))

	for _, p := range []string{plain, gzPath, zstPath} {
		t.Run(filepath.Base(p), func(t *testing.T) {
			s, err := LoadFile(p)
			require.NoError(t, err)
			assert.Equal(t, 3, s.Len())
			assert.Equal(t, "queen", s.WordOf(2))
		})
	}

	_, err = LoadFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}
