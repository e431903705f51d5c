package vocab

import "fmt"

// FormatError reports a malformed line in an embeddings source.
type FormatError struct {
	Line   int
	Reason string
	cause  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.cause }

// DimensionMismatchError reports a vector whose length differs from the first vector's length.
type DimensionMismatchError struct {
	Line     int
	Word     string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("line %d: vector for %q has %d components, expected %d", e.Line, e.Word, e.Actual, e.Expected)
}

// DuplicateWordError reports a word that appears more than once under DuplicateReject.
type DuplicateWordError struct {
	Line      int
	FirstLine int
	Word      string
}

func (e *DuplicateWordError) Error() string {
	return fmt.Sprintf("line %d: duplicate word %q (first seen on line %d)", e.Line, e.Word, e.FirstLine)
}

// NotFoundError is returned when a word is not in the vocabulary.
type NotFoundError struct {
	Word string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("word not found in vocabulary: %q", e.Word)
}
