package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyVocabulary is returned when building an index over zero vectors.
	ErrEmptyVocabulary = errors.New("cannot build index over an empty vocabulary")
	// ErrInvalidOptions is returned for negative tree counts or leaf capacities.
	ErrInvalidOptions = errors.New("invalid build options")
	// ErrSnapshotMismatch is returned when a saved forest was built over a different table.
	ErrSnapshotMismatch = errors.New("index snapshot does not match vocabulary")
)

// DimensionMismatchError indicates a query whose length differs from the table dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
