package vector

import (
	"context"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeForest is the random projection forest. Default.
	IndexTypeForest IndexType = "forest"
	// IndexTypeExact is brute-force search. Good for small vocabularies (<10k words).
	IndexTypeExact IndexType = "exact"
)

// NewIndex creates an index of the given type over table.
// Supported types: "forest" (default), "exact". opts only apply to the forest.
func NewIndex(ctx context.Context, indexType string, table Table, opts BuildOptions) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeForest, "":
		f, err := Build(ctx, table, opts)
		if err != nil {
			return nil, err
		}
		return f, nil
	case IndexTypeExact:
		e, err := NewExactIndex(table)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: forest, exact)", indexType)
	}
}
