package vector

import (
	"container/heap"
	"context"
)

// ExactIndex is a brute-force index over a Table. It is the recall baseline for
// Forest and is selectable for small vocabularies.
type ExactIndex struct {
	table Table
}

// NewExactIndex wraps table. It fails with ErrEmptyVocabulary for an empty table.
func NewExactIndex(table Table) (*ExactIndex, error) {
	if table.Len() == 0 {
		return nil, ErrEmptyVocabulary
	}
	return &ExactIndex{table: table}, nil
}

// Type returns the index type identifier.
func (e *ExactIndex) Type() string {
	return string(IndexTypeExact)
}

// Len returns the number of vectors in the index.
func (e *ExactIndex) Len() int {
	return e.table.Len()
}

// exactCheckEvery is how many vectors are scanned between ctx checks.
const exactCheckEvery = 4096

// Search scans every vector and returns the n closest, ordered like Forest results.
func (e *ExactIndex) Search(ctx context.Context, query []float32, n int) ([]Neighbor, error) {
	if len(query) != e.table.Dim() {
		return nil, &DimensionMismatchError{Expected: e.table.Dim(), Actual: len(query)}
	}
	if n <= 0 {
		return []Neighbor{}, nil
	}

	h := make(maxHeap, 0, n+1)
	for id := range e.table.Len() {
		if id%exactCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cand := Neighbor{ID: id, Distance: SquaredL2(query, e.table.Vector(id))}
		if len(h) < n {
			heap.Push(&h, cand)
		} else if compareNeighbors(cand, h[0]) < 0 {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	out := []Neighbor(h)
	sortNeighbors(out)
	for i := range out {
		out[i].Distance = sqrt32(out[i].Distance)
	}
	return out, nil
}

// maxHeap keeps the worst retained neighbor at the root.
type maxHeap []Neighbor

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return compareNeighbors(h[i], h[j]) > 0 }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
