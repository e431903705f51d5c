// Package vector provides approximate nearest-neighbor search over a fixed vector table.
//
// The main index is a Forest of randomized projection trees. Each tree recursively
// splits the ids by which of two random pivot vectors they are closer to, until a
// partition fits in a leaf. A query descends a single path in every tree, unions the
// leaves it lands in and ranks that candidate set by exact distance.
package vector

import "context"

// Table is the read-only vector table an index is built over.
// Vector(id) must be valid for every id in [0, Len()) and have length Dim().
type Table interface {
	Len() int
	Dim() int
	Vector(id int) []float32
}

// Index answers k-nearest-neighbor queries over a Table.
type Index interface {
	// Search returns up to n neighbors of query sorted by ascending distance, then id.
	Search(ctx context.Context, query []float32, n int) ([]Neighbor, error)
	Len() int
	Type() string
}
