package vector

import (
	"cmp"
	"math"
	"slices"
)

// SquaredL2 returns the squared Euclidean distance between a and b.
// The vectors must have the same length.
func SquaredL2(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < len(a); i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return s0 + s1 + s2 + s3
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float32) float32 {
	return sqrt32(SquaredL2(a, b))
}

// Neighbor is a single search hit.
type Neighbor struct {
	ID       int
	Distance float32 // Euclidean
}

func compareNeighbors(a, b Neighbor) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// sortNeighbors orders by ascending distance, then ascending id.
func sortNeighbors(ns []Neighbor) {
	slices.SortFunc(ns, compareNeighbors)
}

// IDs extracts the ids of ns in order.
func IDs(ns []Neighbor) []int {
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
