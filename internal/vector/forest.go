package vector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultNumTrees matches the tree count the service has always been built with.
	DefaultNumTrees = 50
	// DefaultLeafCapacity is the maximum number of ids per leaf.
	DefaultLeafCapacity = 32
	// DefaultSeed is used when BuildOptions.Seed is zero.
	DefaultSeed uint64 = 42

	// maxSplitAttempts bounds pivot retries before falling back to a synthetic split.
	maxSplitAttempts = 8
)

// BuildOptions controls forest construction. Zero fields take the defaults.
type BuildOptions struct {
	NumTrees     int
	LeafCapacity int
	// Seed drives every pivot choice. Zero is not a seed of its own: it means
	// DefaultSeed, so Seed 0 and Seed DefaultSeed build the same forest.
	Seed uint64
	// Workers limits how many trees are built concurrently. <= 0 means GOMAXPROCS.
	Workers int
}

// DefaultBuildOptions returns the defaults used by the service.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		NumTrees:     DefaultNumTrees,
		LeafCapacity: DefaultLeafCapacity,
		Seed:         DefaultSeed,
	}
}

// SameLayout reports whether o and other build the same forest. Workers is ignored.
func (o BuildOptions) SameLayout(other BuildOptions) bool {
	a, errA := o.withDefaults()
	b, errB := other.withDefaults()
	if errA != nil || errB != nil {
		return false
	}
	return a.NumTrees == b.NumTrees && a.LeafCapacity == b.LeafCapacity && a.Seed == b.Seed
}

func (o BuildOptions) withDefaults() (BuildOptions, error) {
	if o.NumTrees < 0 {
		return o, fmt.Errorf("%w: num_trees must be positive, got %d", ErrInvalidOptions, o.NumTrees)
	}
	if o.LeafCapacity < 0 {
		return o, fmt.Errorf("%w: leaf_capacity must be positive, got %d", ErrInvalidOptions, o.LeafCapacity)
	}
	if o.NumTrees == 0 {
		o.NumTrees = DefaultNumTrees
	}
	if o.LeafCapacity == 0 {
		o.LeafCapacity = DefaultLeafCapacity
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o, nil
}

// node is either internal (left >= 0) or a leaf owning ids[start:end] of its tree.
// pivotA < pivotB for pivot splits; both are -1 for a synthetic split.
type node struct {
	left, right    int32
	pivotA, pivotB int32
	start, end     int32
}

func (n *node) isLeaf() bool { return n.left < 0 }

// tree owns its nodes and its own permutation of ids. nodes[0] is the root.
type tree struct {
	nodes []node
	ids   []int32
	depth int
}

// Forest is an immutable ensemble of projection trees over a shared Table.
type Forest struct {
	table Table
	trees []tree
	opts  BuildOptions
}

// Build constructs a forest over table. The result is deterministic for a given
// table and seed, independent of Workers. ctx is checked between trees.
func Build(ctx context.Context, table Table, opts BuildOptions) (*Forest, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, ErrEmptyVocabulary
	}

	trees := make([]tree, opts.NumTrees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(i)))
			trees[i] = buildTree(table, opts.LeafCapacity, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build forest: %w", err)
	}
	return &Forest{table: table, trees: trees, opts: opts}, nil
}

func buildTree(table Table, leafCap int, rng *rand.Rand) tree {
	n := table.Len()
	t := tree{
		ids:   make([]int32, n),
		nodes: make([]node, 0, 2*(n/leafCap+1)),
	}
	for i := range t.ids {
		t.ids[i] = int32(i)
	}
	t.split(table, leafCap, rng, 0, n, 0)
	return t
}

// split partitions ids[lo:hi] and returns the index of the node it created.
func (t *tree) split(table Table, leafCap int, rng *rand.Rand, lo, hi, depth int) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{left: -1, right: -1, pivotA: -1, pivotB: -1})
	if depth > t.depth {
		t.depth = depth
	}
	if hi-lo <= leafCap {
		t.nodes[idx].start = int32(lo)
		t.nodes[idx].end = int32(hi)
		return idx
	}

	members := t.ids[lo:hi]
	pivotA, pivotB := int32(-1), int32(-1)
	mid := -1
	for range maxSplitAttempts {
		i := rng.IntN(len(members))
		j := rng.IntN(len(members) - 1)
		if j >= i {
			j++
		}
		a, b := members[i], members[j]
		if a > b {
			a, b = b, a
		}
		m := partition(table, members, a, b)
		if m > 0 && m < len(members) {
			pivotA, pivotB, mid = a, b, m
			break
		}
	}
	if mid < 0 {
		// Every attempt put all members on one side (duplicate vectors).
		slices.Sort(members)
		mid = len(members) / 2
	}

	left := t.split(table, leafCap, rng, lo, lo+mid, depth+1)
	right := t.split(table, leafCap, rng, lo+mid, hi, depth+1)
	t.nodes[idx] = node{left: left, right: right, pivotA: pivotA, pivotB: pivotB}
	return idx
}

// partition moves the members closer to a (ties included) to the front and returns
// how many there are.
func partition(table Table, members []int32, a, b int32) int {
	va, vb := table.Vector(int(a)), table.Vector(int(b))
	i := 0
	for j, id := range members {
		if goesLeft(table.Vector(int(id)), va, vb) {
			members[i], members[j] = members[j], members[i]
			i++
		}
	}
	return i
}

func goesLeft(v, a, b []float32) bool {
	return SquaredL2(v, a) <= SquaredL2(v, b)
}

// leaf descends a single path to the leaf whose partition q falls into.
func (t *tree) leaf(table Table, q []float32) []int32 {
	n := &t.nodes[0]
	for !n.isLeaf() {
		if n.pivotA < 0 || goesLeft(q, table.Vector(int(n.pivotA)), table.Vector(int(n.pivotB))) {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return t.ids[n.start:n.end]
}

// Type returns the index type identifier.
func (f *Forest) Type() string { return string(IndexTypeForest) }

// Len returns the number of indexed vectors.
func (f *Forest) Len() int { return f.table.Len() }

// Options returns the effective build options.
func (f *Forest) Options() BuildOptions { return f.opts }

// Candidates returns the deduplicated union of the leaves q lands in across all trees.
func (f *Forest) Candidates(q []float32) *roaring.Bitmap {
	cand := roaring.New()
	if len(q) != f.table.Dim() {
		return cand
	}
	for i := range f.trees {
		for _, id := range f.trees[i].leaf(f.table, q) {
			cand.Add(uint32(id))
		}
	}
	return cand
}

// Query is the context-free form of Search. A query of the wrong dimension or
// n <= 0 yields an empty result.
func (f *Forest) Query(q []float32, n int) []Neighbor {
	res, err := f.Search(context.Background(), q, n)
	if err != nil {
		return []Neighbor{}
	}
	return res
}

// Search returns up to n approximate nearest neighbors of q, sorted by exact
// distance and then id. ctx is checked between tree descents.
func (f *Forest) Search(ctx context.Context, q []float32, n int) ([]Neighbor, error) {
	if len(q) != f.table.Dim() {
		return nil, &DimensionMismatchError{Expected: f.table.Dim(), Actual: len(q)}
	}
	if n <= 0 || len(f.trees) == 0 {
		return []Neighbor{}, nil
	}
	cand := roaring.New()
	for i := range f.trees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, id := range f.trees[i].leaf(f.table, q) {
			cand.Add(uint32(id))
		}
	}
	return rank(f.table, q, cand, n), nil
}

func rank(table Table, q []float32, cand *roaring.Bitmap, n int) []Neighbor {
	out := make([]Neighbor, 0, cand.GetCardinality())
	it := cand.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		out = append(out, Neighbor{ID: id, Distance: SquaredL2(q, table.Vector(id))})
	}
	sortNeighbors(out)
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Distance = sqrt32(out[i].Distance)
	}
	return out
}

// ForestStats describes the shape of a forest.
type ForestStats struct {
	Trees        int `json:"trees"`
	LeafCapacity int `json:"leaf_capacity"`
	Nodes        int `json:"nodes"`
	Leaves       int `json:"leaves"`
	MaxDepth     int `json:"max_depth"`
}

// Stats summarizes the forest structure.
func (f *Forest) Stats() ForestStats {
	s := ForestStats{Trees: len(f.trees), LeafCapacity: f.opts.LeafCapacity}
	for i := range f.trees {
		t := &f.trees[i]
		s.Nodes += len(t.nodes)
		for j := range t.nodes {
			if t.nodes[j].isLeaf() {
				s.Leaves++
			}
		}
		s.MaxDepth = max(s.MaxDepth, t.depth)
	}
	return s
}
