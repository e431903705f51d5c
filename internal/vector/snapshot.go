package vector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
)

// Snapshot layout (little-endian, zstd compressed):
//
//	magic "KTFR" | version u32 | fingerprint u64 | n u32 | dim u32 | trees u32 | leafCap u32 | seed u64
//	per tree: depth u32 | nodeCount u32 | nodeCount * 6 * i32 | n * i32 ids
const (
	snapshotMagic   = "KTFR"
	snapshotVersion = 1
	nodeFields      = 6
)

// fingerprinter is implemented by tables that can identify their contents.
type fingerprinter interface {
	Fingerprint() uint64
}

func tableFingerprint(t Table) uint64 {
	if fp, ok := t.(fingerprinter); ok {
		return fp.Fingerprint()
	}
	return 0
}

type snapshotHeader struct {
	Version     uint32
	Fingerprint uint64
	N           uint32
	Dim         uint32
	Trees       uint32
	LeafCap     uint32
	Seed        uint64
}

// Save writes the forest structure to w. Vectors are not included; the snapshot
// must be loaded against the same table.
func (f *Forest) Save(w io.Writer) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		enc.Close()
		return fmt.Errorf("write magic: %w", err)
	}
	hdr := snapshotHeader{
		Version:     snapshotVersion,
		Fingerprint: tableFingerprint(f.table),
		N:           uint32(f.table.Len()),
		Dim:         uint32(f.table.Dim()),
		Trees:       uint32(len(f.trees)),
		LeafCap:     uint32(f.opts.LeafCapacity),
		Seed:        f.opts.Seed,
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		enc.Close()
		return fmt.Errorf("write header: %w", err)
	}

	for i := range f.trees {
		if err := writeTree(bw, &f.trees[i]); err != nil {
			enc.Close()
			return fmt.Errorf("write tree %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

func writeTree(w io.Writer, t *tree) error {
	if err := binary.Write(w, binary.LittleEndian, [2]uint32{uint32(t.depth), uint32(len(t.nodes))}); err != nil {
		return err
	}
	flat := make([]int32, 0, len(t.nodes)*nodeFields)
	for _, n := range t.nodes {
		flat = append(flat, n.left, n.right, n.pivotA, n.pivotB, n.start, n.end)
	}
	if err := binary.Write(w, binary.LittleEndian, flat); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.ids)
}

// ReadForest reads a snapshot written by Save and binds it to table. It returns
// ErrSnapshotMismatch when the snapshot was built over a different table.
func ReadForest(r io.Reader, table Table) (*Forest, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("not a forest snapshot (magic %q)", magic)
	}
	var hdr snapshotHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}
	if hdr.Fingerprint != tableFingerprint(table) || int(hdr.N) != table.Len() || int(hdr.Dim) != table.Dim() {
		return nil, ErrSnapshotMismatch
	}
	if hdr.N == 0 {
		return nil, ErrEmptyVocabulary
	}

	trees := make([]tree, hdr.Trees)
	for i := range trees {
		t, err := readTree(br, int(hdr.N))
		if err != nil {
			return nil, fmt.Errorf("read tree %d: %w", i, err)
		}
		trees[i] = t
	}

	opts := BuildOptions{
		NumTrees:     int(hdr.Trees),
		LeafCapacity: int(hdr.LeafCap),
		Seed:         hdr.Seed,
	}
	return &Forest{table: table, trees: trees, opts: opts}, nil
}

var errCorruptTree = errors.New("corrupt tree")

func readTree(r io.Reader, n int) (tree, error) {
	var meta [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return tree{}, err
	}
	count := int(meta[1])
	// A tree over n ids has fewer than 2n nodes.
	if count == 0 || count > 2*n {
		return tree{}, fmt.Errorf("%w: %d nodes for %d ids", errCorruptTree, count, n)
	}
	flat := make([]int32, count*nodeFields)
	if err := binary.Read(r, binary.LittleEndian, flat); err != nil {
		return tree{}, err
	}
	t := tree{depth: int(meta[0]), nodes: make([]node, count), ids: make([]int32, n)}
	for i := range t.nodes {
		f := flat[i*nodeFields : (i+1)*nodeFields]
		t.nodes[i] = node{left: f[0], right: f[1], pivotA: f[2], pivotB: f[3], start: f[4], end: f[5]}
	}
	if err := binary.Read(r, binary.LittleEndian, t.ids); err != nil {
		return tree{}, err
	}
	if err := t.validate(n); err != nil {
		return tree{}, err
	}
	return t, nil
}

// validate checks that child links and leaf ranges are in bounds and that ids is a
// permutation of [0, n).
func (t *tree) validate(n int) error {
	count := int32(len(t.nodes))
	for i, nd := range t.nodes {
		if nd.isLeaf() {
			if nd.start < 0 || nd.start > nd.end || int(nd.end) > n {
				return fmt.Errorf("%w: leaf %d range [%d,%d)", errCorruptTree, i, nd.start, nd.end)
			}
			continue
		}
		if nd.left <= int32(i) || nd.left >= count || nd.right <= int32(i) || nd.right >= count {
			return fmt.Errorf("%w: node %d children %d/%d", errCorruptTree, i, nd.left, nd.right)
		}
		if (nd.pivotA < 0) != (nd.pivotB < 0) || int(nd.pivotA) >= n || int(nd.pivotB) >= n {
			return fmt.Errorf("%w: node %d pivots %d/%d", errCorruptTree, i, nd.pivotA, nd.pivotB)
		}
	}
	seen := roaring.New()
	for _, id := range t.ids {
		if id < 0 || int(id) >= n {
			return fmt.Errorf("%w: id %d out of range", errCorruptTree, id)
		}
		seen.Add(uint32(id))
	}
	if int(seen.GetCardinality()) != n {
		return fmt.Errorf("%w: ids are not a permutation", errCorruptTree)
	}
	return nil
}

// SaveFile writes the snapshot to path through a temporary file.
// The directory is created if needed.
func (f *Forest) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".forest-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot file: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot from path and binds it to table.
func LoadFile(path string, table Table) (*Forest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()
	return ReadForest(file, table)
}
