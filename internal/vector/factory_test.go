package vector

import (
	"context"
	"testing"
)

func TestNewIndex_Forest(t *testing.T) {
	idx, err := NewIndex(context.Background(), "forest", randomMatrix(100, 3, 1), BuildOptions{NumTrees: 4})
	if err != nil {
		t.Fatalf("NewIndex(forest): %v", err)
	}
	if idx.Type() != "forest" {
		t.Errorf("Type=%s, want forest", idx.Type())
	}
	if idx.Len() != 100 {
		t.Errorf("Len=%d, want 100", idx.Len())
	}
	if _, ok := idx.(*Forest); !ok {
		t.Errorf("expected *Forest, got %T", idx)
	}
}

func TestNewIndex_Empty(t *testing.T) {
	// Empty string should default to forest
	idx, err := NewIndex(context.Background(), "", randomMatrix(10, 3, 1), BuildOptions{})
	if err != nil {
		t.Fatalf("NewIndex(''): %v", err)
	}
	if idx.Type() != "forest" {
		t.Errorf("Type=%s, want forest", idx.Type())
	}
}

func TestNewIndex_Exact(t *testing.T) {
	idx, err := NewIndex(context.Background(), "exact", randomMatrix(10, 3, 1), BuildOptions{})
	if err != nil {
		t.Fatalf("NewIndex(exact): %v", err)
	}
	res, err := idx.Search(context.Background(), []float32{0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 3 {
		t.Errorf("got %d results, want 3", len(res))
	}
}

func TestNewIndex_Unknown(t *testing.T) {
	_, err := NewIndex(context.Background(), "faiss", randomMatrix(10, 3, 1), BuildOptions{})
	if err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewIndex_EmptyTable(t *testing.T) {
	for _, kind := range []string{"forest", "exact"} {
		idx, err := NewIndex(context.Background(), kind, &matrix{dim: 3}, BuildOptions{})
		if err == nil {
			t.Errorf("%s: expected error for empty table", kind)
		}
		if idx != nil {
			t.Errorf("%s: expected nil index, got %T", kind, idx)
		}
	}
}
