package analogy

import (
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []string{"queen", "princess"})
	v, ok := c.Get("a")
	if !ok || len(v) != 2 || v[0] != "queen" {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []string{"paris"})
	c.Get("a")             // a is now most recent
	c.Set("c", []string{}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if v, ok := c.Get("c"); !ok || len(v) != 0 {
		t.Errorf("expected empty answer for c, got %v, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(1)
	in := []string{"queen"}
	c.Set("k", in)
	in[0] = "mutated"

	out, _ := c.Get("k")
	if out[0] != "queen" {
		t.Errorf("cache shares the caller's slice: %v", out)
	}
	out[0] = "mutated"
	again, _ := c.Get("k")
	if again[0] != "queen" {
		t.Errorf("cache shares the returned slice: %v", again)
	}
}
