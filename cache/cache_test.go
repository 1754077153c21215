package cache

import "testing"

func TestGetOrComputeMemoizes(t *testing.T) {
	c := New(10)
	calls := 0
	compute := func() interface{} {
		calls++
		return "якутск"
	}

	v1 := c.GetOrCompute("yakutsk", compute)
	v2 := c.GetOrCompute("yakutsk", compute)

	if v1 != "якутск" || v2 != "якутск" {
		t.Fatalf("unexpected values: %v %v", v1, v2)
	}
	if calls != 1 {
		t.Fatalf("expected compute to run once, ran %d times", calls)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // touch a, b becomes LRU
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to survive eviction")
	}
	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", stats.Evictions)
	}
}
