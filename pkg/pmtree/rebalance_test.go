package pmtree

import (
	"testing"

	"github.com/nainya/fastfair/pkg/pmnode"
	"github.com/nainya/fastfair/pkg/pool"
)

func TestRebalanceDisabledByDefaultLeavesEmptyLeaves(t *testing.T) {
	tr := New(pool.NewVolatile(nil), Config{})
	n := pmnode.Cardinality * 3
	for i := 0; i < n; i++ {
		tr.Insert(int64(i), uint64(i))
	}
	for i := 0; i < n; i++ {
		if !tr.Delete(int64(i)) {
			t.Fatalf("Delete(%d) = false, want true", i)
		}
	}
	for i := 0; i < n; i++ {
		if _, ok := tr.Search(int64(i)); ok {
			t.Fatalf("Search(%d) found a value after deleting everything", i)
		}
	}
}

func TestRebalanceEnabledMergesEmptyLeaves(t *testing.T) {
	tr := New(pool.NewVolatile(nil), Config{Rebalance: true})
	n := pmnode.Cardinality * 3
	for i := 0; i < n; i++ {
		tr.Insert(int64(i), uint64(i))
	}
	for i := 0; i < n-5; i++ {
		if !tr.Delete(int64(i)) {
			t.Fatalf("Delete(%d) = false, want true", i)
		}
	}
	for i := 0; i < n-5; i++ {
		if _, ok := tr.Search(int64(i)); ok {
			t.Fatalf("Search(%d) found a value after deleting it", i)
		}
	}
	for i := n - 5; i < n; i++ {
		v, ok := tr.Search(int64(i))
		if !ok || v != uint64(i) {
			t.Fatalf("Search(%d) = (%d,%v), want (%d,true)", i, v, ok, i)
		}
	}
}

func TestRebalanceDeleteMissingKeyReturnsFalse(t *testing.T) {
	tr := New(pool.NewVolatile(nil), Config{Rebalance: true})
	tr.Insert(1, 1)
	if tr.Delete(999) {
		t.Fatalf("Delete(999) = true, want false")
	}
}
