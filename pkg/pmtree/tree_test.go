package pmtree

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/nainya/fastfair/pkg/pmnode"
	"github.com/nainya/fastfair/pkg/pool"
)

func newTestTree() *Tree {
	return New(pool.NewVolatile(nil), Config{})
}

func TestInsertSearchSingle(t *testing.T) {
	tr := newTestTree()
	tr.Insert(42, 1000)

	v, ok := tr.Search(42)
	if !ok || v != 1000 {
		t.Fatalf("Search(42) = (%d,%v), want (1000,true)", v, ok)
	}

	if _, ok := tr.Search(43); ok {
		t.Fatalf("Search(43) found a value in an empty-of-43 tree")
	}
}

func TestInsertOutOfOrderSequence(t *testing.T) {
	tr := newTestTree()
	keys := []int64{5, 3, 8, 1, 4, 7, 9, 2, 6}
	for i, k := range keys {
		tr.Insert(k, uint64(1000+i))
	}
	for i, k := range keys {
		v, ok := tr.Search(k)
		if !ok {
			t.Fatalf("Search(%d) not found", k)
		}
		if v != uint64(1000+i) {
			t.Fatalf("Search(%d) = %d, want %d", k, v, 1000+i)
		}
	}
	if _, ok := tr.Search(100); ok {
		t.Fatalf("Search(100) unexpectedly found")
	}
}

func TestInsertTriggersSplit(t *testing.T) {
	tr := newTestTree()
	n := pmnode.Cardinality * 3
	for i := 0; i < n; i++ {
		tr.Insert(int64(i), uint64(i+1))
	}
	for i := 0; i < n; i++ {
		v, ok := tr.Search(int64(i))
		if !ok || v != uint64(i+1) {
			t.Fatalf("Search(%d) = (%d,%v), want (%d,true)", i, v, ok, i+1)
		}
	}
	if h := tr.pool.Height(); h < 2 {
		t.Errorf("Height() = %d after %d inserts, want >= 2", h, n)
	}
}

func TestInsertReverseOrderTriggersSplit(t *testing.T) {
	tr := newTestTree()
	n := pmnode.Cardinality * 3
	for i := n - 1; i >= 0; i-- {
		tr.Insert(int64(i), uint64(i+1))
	}
	for i := 0; i < n; i++ {
		v, ok := tr.Search(int64(i))
		if !ok || v != uint64(i+1) {
			t.Fatalf("Search(%d) = (%d,%v), want (%d,true)", i, v, ok, i+1)
		}
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	tr := newTestTree()
	for i := 1; i <= 100; i++ {
		tr.Insert(int64(i), uint64(i))
	}
	for i := 1; i <= 100; i += 2 {
		if !tr.Delete(int64(i)) {
			t.Fatalf("Delete(%d) = false, want true", i)
		}
	}
	for i := 1; i <= 100; i++ {
		v, ok := tr.Search(int64(i))
		if i%2 == 1 {
			if ok {
				t.Errorf("Search(%d) found %d after delete, want not found", i, v)
			}
		} else {
			if !ok || v != uint64(i) {
				t.Errorf("Search(%d) = (%d,%v), want (%d,true)", i, v, ok, i)
			}
		}
	}
}

func TestDeleteMissingKeyReturnsFalse(t *testing.T) {
	tr := newTestTree()
	tr.Insert(1, 1)
	if tr.Delete(999) {
		t.Fatalf("Delete(999) = true, want false")
	}
}

func TestDuplicateInsertAppendsRatherThanOverwrites(t *testing.T) {
	tr := newTestTree()
	tr.Insert(7, 100)
	tr.Insert(7, 200)

	v, ok := tr.Search(7)
	if !ok || (v != 100 && v != 200) {
		t.Fatalf("Search(7) = (%d,%v), want one of (100,200)", v, ok)
	}

	var out [4]uint64
	n := tr.SearchRange(6, 8, out[:])
	if n != 2 {
		t.Fatalf("SearchRange(6,8) returned %d handles, want 2 (both copies of key 7)", n)
	}
}

func TestSearchRangeAscendingOrder(t *testing.T) {
	tr := newTestTree()
	for i := 1; i <= 10; i++ {
		tr.Insert(int64(i), uint64(i))
	}
	var out [16]uint64
	n := tr.SearchRange(2, 8, out[:])
	want := []uint64{3, 4, 5, 6, 7}
	if n != len(want) {
		t.Fatalf("SearchRange(2,8) returned %d handles, want %d", n, len(want))
	}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d] = %d, want %d", i, out[i], w)
		}
	}
}

func TestSearchRangeAcrossSplitLeaves(t *testing.T) {
	tr := newTestTree()
	n := pmnode.Cardinality * 4
	for i := 0; i < n; i++ {
		tr.Insert(int64(i), uint64(i+1))
	}
	out := make([]uint64, n)
	got := tr.SearchRange(-1, int64(n), out)
	if got != n {
		t.Fatalf("SearchRange(-1,%d) returned %d handles, want %d", n, got, n)
	}
	for i := 0; i < n; i++ {
		if out[i] != uint64(i+1) {
			t.Fatalf("out[%d] = %d, want %d (range scan must stay sorted across sibling leaves)", i, out[i], i+1)
		}
	}
}

func TestSearchRangeRespectsOutputCap(t *testing.T) {
	tr := newTestTree()
	for i := 1; i <= 50; i++ {
		tr.Insert(int64(i), uint64(i))
	}
	out := make([]uint64, 5)
	n := tr.SearchRange(0, 100, out)
	if n != 5 {
		t.Fatalf("SearchRange with 5-slot output returned %d, want 5", n)
	}
}

func TestConcurrentDisjointInserts(t *testing.T) {
	tr := newTestTree()
	const total = 10000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= total/2; i++ {
			tr.Insert(int64(i), uint64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := total/2 + 1; i <= total; i++ {
			tr.Insert(int64(i), uint64(i))
		}
	}()
	wg.Wait()

	for i := 1; i <= total; i++ {
		v, ok := tr.Search(int64(i))
		if !ok || v != uint64(i) {
			t.Fatalf("Search(%d) = (%d,%v), want (%d,true)", i, v, ok, i)
		}
	}
}

func TestConcurrentWriterAndReaderScan(t *testing.T) {
	tr := newTestTree()
	for i := 0; i < pmnode.Cardinality; i++ {
		tr.Insert(int64(i), uint64(i))
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := pmnode.Cardinality
		for {
			select {
			case <-stop:
				return
			default:
				tr.Insert(int64(next), uint64(next))
				next++
			}
		}
	}()

	var out [8]uint64
	for i := 0; i < 200; i++ {
		n := tr.SearchRange(1, 6, out[:])
		for j := 1; j < n; j++ {
			if out[j] <= out[j-1] {
				close(stop)
				wg.Wait()
				t.Fatalf("SearchRange produced non-ascending output during concurrent insert: %v", out[:n])
			}
		}
	}
	close(stop)
	wg.Wait()
}

// TestRandomizedInsertSearchDelete checks multiset presence, not a single
// value per key: Insert never overwrites (spec.md's duplicate-key
// decision is to append), and Delete removes an unspecified one of a
// key's surviving entries, so the model here is "how many handles for
// this key are still live", not "which one".
func TestRandomizedInsertSearchDelete(t *testing.T) {
	tr := newTestTree()
	rng := rand.New(rand.NewSource(1))
	live := make(map[int64]int)

	for i := 0; i < 2000; i++ {
		key := rng.Int63n(500)
		switch rng.Intn(3) {
		case 0, 1:
			tr.Insert(key, uint64(i+1))
			live[key]++
		case 2:
			if tr.Delete(key) {
				live[key]--
			}
		}
	}

	for key, n := range live {
		_, ok := tr.Search(key)
		if n > 0 && !ok {
			t.Fatalf("Search(%d) not found, want one of %d surviving entries", key, n)
		}
		if n == 0 && ok {
			t.Fatalf("Search(%d) found an entry, want none left", key)
		}
	}
}
