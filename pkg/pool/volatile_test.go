package pool

import (
	"testing"
	"unsafe"

	"github.com/nainya/fastfair/pkg/flush"
	"github.com/nainya/fastfair/pkg/pmnode"
)

func TestVolatileAllocIsCacheLineAligned(t *testing.T) {
	p := NewVolatile(nil)
	for i := 0; i < 8; i++ {
		_, node := p.Alloc()
		addr := uintptr(unsafe.Pointer(&node[0]))
		if addr%pmnode.CacheLineSize != 0 {
			t.Fatalf("Alloc()'d node not cache-line aligned: addr%%64 = %d", addr%pmnode.CacheLineSize)
		}
	}
}

func TestVolatileAllocGetRoundTrip(t *testing.T) {
	p := NewVolatile(nil)
	ref, node := p.Alloc()
	node.SetKey(0, 5)
	node.SetValue(0, 500)

	got := p.Get(ref)
	if got.Key(0) != 5 || got.Value(0) != 500 {
		t.Fatalf("Get(%d) = (%d,%d), want (5,500)", ref, got.Key(0), got.Value(0))
	}
}

func TestVolatileFreeAndReuse(t *testing.T) {
	p := NewVolatile(nil)
	ref1, _ := p.Alloc()
	p.Free(ref1)
	ref2, node2 := p.Alloc()
	if ref2 != ref1 {
		t.Fatalf("expected freed ref %d to be reused, got %d", ref1, ref2)
	}
	if node2.LastIndex() != -1 {
		t.Errorf("reused node should come back freshly initialized (LastIndex -1)")
	}
}

func TestVolatileRootAndHeight(t *testing.T) {
	p := NewVolatile(nil)
	if p.Root() != Null {
		t.Fatalf("fresh pool Root() = %d, want Null", p.Root())
	}
	ref, _ := p.Alloc()
	p.SetRoot(ref)
	p.SetHeight(1)
	if p.Root() != ref {
		t.Errorf("Root() = %d, want %d", p.Root(), ref)
	}
	if p.Height() != 1 {
		t.Errorf("Height() = %d, want 1", p.Height())
	}
}

func TestVolatileFlushRangeGoesThroughFlusher(t *testing.T) {
	f := &flush.Flusher{}
	p := NewVolatile(f)
	ref, node := p.Alloc()
	node.SetKey(0, 1)
	p.FlushRange(ref, node, 0, pmnode.CacheLineSize)
	if f.Count() != 1 {
		t.Errorf("Flusher.Count() = %d, want 1", f.Count())
	}
}
