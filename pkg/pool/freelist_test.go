package pool

import "testing"

func newTestFreeList() (*freeList, map[uint64][]byte) {
	store := make(map[uint64][]byte)
	var next uint64 = 1
	fl := &freeList{
		get: func(ref uint64) []byte { return store[ref] },
		new: func() (uint64, []byte) {
			ref := next
			next++
			buf := make([]byte, 512)
			store[ref] = buf
			return ref, buf
		},
		set: func(ref uint64, buf []byte) { store[ref] = buf },
	}
	return fl, store
}

func TestFreeListPushPopOrder(t *testing.T) {
	fl, _ := newTestFreeList()
	fl.pushTail(100)
	fl.pushTail(200)
	fl.pushTail(300)

	if got := fl.popHead(); got != 100 {
		t.Fatalf("popHead() = %d, want 100", got)
	}
	if got := fl.popHead(); got != 200 {
		t.Fatalf("popHead() = %d, want 200", got)
	}
	if got := fl.popHead(); got != 300 {
		t.Fatalf("popHead() = %d, want 300", got)
	}
	if got := fl.popHead(); got != Null {
		t.Fatalf("popHead() on empty list = %d, want Null", got)
	}
}

func TestFreeListSpansMultiplePages(t *testing.T) {
	fl, _ := newTestFreeList()
	total := freeListCap*2 + 5
	for i := 0; i < total; i++ {
		fl.pushTail(uint64(1000 + i))
	}
	if fl.total() != total {
		t.Fatalf("total() = %d, want %d", fl.total(), total)
	}
	for i := 0; i < total; i++ {
		got := fl.popHead()
		want := uint64(1000 + i)
		if got != want {
			t.Fatalf("popHead() #%d = %d, want %d", i, got, want)
		}
	}
}

func TestFreeListSerializeRoundTrip(t *testing.T) {
	fl, _ := newTestFreeList()
	fl.pushTail(7)
	fl.pushTail(8)
	fl.setMaxSeq()

	data := fl.serialize()

	var fl2 freeList
	fl2.deserialize(data)

	if fl2.headPage != fl.headPage || fl2.headSeq != fl.headSeq {
		t.Errorf("head mismatch after round trip: got (%d,%d), want (%d,%d)", fl2.headPage, fl2.headSeq, fl.headPage, fl.headSeq)
	}
	if fl2.tailPage != fl.tailPage || fl2.tailSeq != fl.tailSeq {
		t.Errorf("tail mismatch after round trip: got (%d,%d), want (%d,%d)", fl2.tailPage, fl2.tailSeq, fl.tailPage, fl.tailSeq)
	}
	if fl2.maxSeq != fl.maxSeq {
		t.Errorf("maxSeq mismatch: got %d, want %d", fl2.maxSeq, fl.maxSeq)
	}
}

func TestFreeListMaxSeqGuardsInFlightReaders(t *testing.T) {
	fl, _ := newTestFreeList()
	fl.pushTail(42)
	fl.setMaxSeq() // snapshot: nothing pushed after this is visible yet
	fl.pushTail(43)

	if got := fl.popHead(); got != 42 {
		t.Fatalf("popHead() = %d, want 42", got)
	}
	if got := fl.popHead(); got != Null {
		t.Fatalf("popHead() past maxSeq = %d, want Null", got)
	}
}
