package pool

import (
	"path/filepath"
	"testing"
)

func TestPMAllocPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.pm")

	p, err := OpenPM(path, nil)
	if err != nil {
		t.Fatalf("OpenPM: %v", err)
	}
	ref, node := p.Alloc()
	node.SetKey(0, 99)
	node.SetValue(0, 1234)
	p.FlushNode(ref, node)
	p.SetRoot(ref)
	p.SetHeight(1)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := OpenPM(path, nil)
	if err != nil {
		t.Fatalf("reopen OpenPM: %v", err)
	}
	defer p2.Close()

	if p2.Root() != ref {
		t.Fatalf("Root() after reopen = %d, want %d", p2.Root(), ref)
	}
	if p2.Height() != 1 {
		t.Fatalf("Height() after reopen = %d, want 1", p2.Height())
	}
	got := p2.Get(ref)
	if got.Key(0) != 99 || got.Value(0) != 1234 {
		t.Fatalf("Get(%d) after reopen = (%d,%d), want (99,1234)", ref, got.Key(0), got.Value(0))
	}
}

func TestPMFreeOnlyAcceptsDurableRefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.pm")
	p, err := OpenPM(path, nil)
	if err != nil {
		t.Fatalf("OpenPM: %v", err)
	}
	defer p.Close()

	ref, _ := p.Alloc() // still pending in p.temp, not yet flushed
	p.Free(ref)
	ref2, _ := p.Alloc()
	if ref2 == ref {
		t.Fatalf("Free on a not-yet-durable ref should not be reusable before a commit, got reused %d", ref2)
	}
}

func TestPMManyAllocsSurviveCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.pm")
	p, err := OpenPM(path, nil)
	if err != nil {
		t.Fatalf("OpenPM: %v", err)
	}
	defer p.Close()

	var last uint64
	for i := 0; i < 64; i++ {
		ref, node := p.Alloc()
		node.SetKey(0, int64(i))
		p.FlushNode(ref, node)
		last = ref
	}
	p.SetRoot(last)

	got := p.Get(last)
	if got.Key(0) != int64(63) {
		t.Fatalf("Get(%d).Key(0) = %d, want 63", last, got.Key(0))
	}
}

func TestPMSignatureCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.pm")
	p, err := OpenPM(path, nil)
	if err != nil {
		t.Fatalf("OpenPM: %v", err)
	}
	ref, node := p.Alloc()
	p.FlushNode(ref, node)
	p.SetRoot(ref)
	p.Close()

	p2, err := OpenPM(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	p2.Close()
}
