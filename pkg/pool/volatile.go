// ABOUTME: Heap-backed pool for the volatile tree variant, no real persistence beyond bookkeeping
// ABOUTME: Grounded on the teacher's in-memory TestContext page map (pkg/btree/btree_test.go)

package pool

import (
	"sync"
	"unsafe"

	"github.com/nainya/fastfair/pkg/flush"
	"github.com/nainya/fastfair/pkg/pmnode"
)

// Volatile is a plain-heap Pool. Flush calls still go through the shared
// Flusher (so write-latency emulation and crash-log recording still work
// in tests), but there is no backing file: closing or crashing the process
// loses everything, matching the "volatile variant" spec.md contrasts
// against the PM variant throughout §4-§6.
type Volatile struct {
	mu      sync.Mutex
	pages   []pmnode.Node // index i holds the node for ref i+1
	free    []uint64
	root    uint64
	height  uint32
	Flusher *flush.Flusher
}

// NewVolatile creates an empty volatile pool. f may be nil, in which case
// a default zero-value Flusher (no latency, no recording) is used.
func NewVolatile(f *flush.Flusher) *Volatile {
	if f == nil {
		f = &flush.Flusher{}
	}
	return &Volatile{Flusher: f}
}

// alignedBuffer returns a PageSize Node view into a larger backing slice,
// sliced so its first byte starts on a CacheLineSize boundary — the
// portable stand-in for the reference's posix_memalign(&ret, 64, size).
func alignedBuffer() pmnode.Node {
	buf := make([]byte, pmnode.PageSize+pmnode.CacheLineSize)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	pad := (pmnode.CacheLineSize - int(addr%pmnode.CacheLineSize)) % pmnode.CacheLineSize
	return pmnode.Node(buf[pad : pad+pmnode.PageSize])
}

func (p *Volatile) Alloc() (uint64, pmnode.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node := alignedBuffer()
	copy(node, pmnode.New())

	if len(p.free) > 0 {
		ref := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		p.pages[ref-1] = node
		return ref, node
	}

	p.pages = append(p.pages, node)
	return uint64(len(p.pages)), node
}

func (p *Volatile) Get(ref uint64) pmnode.Node {
	if ref == Null {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(ref) > len(p.pages) {
		return nil
	}
	return p.pages[ref-1]
}

func (p *Volatile) Free(ref uint64) {
	if ref == Null {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, ref)
}

func (p *Volatile) FlushRange(ref uint64, node pmnode.Node, offset, length int) {
	addr := uintptr(ref)*pmnode.PageSize + uintptr(offset)
	p.Flusher.Flush(addr, node[offset:offset+length])
}

func (p *Volatile) FlushNode(ref uint64, node pmnode.Node) {
	p.FlushRange(ref, node, 0, len(node))
}

func (p *Volatile) Root() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.root
}

func (p *Volatile) SetRoot(ref uint64) {
	p.mu.Lock()
	p.root = ref
	p.mu.Unlock()
}

func (p *Volatile) Height() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *Volatile) SetHeight(h uint32) {
	p.mu.Lock()
	p.height = h
	p.mu.Unlock()
}

func (p *Volatile) Close() error { return nil }
