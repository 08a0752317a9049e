// ABOUTME: PM object-pool allocator interface, the external collaborator spec.md §2 calls out of scope
// ABOUTME: Provides the concrete Volatile and PM implementations the core FAST&FAIR index is built against

// Package pool implements the PM object-pool allocator that spec.md treats
// as an external collaborator: allocate(size) -> PersistentRef,
// persist(addr, len), root_object(). Two implementations are provided —
// Volatile (plain heap, for tests and non-durable use) and PM
// (mmap-file-backed, adapted from the teacher's pkg/storage/kv.go) — both
// satisfying the same Pool interface so pkg/pmtree never depends on which
// one backs a given tree.
package pool

import "github.com/nainya/fastfair/pkg/pmnode"

// Null is the reserved ref value meaning "no node" (the reference's NULL
// page pointer, spec.md's "null value-handle marks end-of-entries").
const Null uint64 = 0

// Pool allocates, dereferences, and persists fixed-size nodes, and holds
// the tree's durable root slot and advisory height (spec.md §6 "root_slot
// read/write", §5 "height is advisory, not authoritative").
type Pool interface {
	// Alloc reserves a new node-sized slot and returns its ref together
	// with a freshly initialized (pmnode.New: empty, LastIndex -1,
	// Highest EmptyKey), cache-line-aligned Node view onto it.
	Alloc() (ref uint64, node pmnode.Node)

	// Get dereferences a ref to its live Node view. Returns nil for Null.
	// For a ref that was never allocated, Volatile returns nil and PM
	// panics.
	Get(ref uint64) pmnode.Node

	// Free marks ref available for reuse. A freed ref must never be
	// reachable from the tree at the time of the call (spec.md §3
	// "nodes... are never physically reclaimed while any reader may
	// still hold a reference" — callers honor this by only freeing
	// fully-unlinked nodes, which this design never does for the
	// mandatory no-rebalance delete path).
	Free(ref uint64)

	// FlushRange durably persists node[offset:offset+length]. The FAST
	// write path passes one cache line (or the 64-byte header) at a time;
	// FlushNode passes the whole node.
	FlushRange(ref uint64, node pmnode.Node, offset, length int)

	// FlushNode durably persists the whole node in one operation, used by
	// FAIR split's "persist S wholesale" step.
	FlushNode(ref uint64, node pmnode.Node)

	// Root returns the durable root ref.
	Root() uint64

	// SetRoot durably publishes a new root ref (spec.md §4.4 step 9,
	// "persisting the new root handle, then incrementing height").
	SetRoot(ref uint64)

	// Height returns the advisory tree height.
	Height() uint32

	// SetHeight records the advisory height; the tree calls it with the
	// current height plus one after a root-growth split.
	SetHeight(h uint32)

	// Close releases any OS resources held by the pool.
	Close() error
}
