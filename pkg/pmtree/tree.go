// ABOUTME: top-level Tree driver: descent, per-node write locks, root growth
// ABOUTME: Grounded on the teacher's pkg/btree/btree.go Insert/Delete/Get driver, generalized to the FAST&FAIR in-place protocol from _examples/original_source/concurrent/src/btree.h

// Package pmtree implements the FAST&FAIR concurrent, crash-consistent
// B+-tree index described by spec.md: int64 keys mapped to uint64
// value-handles, durable through a pool.Pool allocator.
package pmtree

import (
	"sync"
	"time"

	"github.com/nainya/fastfair/internal/logger"
	"github.com/nainya/fastfair/internal/metrics"
	"github.com/nainya/fastfair/pkg/pmnode"
	"github.com/nainya/fastfair/pkg/pool"
)

// Config configures a Tree's ambient behavior. Every field is optional.
type Config struct {
	// Rebalance enables the optional merge-on-delete path (spec.md §4.6,
	// "Non-goals": rebalancing is not required for crash consistency and
	// is disabled by default, matching the reference implementation).
	Rebalance bool

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Tree is a concurrent, crash-consistent B+-tree over a pool.Pool.
// All exported operations are safe for concurrent use by multiple
// goroutines, following spec.md §5's lock-coupling-free design: readers
// never block, and insert and plain delete hold at most one node's lock at
// a time. The optional rebalance path (Config.Rebalance) holds a parent's
// lock while it takes the lock of one child at a time.
type Tree struct {
	pool pool.Pool
	cfg  Config

	locksMu sync.Mutex
	locks   map[uint64]*sync.Mutex
}

// New wraps p as a Tree, initializing an empty root leaf if the pool has
// none yet (spec.md §4.1: "a freshly allocated tree is a single empty leaf
// at height 1").
func New(p pool.Pool, cfg Config) *Tree {
	t := &Tree{pool: p, cfg: cfg, locks: make(map[uint64]*sync.Mutex)}
	if p.Root() == pool.Null {
		ref, root := p.Alloc()
		root.SetLevel(0)
		p.FlushNode(ref, root)
		p.SetRoot(ref)
		p.SetHeight(1)
	}
	return t
}

func (t *Tree) lockFor(ref uint64) *sync.Mutex {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	mu, ok := t.locks[ref]
	if !ok {
		mu = &sync.Mutex{}
		t.locks[ref] = mu
	}
	return mu
}

// leafFor descends from the root toward the leaf that should contain key,
// chasing the sibling chain at every level when a concurrent split has
// moved key's range to the right (spec.md §4.3 "sibling overshoot").
func (t *Tree) leafFor(key int64) (uint64, pmnode.Node) {
	ref := t.pool.Root()
	node := t.pool.Get(ref)
	for !node.IsLeaf() {
		if next, ok := t.overshoot(node, key); ok {
			ref, node = next, t.pool.Get(next)
			continue
		}
		child := searchInternal(node, key)
		ref, node = child, t.pool.Get(child)
	}
	for {
		next, ok := t.overshoot(node, key)
		if !ok {
			return ref, node
		}
		ref, node = next, t.pool.Get(next)
	}
}

// overshoot reports the sibling to follow instead of node, if key falls at
// or beyond node's sibling's lower bound.
func (t *Tree) overshoot(node pmnode.Node, key int64) (uint64, bool) {
	sib := node.Sibling()
	if sib == pool.Null {
		return 0, false
	}
	sibNode := t.pool.Get(sib)
	if key >= sibNode.Highest() {
		return sib, true
	}
	return 0, false
}

// Insert adds (key, handle) to the tree. Duplicate keys are not rejected:
// per spec.md's open question on duplicate inserts, the index preserves
// reference semantics and appends a second entry rather than overwriting,
// matching the reference implementation's insert_key.
func (t *Tree) Insert(key int64, handle uint64) {
	start := time.Now()
	ref, _ := t.leafFor(key)
	for !t.store(ref, key, handle, pool.Null) {
		if t.cfg.Metrics != nil {
			t.cfg.Metrics.RetriesTotal.Inc()
		}
		ref, _ = t.leafFor(key)
	}
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.InsertsTotal.Inc()
		t.cfg.Metrics.RecordOperation("insert", time.Since(start))
	}
	if t.cfg.Logger != nil {
		t.cfg.Logger.TreeLogger("insert").LogOperation("insert", time.Since(start), key, nil)
	}
}

// Search returns the value-handle for key using the lock-free read
// protocol of spec.md §4.3. If key was inserted more than once, Search
// returns one of its handles (unspecified which).
func (t *Tree) Search(key int64) (uint64, bool) {
	start := time.Now()
	_, node := t.leafFor(key)
	v, ok := searchLeaf(node, key)
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.SearchesTotal.Inc()
		t.cfg.Metrics.RecordOperation("search", time.Since(start))
	}
	return v, ok
}

// Delete removes one entry matching key and reports whether a match was
// found. If key was inserted more than once, Delete removes an
// unspecified one of the matching entries.
func (t *Tree) Delete(key int64) bool {
	start := time.Now()
	var found bool
	if t.cfg.Rebalance {
		found = t.deleteRebalancing(key)
	} else {
		for {
			ref, _ := t.leafFor(key)
			handle, ok, retired := t.remove(ref, key)
			if retired {
				if t.cfg.Metrics != nil {
					t.cfg.Metrics.RetriesTotal.Inc()
				}
				continue
			}
			_ = handle
			found = ok
			break
		}
	}
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.DeletesTotal.Inc()
		t.cfg.Metrics.RecordOperation("delete", time.Since(start))
	}
	return found
}

// SearchRange appends the value-handles of all keys k with min < k < max,
// in ascending key order, into out, stopping when out is full. It returns
// the number of handles written (spec.md §4.7, §6).
func (t *Tree) SearchRange(min, max int64, out []uint64) int {
	start := time.Now()
	if min >= max || len(out) == 0 {
		return 0
	}
	_, node := t.leafFor(min + 1)
	total := 0
	for node != nil && total < len(out) {
		stop, n := scanRangeInto(node, min, max, out[total:])
		total += n
		if stop {
			break
		}
		sib := node.Sibling()
		if sib == pool.Null {
			break
		}
		node = t.pool.Get(sib)
	}
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.RangeScansTotal.Inc()
		t.cfg.Metrics.RecordOperation("range_scan", time.Since(start))
	}
	return total
}
