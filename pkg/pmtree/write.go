// ABOUTME: write-path driver: per-node locking, sibling chasing under lock, dispatch to FAST insert or FAIR split
// ABOUTME: Grounded on _examples/original_source/concurrent/src/btree.h store()/btree_insert_internal()/remove()/btree_delete_internal()

package pmtree

import (
	"github.com/nainya/fastfair/pkg/pmnode"
	"github.com/nainya/fastfair/pkg/pool"
)

// store inserts (key, handle) starting at ref, chasing the sibling chain
// under lock if a split moved key's range out from under ref since the
// caller last looked, and performing a FAIR split if ref is full. It
// returns false only when ref was concurrently retired (deleted from the
// tree by a merge); the caller must re-descend from the root and retry.
//
// invalidSibling prevents re-chasing a sibling the caller already visited
// and rejected, matching the reference's cycle guard.
func (t *Tree) store(ref uint64, key int64, handle uint64, invalidSibling uint64) bool {
	mu := t.lockFor(ref)
	mu.Lock()
	node := t.pool.Get(ref)

	if node.IsDeleted() {
		mu.Unlock()
		return false
	}

	if sib := node.Sibling(); sib != pool.Null && sib != invalidSibling {
		if key >= t.pool.Get(sib).Highest() {
			mu.Unlock()
			return t.store(sib, key, handle, invalidSibling)
		}
	}

	n := count(node)
	if n < pmnode.Cardinality-1 {
		t.fastInsert(ref, node, key, handle, n)
		mu.Unlock()
		return true
	}

	splitKey, siblingRef, level := t.split(ref, node, key, handle, n)
	growsRoot := ref == t.pool.Root()
	mu.Unlock()

	if t.cfg.Metrics != nil {
		t.cfg.Metrics.SplitsTotal.Inc()
	}
	if t.cfg.Logger != nil {
		t.cfg.Logger.TreeLogger("split").LogSplit(level, splitKey, siblingRef)
	}

	if growsRoot {
		t.growRoot(ref, splitKey, siblingRef, level)
	} else {
		t.insertAtLevel(splitKey, siblingRef, level)
	}
	return true
}

// insertAtLevel re-descends from the current root to the given level and
// inserts (key, handle) as a separator there, retrying the whole descent
// if the target node is concurrently retired (spec.md §4.4 step 10,
// mirroring the reference's btree_insert_internal).
func (t *Tree) insertAtLevel(key int64, handle uint64, level uint32) {
	for {
		ref := t.pool.Root()
		node := t.pool.Get(ref)
		if level > node.Level() {
			// The root is still below this level: a concurrent root split
			// has not published its new root yet. The separator is not
			// inserted; the new sibling stays reachable through the
			// sibling chain only.
			return
		}
		for node.Level() > level {
			if next, ok := t.overshoot(node, key); ok {
				ref, node = next, t.pool.Get(next)
				continue
			}
			child := searchInternal(node, key)
			ref, node = child, t.pool.Get(child)
		}
		if t.store(ref, key, handle, pool.Null) {
			return
		}
	}
}

// growRoot allocates a new root above leftRef and rightRef, the two
// halves of a split root, and publishes it (spec.md §4.4 step 9).
func (t *Tree) growRoot(leftRef uint64, splitKey int64, rightRef uint64, level uint32) {
	rootRef, root := t.pool.Alloc()
	root.SetLevel(level)
	root.SetLeftmost(leftRef)
	root.SetKey(0, splitKey)
	root.SetValue(0, rightRef)
	root.SetValue(1, 0)
	root.SetLastIndex(0)
	t.pool.FlushNode(rootRef, root)

	t.pool.SetRoot(rootRef)
	t.pool.SetHeight(t.pool.Height() + 1)
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.TreeHeight.Set(float64(t.pool.Height()))
	}
}

// remove deletes one entry matching key from ref under lock. retired
// reports that ref was already torn down by a concurrent rebalance and
// the caller must re-descend and retry.
func (t *Tree) remove(ref uint64, key int64) (handle uint64, found bool, retired bool) {
	mu := t.lockFor(ref)
	mu.Lock()
	defer mu.Unlock()

	node := t.pool.Get(ref)
	if node.IsDeleted() {
		return 0, false, true
	}
	h, ok := t.fastRemove(ref, node, key)
	return h, ok, false
}
