// ABOUTME: optional merge-on-delete rebalance path, disabled by default
// ABOUTME: Grounded on _examples/original_source/concurrent/src/btree.h remove_rebalancing()/btree_delete_internal(), simplified to single-level left-merge only (see DESIGN.md)

package pmtree

import "github.com/nainya/fastfair/pkg/pool"

// deleteRebalancing deletes key and, if the holding leaf empties out and
// cfg.Rebalance is set, merges it into its left sibling and removes the
// now-dangling separator from the parent. This is a deliberately smaller
// surface than the reference's cascading internal-node rebalance: spec.md
// lists rebalancing itself as optional, and a single-level leaf merge is
// enough to keep an adversarial delete-everything workload from leaving
// behind a chain of permanently empty leaves, without the parent-pointer
// plumbing a full cascading merge would need throughout the read path.
func (t *Tree) deleteRebalancing(key int64) bool {
	for {
		path := t.pathTo(key)
		leafRef := path[len(path)-1]

		_, found, retired := t.remove(leafRef, key)
		if retired {
			continue
		}
		if !found {
			return false
		}

		if len(path) >= 2 {
			mu := t.lockFor(leafRef)
			mu.Lock()
			leaf := t.pool.Get(leafRef)
			empty := count(leaf) == 0 && !leaf.IsDeleted()
			mu.Unlock()
			if empty {
				t.mergeIntoLeftSibling(path)
			}
		}
		return true
	}
}

// pathTo returns the refs visited from root to leaf while resolving key,
// for use by the rebalance path, which needs the parent to remove a
// separator. The plain read/write paths don't need this and stay
// parent-pointer-free per spec.md §3.
func (t *Tree) pathTo(key int64) []uint64 {
	var path []uint64
	ref := t.pool.Root()
	node := t.pool.Get(ref)
	path = append(path, ref)
	for !node.IsLeaf() {
		if next, ok := t.overshoot(node, key); ok {
			ref, node = next, t.pool.Get(next)
			path[len(path)-1] = ref
			continue
		}
		child := searchInternal(node, key)
		ref, node = child, t.pool.Get(child)
		path = append(path, ref)
	}
	for {
		next, ok := t.overshoot(node, key)
		if !ok {
			break
		}
		ref, node = next, t.pool.Get(next)
		path[len(path)-1] = ref
	}
	return path
}

// mergeIntoLeftSibling finds the left sibling of the emptied leaf among
// its parent's children and splices the leaf out of the sibling chain,
// then removes the separator entry that pointed at it from the parent.
// If no left sibling shares this parent (the leaf is the parent's
// leftmost child), the leaf is left in place: it will simply absorb the
// next insert into its key range.
func (t *Tree) mergeIntoLeftSibling(path []uint64) {
	leafRef := path[len(path)-1]
	parentRef := path[len(path)-2]

	pmu := t.lockFor(parentRef)
	pmu.Lock()
	defer pmu.Unlock()
	parent := t.pool.Get(parentRef)
	if parent.IsDeleted() {
		return
	}

	n := count(parent)
	leftRef, idx := pool.Null, -1
	prev := parent.Leftmost()
	for i := 0; i < n; i++ {
		if parent.Value(i) == leafRef {
			leftRef, idx = prev, i
			break
		}
		prev = parent.Value(i)
	}
	if idx < 0 || leftRef == pool.Null {
		return
	}

	lmu := t.lockFor(leftRef)
	lmu.Lock()
	left := t.pool.Get(leftRef)
	left.SetSibling(t.pool.Get(leafRef).Sibling())
	t.flushHeader(leftRef, left)
	lmu.Unlock()

	lf := t.lockFor(leafRef)
	lf.Lock()
	leaf := t.pool.Get(leafRef)
	leaf.SetDeleted(true)
	t.flushHeader(leafRef, leaf)
	lf.Unlock()

	t.fastRemove(parentRef, parent, parent.Key(idx))
}
