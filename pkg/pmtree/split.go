// ABOUTME: FAIR (Failure-Atomic In-place Rebalance) split protocol
// ABOUTME: Grounded on _examples/original_source/concurrent/src/btree.h store()'s split branch, following spec.md §4.4 step order exactly for the crash-safety argument

package pmtree

import "github.com/nainya/fastfair/pkg/pmnode"

// split carves node (holding n == Cardinality-1 entries, full) into node
// and a new sibling, then inserts (key, handle) into whichever half it
// belongs in. Caller holds node's write lock throughout. Returns the
// separator key and sibling ref the caller must propagate to the parent,
// and the tree level that insertion belongs at.
//
// Step order matches spec.md §4.4 exactly, because it is what makes a
// crash mid-split recoverable by scanning forward through the sibling
// chain with zero extra work:
//
//  1. Allocate sibling S, same level as node.
//  2. Copy the upper half of node's entries into S (leaves keep the
//     median; internal nodes promote it and drop it from both halves).
//  3. Set S.sibling = node.sibling, S.highest = the separator key.
//  4. Persist S wholesale (it is not reachable from anywhere yet).
//  5. Set node.sibling = S and persist node's header alone — this single
//     write is what makes S visible to the rest of the tree; a crash
//     here leaves node's data intact and S already durable.
//  6. Invalidate the moved slot in node (null its value-handle) and
//     flush, bump the switch counter, set node.last_index = m-1, and
//     persist node's header again.
//  7. Insert the new entry into whichever half it belongs.
func (t *Tree) split(ref uint64, node pmnode.Node, key int64, handle uint64, n int) (splitKey int64, siblingRef uint64, level uint32) {
	siblingRef, sibling := t.pool.Alloc()
	sibling.SetLevel(node.Level())

	m := (n + 1) / 2
	splitKey = node.Key(m)
	leaf := node.IsLeaf()

	sc := 0
	if leaf {
		for i := m; i < n; i++ {
			sibling.SetKey(sc, node.Key(i))
			sibling.SetValue(sc, node.Value(i))
			sc++
		}
	} else {
		sibling.SetLeftmost(node.Value(m))
		for i := m + 1; i < n; i++ {
			sibling.SetKey(sc, node.Key(i))
			sibling.SetValue(sc, node.Value(i))
			sc++
		}
	}
	sibling.SetValue(sc, pmnode.NullHandle)
	sibling.SetLastIndex(int16(sc - 1))
	sibling.SetHighest(splitKey)
	sibling.SetSibling(node.Sibling())
	t.pool.FlushNode(siblingRef, sibling)

	node.SetSibling(siblingRef)
	t.flushHeader(ref, node)

	node.SetValue(m, pmnode.NullHandle)
	t.flushLine(ref, node, m)
	node.BumpSplit()
	node.SetLastIndex(int16(m - 1))
	t.flushHeader(ref, node)

	if key < splitKey {
		t.fastInsert(ref, node, key, handle, count(node))
	} else {
		t.fastInsert(siblingRef, sibling, key, handle, count(sibling))
	}

	return splitKey, siblingRef, node.Level() + 1
}

func (t *Tree) flushHeader(ref uint64, node pmnode.Node) {
	t.pool.FlushRange(ref, node, 0, pmnode.HeaderSize)
}
