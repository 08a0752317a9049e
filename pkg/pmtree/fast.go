// ABOUTME: FAST (Failure-Atomic ShifT) in-place insert and delete shift protocol
// ABOUTME: Grounded on _examples/original_source/concurrent/src/btree.h insert_key()/remove_key(), generalized to Go's pmnode accessors per spec.md §4.2, §4.6

package pmtree

import "github.com/nainya/fastfair/pkg/pmnode"

// fastInsert writes (key, handle) into node, which already has n valid
// entries and room for at least one more. Steps follow spec.md §4.2:
//
//  1. Bump the switch counter even (signal forward-scan to readers): the
//     shift below moves entries right, high index to low, so a reader
//     must walk low to high to stay ahead of it rather than re-reading
//     slots the writer is still in the middle of moving.
//  2. Duplicate entries[n-1] into slot n, extending the valid prefix by
//     one with a transient duplicate value-handle.
//  3. Shift entries right, one at a time, until the insertion point is
//     found, flushing each cache line that crosses a boundary.
//  4. Write the new entry at its landing slot and flush that line
//     unconditionally.
//
// last_index is left updated to n (the new count - 1) once all durable
// writes are complete; readers never observe a count larger than the
// entries actually present because NullHandle always terminates a scan.
func (t *Tree) fastInsert(ref uint64, node pmnode.Node, key int64, handle uint64, n int) {
	node.BumpEven()

	if n == 0 {
		node.SetKey(0, key)
		node.SetValue(0, handle)
		node.SetValue(1, pmnode.NullHandle)
		t.flushLine(ref, node, 0)
		node.SetLastIndex(0)
		return
	}

	node.SetValue(n, node.Value(n-1))
	t.flushIfBoundary(ref, node, n)

	// Re-establish the null terminator one slot past the new valid prefix
	// (reference: records[num_entries+1].ptr = records[num_entries].ptr).
	// Slot n+1 is only guaranteed zero while a node has purely grown from
	// empty; after a split it can still hold a stale copy of a migrated
	// entry, which would otherwise make count() scan past the real prefix.
	node.SetValue(n+1, pmnode.NullHandle)
	t.flushIfBoundary(ref, node, n+1)

	i := n - 1
	for i >= 0 && node.Key(i) > key {
		node.SetEntry(i+1, node.Key(i), node.Value(i))
		t.flushIfBoundary(ref, node, i+1)
		i--
	}
	node.SetEntry(i+1, key, handle)
	t.flushLine(ref, node, i+1)

	node.SetLastIndex(int16(n))
}

// fastRemove deletes the first entry matching key from node (which has n
// valid entries), shifting the remainder left by one, per spec.md §4.6.
// Unlike fastInsert, this shift moves entries left, low index to high, so
// it bumps the switch counter odd (backward-scan) instead of even: the
// two ops must leave opposite parities so a reader's scan direction
// always mirrors whichever shift it might be racing.
func (t *Tree) fastRemove(ref uint64, node pmnode.Node, key int64) (uint64, bool) {
	n := count(node)

	at := -1
	for i := 0; i < n; i++ {
		if node.Key(i) == key {
			at = i
			break
		}
	}
	if at < 0 {
		return 0, false
	}

	node.BumpOdd()
	handle := node.Value(at)

	for i := at; i < n-1; i++ {
		node.SetEntry(i, node.Key(i+1), node.Value(i+1))
		t.flushIfBoundary(ref, node, i)
	}
	node.SetValue(n-1, pmnode.NullHandle)
	t.flushLine(ref, node, n-1)

	node.SetLastIndex(int16(n - 2))
	return handle, true
}

func (t *Tree) flushIfBoundary(ref uint64, node pmnode.Node, idx int) {
	if pmnode.CrossesLine(idx) {
		t.flushLine(ref, node, idx)
	}
}

func (t *Tree) flushLine(ref uint64, node pmnode.Node, idx int) {
	off, length := pmnode.LineBounds(idx)
	t.pool.FlushRange(ref, node, off, length)
}
