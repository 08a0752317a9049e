// ABOUTME: lock-free read protocol: derived count(), leaf search, internal-node child selection, range scan
// ABOUTME: Grounded on _examples/original_source/concurrent/src/btree.h's count()/linear_search()/linear_search_range(), restructured around spec.md §4.3's cleaner contract

package pmtree

import (
	"sort"

	"github.com/nainya/fastfair/pkg/pmnode"
)

// count derives a node's entry count by scanning for the first null
// value-handle, retrying if a concurrent shift changes the switch counter
// mid-scan. last_index is only a hint; this is the authoritative count
// (spec.md §4.1, §4.3).
func count(node pmnode.Node) int {
	for {
		c0 := node.SwitchCounter()
		forward := pmnode.IsForward(c0)

		n := int(node.LastIndex()) + 1
		if n < 0 {
			n = 0
		}
		if forward {
			for n < pmnode.Cardinality && node.Value(n) != pmnode.NullHandle {
				n++
			}
		} else {
			for n > 0 && node.Value(n-1) == pmnode.NullHandle {
				n--
			}
		}

		if node.SwitchCounter() == c0 {
			return n
		}
	}
}

// searchLeaf looks up key within a leaf, rejecting any candidate whose
// value-handle equals its left neighbor's (a transient duplicate left by a
// concurrent FAST shift, spec.md §4.2) and retrying on a switch-counter
// change.
func searchLeaf(node pmnode.Node, key int64) (uint64, bool) {
	for {
		c0 := node.SwitchCounter()
		forward := pmnode.IsForward(c0)
		n := count(node)

		var result uint64
		found := false

		check := func(i int) bool {
			if node.Key(i) != key {
				return false
			}
			v := node.Value(i)
			if v == pmnode.NullHandle {
				return false
			}
			if i > 0 && v == node.Value(i-1) {
				return false
			}
			result, found = v, true
			return true
		}

		if forward {
			for i := 0; i < n; i++ {
				if check(i) {
					break
				}
			}
		} else {
			for i := n - 1; i >= 0; i-- {
				if check(i) {
					break
				}
			}
		}

		if node.SwitchCounter() == c0 {
			return result, found
		}
	}
}

// searchInternal selects the child to descend into for key: the value of
// the greatest entry whose key is <= target, or the leftmost child if key
// is less than every entry (spec.md §4.3).
func searchInternal(node pmnode.Node, key int64) uint64 {
	for {
		c0 := node.SwitchCounter()
		forward := pmnode.IsForward(c0)
		n := count(node)

		result := node.Leftmost()
		matched := false

		pick := func(i int) (uint64, bool) {
			v := node.Value(i)
			var left uint64
			if i == 0 {
				left = node.Leftmost()
			} else {
				left = node.Value(i - 1)
			}
			if v == left {
				return 0, false
			}
			return v, true
		}

		if forward {
			for i := 0; i < n; i++ {
				if key < node.Key(i) {
					break
				}
				if v, ok := pick(i); ok {
					result, matched = v, true
				}
			}
		} else {
			for i := n - 1; i >= 0; i-- {
				if key >= node.Key(i) {
					if v, ok := pick(i); ok {
						result, matched = v, true
					}
					break
				}
			}
		}
		_ = matched

		if node.SwitchCounter() == c0 {
			return result
		}
	}
}

type rangeEntry struct {
	key int64
	val uint64
}

// scanRangeInto reads node's entries strictly between min and max into
// out, sorted ascending by key, retrying on a switch-counter change.
// stop reports whether the caller can avoid visiting node's sibling
// because node already holds a key >= max.
func scanRangeInto(node pmnode.Node, min, max int64, out []uint64) (stop bool, n int) {
	for {
		c0 := node.SwitchCounter()
		forward := pmnode.IsForward(c0)
		cnt := count(node)

		var buf [pmnode.Cardinality]rangeEntry
		bn := 0

		visit := func(i int) {
			k := node.Key(i)
			v := node.Value(i)
			if v == pmnode.NullHandle {
				return
			}
			if i > 0 && v == node.Value(i-1) {
				return
			}
			if k > min && k < max {
				buf[bn] = rangeEntry{k, v}
				bn++
			}
		}

		if forward {
			for i := 0; i < cnt; i++ {
				visit(i)
			}
		} else {
			for i := cnt - 1; i >= 0; i-- {
				visit(i)
			}
		}

		if node.SwitchCounter() == c0 {
			sort.Slice(buf[:bn], func(a, b int) bool { return buf[a].key < buf[b].key })
			n = 0
			for _, e := range buf[:bn] {
				if n >= len(out) {
					break
				}
				out[n] = e.val
				n++
			}
			stop = cnt > 0 && node.Key(cnt-1) >= max
			return
		}
	}
}
