// ABOUTME: FAST&FAIR node layout as a fixed-size, cache-line-aligned byte slice
// ABOUTME: Header accessors and entry accessors mirror the page/header/entry split of the reference design

package pmnode

import (
	"encoding/binary"
	"math"
)

// PageSize is the fixed node size. Matches the reference's PAGESIZE.
const PageSize = 512

// CacheLineSize is the persistence granularity: writes are atomic-durable
// only at this width.
const CacheLineSize = 64

// HeaderSize is the size of the fixed node header.
const HeaderSize = 64

// EntrySize is the size of one (key, value-handle) slot.
const EntrySize = 16

// Cardinality is the number of entry slots a node holds.
const Cardinality = (PageSize - HeaderSize) / EntrySize

// entriesPerLine is how many entries fit in one cache line, used by the
// flush-boundary rule in the FAST protocol.
const entriesPerLine = CacheLineSize / EntrySize

// EmptyKey is the sentinel marking an unused slot (reference's LONG_MAX).
const EmptyKey = int64(math.MaxInt64)

// NullHandle marks end-of-entries within a node.
const NullHandle = uint64(0)

// header field byte offsets within the 64-byte header.
const (
	offLeftmost      = 0  // 8 bytes: child ref, internal nodes only
	offSibling       = 8  // 8 bytes: right-sibling ref
	offHighest       = 16 // 8 bytes: split key this node was created at, int64
	offLevel         = 24 // 4 bytes: 0 = leaf
	offSwitchCounter = 28 // 1 byte
	offIsDeleted     = 29 // 1 byte
	offLastIndex     = 30 // 2 bytes: int16, -1 when empty
	// the remaining 32 bytes of the 64-byte header are reserved for
	// alignment; the write lock itself is not part of the durable layout
	// and lives alongside the node as in-memory-only state, see
	// Tree.lockFor in pkg/pmtree/tree.go.
)

// Node is a 512-byte page addressed like the teacher's BNode: a byte slice
// with typed accessors, generalized from variable-length KV slots to fixed
// 16-byte (int64, uint64) entries.
type Node []byte

// New allocates a zeroed, properly sized node buffer. Callers that need
// 64-byte physical alignment (the pool) allocate a larger buffer and slice
// into it; see pool.alignedBuffer.
func New() Node {
	n := make(Node, PageSize)
	n.SetLastIndex(-1)
	n.SetHighest(EmptyKey)
	return n
}

// Leftmost returns the leftmost-child reference (internal nodes only).
func (n Node) Leftmost() uint64 { return binary.LittleEndian.Uint64(n[offLeftmost:]) }

// SetLeftmost sets the leftmost-child reference.
func (n Node) SetLeftmost(ref uint64) { binary.LittleEndian.PutUint64(n[offLeftmost:], ref) }

// Sibling returns the right-sibling reference, or 0 if none.
func (n Node) Sibling() uint64 { return binary.LittleEndian.Uint64(n[offSibling:]) }

// SetSibling sets the right-sibling reference.
func (n Node) SetSibling(ref uint64) { binary.LittleEndian.PutUint64(n[offSibling:], ref) }

// Highest returns the split key recorded when this node was created as the
// right half of a split: the lowest key that belongs in this node rather
// than in its left neighbor. Readers compare a key against their node's
// sibling's Highest and move right when key >= it. A node that was never
// created by a split keeps the EmptyKey set at construction, so no key
// below EmptyKey is ever sent into it that way.
func (n Node) Highest() int64 { return int64(binary.LittleEndian.Uint64(n[offHighest:])) }

// SetHighest sets the split key returned by Highest.
func (n Node) SetHighest(key int64) { binary.LittleEndian.PutUint64(n[offHighest:], uint64(key)) }

// Level returns 0 for a leaf, increasing toward the root.
func (n Node) Level() uint32 { return binary.LittleEndian.Uint32(n[offLevel:]) }

// SetLevel sets the node's tree level.
func (n Node) SetLevel(level uint32) { binary.LittleEndian.PutUint32(n[offLevel:], level) }

// IsLeaf reports whether this node has no leftmost child, i.e. is a leaf.
func (n Node) IsLeaf() bool { return n.Leftmost() == 0 }

// SwitchCounter returns the scan-direction/mutation epoch byte.
func (n Node) SwitchCounter() uint8 { return n[offSwitchCounter] }

// setSwitchCounter is unexported: only the write protocol mutates this.
func (n Node) setSwitchCounter(v uint8) { n[offSwitchCounter] = v }

// bumpSwitchCounterOdd flips the counter to odd (backward-scan signal) if
// it is currently even. remove_key forces this parity in the reference
// (btree.h:217, "if(IS_FORWARD) ++") because FAST delete shifts entries
// left, low index to high: a reader must walk the opposite direction
// (high to low) to avoid chasing the same slots the writer is still
// moving through.
func (n Node) bumpSwitchCounterOdd() {
	if isForward(n.SwitchCounter()) {
		n.setSwitchCounter(n.SwitchCounter() + 1)
	}
}

// bumpSwitchCounterEven flips the counter to even (forward-scan signal) if
// it is currently odd. insert_key forces this parity in the reference
// (btree.h:505, "if(!IS_FORWARD) ++") because FAST insert shifts entries
// right, high index to low: a reader must walk forward (low to high) to
// stay ahead of the writer instead of re-reading slots it is about to
// overwrite.
func (n Node) bumpSwitchCounterEven() {
	if !isForward(n.SwitchCounter()) {
		n.setSwitchCounter(n.SwitchCounter() + 1)
	}
}

// bumpSwitchCounterSplit advances the counter by 2 if even or by 1 if odd,
// per spec.md §4.4 step 7 ("preserve parity semantics while signaling
// split occurred").
func (n Node) bumpSwitchCounterSplit() {
	if isForward(n.SwitchCounter()) {
		n.setSwitchCounter(n.SwitchCounter() + 2)
	} else {
		n.setSwitchCounter(n.SwitchCounter() + 1)
	}
}

// isForward reports whether a switch-counter value selects forward scan.
func isForward(c uint8) bool { return c%2 == 0 }

// IsDeleted reports the tombstone flag.
func (n Node) IsDeleted() bool { return n[offIsDeleted] != 0 }

// SetDeleted sets or clears the tombstone flag.
func (n Node) SetDeleted(v bool) {
	if v {
		n[offIsDeleted] = 1
	} else {
		n[offIsDeleted] = 0
	}
}

// LastIndex returns the index of the last valid entry, or -1 if empty.
// This is an in-memory hint, not authoritative: durable count is always
// recovered by scanning (spec.md §4.1).
func (n Node) LastIndex() int16 { return int16(binary.LittleEndian.Uint16(n[offLastIndex:])) }

// SetLastIndex sets the last-valid-entry hint.
func (n Node) SetLastIndex(idx int16) { binary.LittleEndian.PutUint16(n[offLastIndex:], uint16(idx)) }

func entryOffset(idx int) int { return HeaderSize + idx*EntrySize }

// Key returns the key stored at slot idx.
func (n Node) Key(idx int) int64 {
	off := entryOffset(idx)
	return int64(binary.LittleEndian.Uint64(n[off:]))
}

// SetKey sets the key stored at slot idx.
func (n Node) SetKey(idx int, key int64) {
	off := entryOffset(idx)
	binary.LittleEndian.PutUint64(n[off:], uint64(key))
}

// Value returns the value-handle stored at slot idx.
func (n Node) Value(idx int) uint64 {
	off := entryOffset(idx) + 8
	return binary.LittleEndian.Uint64(n[off:])
}

// SetValue sets the value-handle stored at slot idx.
func (n Node) SetValue(idx int, val uint64) {
	off := entryOffset(idx) + 8
	binary.LittleEndian.PutUint64(n[off:], val)
}

// setEntry writes both key and value-handle of a slot in one call.
func (n Node) setEntry(idx int, key int64, val uint64) {
	n.SetKey(idx, key)
	n.SetValue(idx, val)
}

// CrossesLine reports whether the just-written slot idx is the last entry
// that fits in its cache line — the FAST "flush boundary rule" of
// spec.md §4.2: flush a line when, and only when, the entry just written
// is the last one that fits in it.
func CrossesLine(idx int) bool {
	return (idx+1)%entriesPerLine == 0 || idx == Cardinality-1
}

// LineBounds returns the byte offset and length of the cache line
// containing entry idx, for the flush primitive to persist.
func LineBounds(idx int) (offset, length int) {
	line := idx / entriesPerLine
	return HeaderSize + line*entriesPerLine*EntrySize, CacheLineSize
}

// IsForward reports whether a switch-counter value selects forward scan
// (even) versus backward scan (odd). Exported for pmtree's read protocol.
func IsForward(c uint8) bool { return isForward(c) }

// BumpOdd flips the switch counter to odd if it is currently even,
// signaling "backward-scan" to concurrent readers. Called at the start of
// a FAST delete (spec.md §4.6 step 1): delete shifts entries left, so
// readers must scan right-to-left to stay ahead of the shift.
func (n Node) BumpOdd() { n.bumpSwitchCounterOdd() }

// BumpEven flips the switch counter to even if it is currently odd,
// signaling "forward-scan" to concurrent readers. Called at the start of
// a FAST insert (spec.md §4.2 step 1): insert shifts entries right, so
// readers must scan left-to-right to stay ahead of the shift.
func (n Node) BumpEven() { n.bumpSwitchCounterEven() }

// BumpSplit advances the switch counter by 2 if even or by 1 if odd,
// preserving parity while signaling that a split occurred (spec.md §4.4
// step 7).
func (n Node) BumpSplit() { n.bumpSwitchCounterSplit() }

// SetEntry writes both key and value-handle of a slot in one call.
func (n Node) SetEntry(idx int, key int64, val uint64) { n.setEntry(idx, key, val) }
