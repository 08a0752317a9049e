// ABOUTME: crash-injection replay: apply a prefix of recorded flushes onto a backing buffer
// ABOUTME: New relative to the teacher's WAL, since FAST&FAIR recovery is "replay onto memory", not "replay transactions onto a KV store"

package crashlog

// Apply overlays each entry's bytes onto mem at its recorded address, in
// order. Used by crash-injection tests to reconstruct "the pool's
// contents had the first N flushes landed and nothing after them",
// simulating a crash that loses everything from some flush onward
// (spec.md scenario 6, P5).
func Apply(entries []*Entry, mem []byte) {
	for _, e := range entries {
		addr := int(e.Addr)
		if addr < 0 || addr+len(e.Data) > len(mem) {
			continue
		}
		copy(mem[addr:addr+len(e.Data)], e.Data)
	}
}

// Prefix returns the first n entries, or all of them if n >= len(entries).
// Combined with Apply, Prefix(entries, n) simulates a crash after exactly
// n flushes were made durable.
func Prefix(entries []*Entry, n int) []*Entry {
	if n >= len(entries) {
		return entries
	}
	if n < 0 {
		n = 0
	}
	return entries[:n]
}
