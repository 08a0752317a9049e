// ABOUTME: Cache-line flush + memory fence primitive, with optional emulated write latency
// ABOUTME: Generalizes the reference's clflush/mfence into a portable, observable Go primitive

package flush

import (
	"sync/atomic"
	"time"
)

// Recorder observes every flushed byte range. The crashlog package
// implements this interface to build a replayable flush journal for
// crash-injection tests; production use leaves it nil.
type Recorder interface {
	RecordFlush(addr uintptr, data []byte)
}

// Flusher issues cache-line flushes. The zero value is usable and performs
// logical flushes only (no emulated latency, no recording) — suitable for
// the Volatile pool. The pool constructors (pool.NewVolatile, pool.OpenPM)
// take a single Flusher and route every node flush of the tree built on
// that pool through it, matching spec.md §9's "global mutable state...
// represent as a configuration object threaded through constructors."
type Flusher struct {
	// WriteLatency emulates the PM write-latency knob from the CLI's -w
	// flag (reference: write_latency_in_ns). Zero disables emulation.
	WriteLatency time.Duration

	// Recorder, if set, is notified of every flushed cache line so a test
	// can later truncate the stream and replay only a prefix.
	Recorder Recorder

	// Msync, if set, is called with the full mapped region after every
	// flush that touches PM-backed storage (golang.org/x/sys/unix.Msync
	// wired in by the PM pool). Nil for the volatile pool.
	Msync func() error

	count uint64
}

// Flush evicts one or more 64-byte lines covering data to the persistence
// domain. addr is the logical address of data's first byte within the pool
// (used only to key the Recorder, since Go slices have no stable pointer
// identity once relocated) — the pools pass ref*PageSize + offset.
func (f *Flusher) Flush(addr uintptr, data []byte) {
	atomic.AddUint64(&f.count, 1)

	if f.WriteLatency > 0 {
		time.Sleep(f.WriteLatency)
	}

	if f.Recorder != nil {
		cp := make([]byte, len(data))
		copy(cp, data)
		f.Recorder.RecordFlush(addr, cp)
	}

	if f.Msync != nil {
		_ = f.Msync()
	}
}

// Count returns the number of Flush calls made so far. Exposed for tests.
func (f *Flusher) Count() uint64 { return atomic.LoadUint64(&f.count) }
