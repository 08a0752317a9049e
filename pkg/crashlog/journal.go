// ABOUTME: append-only flush journal, implements flush.Recorder for crash-injection tests
// ABOUTME: Adapted from the teacher's pkg/wal/wal.go WAL.Write/Fsync/Open, generalized from a rotating multi-file transaction log to a single append-only flush record stream

package crashlog

import (
	"os"
	"sync"
	"sync/atomic"
)

// Journal records every flush.Flusher.Flush call to an append-only file,
// satisfying the flush.Recorder interface. Unlike the teacher's WAL it
// never rotates or checkpoints: a crash-injection run is short-lived by
// construction (spec.md scenario 6 truncates and reopens once).
type Journal struct {
	path string
	fd   *os.File

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// Open creates or truncates the journal file at path.
func Open(path string) (*Journal, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{path: path, fd: fd}, nil
}

// RecordFlush implements flush.Recorder: it appends one Entry capturing
// the flushed address and a copy of the flushed bytes.
func (j *Journal) RecordFlush(addr uintptr, data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	seq := atomic.AddUint64(&j.seq, 1)
	cp := make([]byte, len(data))
	copy(cp, data)

	e := Entry{Seq: seq, Addr: uint64(addr), Data: cp}
	_, _ = j.fd.Write(e.Encode())
}

// Sync fsyncs the journal file.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return j.fd.Sync()
}

// Len returns the number of flush records recorded so far.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.fd.Close()
}
