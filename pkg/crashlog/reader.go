// ABOUTME: sequential flush-record reader; the replay helpers Prefix and Apply live in replay.go
// ABOUTME: Adapted from the teacher's pkg/wal/reader.go Reader.Next/readEntryFromCurrent

package crashlog

import (
	"encoding/binary"
	"io"
	"os"
)

// Reader reads flush records from a journal file in order.
type Reader struct {
	fd *os.File
}

// NewReader opens path for sequential flush-record reads.
func NewReader(path string) (*Reader, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{fd: fd}, nil
}

// Next reads the next flush record. It returns io.EOF once the stream is
// exhausted, and ErrTruncated for a record cut off by a simulated crash
// (the last bytes written before the process "died").
func (r *Reader) Next() (*Entry, error) {
	header := make([]byte, EntryHeaderSize)
	n, err := io.ReadFull(r.fd, header)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil || n < EntryHeaderSize {
		return nil, ErrTruncated
	}

	dataLen := binary.LittleEndian.Uint32(header[16:20])
	rest := make([]byte, int(dataLen)+4)
	if _, err := io.ReadFull(r.fd, rest); err != nil {
		return nil, ErrTruncated
	}

	buf := append(header, rest...)
	return DecodeEntry(buf)
}

// Close closes the reader.
func (r *Reader) Close() error { return r.fd.Close() }

// ReadAll reads every well-formed flush record from path, stopping
// silently at the first truncated or corrupted record — the expected
// tail state after a crash mid-flush (spec.md scenario 6).
func ReadAll(path string) ([]*Entry, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []*Entry
	for {
		e, err := r.Next()
		if err == io.EOF || err == ErrTruncated || err == ErrCorrupted {
			break
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
