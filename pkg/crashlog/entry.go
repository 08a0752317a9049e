// ABOUTME: flush-record encoding for the crash-injection journal
// ABOUTME: Adapted from the teacher's pkg/wal/entry.go Entry.Encode/DecodeEntry, generalized from (LSN,TxnID,Key,Value) transaction records to (Seq,Addr,Data) flush records

// Package crashlog repurposes the teacher's write-ahead-log machinery as a
// flush-stream recorder for crash-injection testing. It is not part of
// the tree's recovery path: FAST&FAIR is logless by design (spec.md §9),
// and a pool reopened after a real crash recovers by scanning node state
// alone. crashlog exists so tests can record every flush a Tree issues,
// truncate the record stream at an arbitrary point to simulate a crash
// mid-operation, and then replay the surviving prefix into a fresh pool
// to check that the tree the pool holds is a value the reference
// algorithm could have legitimately produced (spec.md §8, P5).
package crashlog

import (
	"encoding/binary"
	"hash/crc32"
)

// EntryHeaderSize is the fixed size of a flush record's header:
// Seq(8) + Addr(8) + Len(4) + Reserved(4).
const EntryHeaderSize = 24

// Entry records one call to flush.Flusher.Flush.
type Entry struct {
	Seq  uint64 // monotonically increasing flush sequence number
	Addr uint64 // logical byte address within the pool (ref*PageSize + offset)
	Data []byte // the bytes written, copied at flush time
}

// Encode serializes the entry to bytes with a trailing CRC32 checksum.
// Format: [Header(24)] [Data] [CRC32(4)].
func (e *Entry) Encode() []byte {
	total := EntryHeaderSize + len(e.Data) + 4
	buf := make([]byte, total)

	binary.LittleEndian.PutUint64(buf[0:8], e.Seq)
	binary.LittleEndian.PutUint64(buf[8:16], e.Addr)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(e.Data)))
	// bytes 20-23 reserved

	offset := EntryHeaderSize
	copy(buf[offset:], e.Data)
	offset += len(e.Data)

	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:offset+4], crc)
	return buf
}

// DecodeEntry deserializes a flush record from bytes.
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+4 {
		return nil, ErrTruncated
	}

	dataLen := binary.LittleEndian.Uint32(data[16:20])
	expected := EntryHeaderSize + int(dataLen) + 4
	if len(data) < expected {
		return nil, ErrTruncated
	}

	storedCRC := binary.LittleEndian.Uint32(data[expected-4 : expected])
	computedCRC := crc32.ChecksumIEEE(data[:expected-4])
	if storedCRC != computedCRC {
		return nil, ErrCorrupted
	}

	e := &Entry{
		Seq:  binary.LittleEndian.Uint64(data[0:8]),
		Addr: binary.LittleEndian.Uint64(data[8:16]),
	}
	if dataLen > 0 {
		e.Data = make([]byte, dataLen)
		copy(e.Data, data[EntryHeaderSize:EntryHeaderSize+int(dataLen)])
	}
	return e, nil
}

// Size returns the encoded size of the entry.
func (e *Entry) Size() int { return EntryHeaderSize + len(e.Data) + 4 }
