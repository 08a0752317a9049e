// ABOUTME: mmap-file-backed pool simulating byte-addressable persistent memory
// ABOUTME: Adapted from the teacher's pkg/storage/kv.go: mmap + two-phase Pwrite/Fsync, generalized to fixed 512-byte node pages

package pool

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/nainya/fastfair/pkg/flush"
	"github.com/nainya/fastfair/pkg/pmnode"
)

const (
	pmSignature   = "FASTFAIR-PM01\x00\x00\x00" // 16 bytes, mirrors the teacher's DB_SIG
	metaPageSize  = 96
	defaultMmapSz = 64 << 20
)

// PM is a Pool backed by an mmap'd file, the closest portable stand-in for
// a PM object pool (spec.md calls the real allocator an external
// collaborator; this is the volatile variant's PM-flavored sibling used by
// the crash-injection tests).
type PM struct {
	path string
	fd   *os.File

	mmapTotal int
	chunks    [][]byte

	flushed uint64            // pages durably committed
	temp    [][]byte          // pages pending first flush
	updates map[uint64][]byte // pages pending in-place rewrite

	free freeList

	root   uint64
	height uint32

	Flusher *flush.Flusher
}

// OpenPM opens or creates a PM-backed pool at path.
func OpenPM(path string, f *flush.Flusher) (*PM, error) {
	if f == nil {
		f = &flush.Flusher{}
	}
	p := &PM{path: path, updates: make(map[uint64][]byte), Flusher: f}

	fd, err := createFileSync(path)
	if err != nil {
		return nil, err
	}
	p.fd = fd

	stat, err := fd.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	if stat.Size() == 0 {
		p.flushed = 1 // reserve the meta page
	} else {
		mmapSize := defaultMmapSz
		if int(stat.Size()) > mmapSize {
			mmapSize = int(stat.Size())
		}
		chunk, err := unix.Mmap(int(fd.Fd()), 0, mmapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("mmap: %w", err)
		}
		p.mmapTotal = mmapSize
		p.chunks = append(p.chunks, chunk)
		if err := p.readMeta(); err != nil {
			return nil, err
		}
	}

	p.free.get = func(ref uint64) []byte { return p.pageRead(ref) }
	p.free.new = func() (uint64, []byte) {
		buf := make([]byte, pmnode.PageSize)
		return p.pageAppend(buf), buf
	}
	p.free.set = func(ref uint64, buf []byte) { p.pageWrite(ref, buf) }
	if p.free.tailSeq > 0 {
		p.free.maxSeq = p.free.tailSeq
	}

	p.Flusher.Msync = func() error {
		for _, c := range p.chunks {
			if err := unix.Msync(c, unix.MS_SYNC); err != nil {
				return err
			}
		}
		return nil
	}

	return p, nil
}

func (p *PM) Alloc() (uint64, pmnode.Node) {
	buf := make([]byte, pmnode.PageSize)
	copy(buf, pmnode.New())

	if ref := p.free.popHead(); ref != Null {
		p.pageWrite(ref, buf)
		return ref, pmnode.Node(buf)
	}
	return p.pageAppend(buf), pmnode.Node(buf)
}

func (p *PM) Get(ref uint64) pmnode.Node {
	if ref == Null {
		return nil
	}
	return pmnode.Node(p.pageRead(ref))
}

func (p *PM) Free(ref uint64) {
	if ref == Null || ref >= p.flushed {
		return // temp pages can't be reused before they're durable
	}
	p.free.pushTail(ref)
}

func (p *PM) FlushRange(ref uint64, node pmnode.Node, offset, length int) {
	p.pageWrite(ref, node)
	p.commit()
	addr := uintptr(ref)*pmnode.PageSize + uintptr(offset)
	p.Flusher.Flush(addr, node[offset:offset+length])
}

func (p *PM) FlushNode(ref uint64, node pmnode.Node) {
	p.FlushRange(ref, node, 0, len(node))
}

func (p *PM) Root() uint64 { return p.root }

func (p *PM) SetRoot(ref uint64) {
	p.root = ref
	p.writeMetaSync()
}

func (p *PM) Height() uint32 { return p.height }

func (p *PM) SetHeight(h uint32) {
	p.height = h
	p.writeMetaSync()
}

func (p *PM) Close() error {
	for _, c := range p.chunks {
		if err := unix.Munmap(c); err != nil {
			return err
		}
	}
	return p.fd.Close()
}

func (p *PM) pageRead(ref uint64) []byte {
	if buf, ok := p.updates[ref]; ok {
		return buf
	}
	if ref >= p.flushed {
		idx := ref - p.flushed
		if int(idx) < len(p.temp) {
			return p.temp[idx]
		}
	}
	start := uint64(0)
	for _, chunk := range p.chunks {
		end := start + uint64(len(chunk))/pmnode.PageSize
		if ref < end {
			off := pmnode.PageSize * (ref - start)
			return chunk[off : off+pmnode.PageSize]
		}
		start = end
	}
	panic(fmt.Sprintf("pool: bad node ref %d (flushed=%d temp=%d)", ref, p.flushed, len(p.temp)))
}

func (p *PM) pageAppend(buf []byte) uint64 {
	ref := p.flushed + uint64(len(p.temp))
	p.temp = append(p.temp, buf)
	return ref
}

func (p *PM) pageWrite(ref uint64, buf []byte) { p.updates[ref] = buf }

func (p *PM) writeMetaSync() {
	p.commit()
}

// commit performs the write-then-fsync dance the teacher calls
// updateOrRevert/updateFile, simplified because the FAST&FAIR design
// tolerates partial writes by construction: there is no in-memory
// rollback path to drive since a crash mid-commit is recoverable by
// scanning, per spec.md §4.2/§4.4's crash arguments.
func (p *PM) commit() {
	for ref, buf := range p.updates {
		off := int64(ref * pmnode.PageSize)
		_, _ = p.fd.WriteAt(buf, off)
	}
	p.updates = make(map[uint64][]byte)

	if len(p.temp) > 0 {
		size := int(p.flushed+uint64(len(p.temp))) * pmnode.PageSize
		p.extendMmap(size)

		off := int64(p.flushed * pmnode.PageSize)
		for _, buf := range p.temp {
			_, _ = p.fd.WriteAt(buf, off)
			off += pmnode.PageSize
		}
		p.flushed += uint64(len(p.temp))
		p.temp = p.temp[:0]
	}

	_ = p.fd.Sync()
	_, _ = p.fd.WriteAt(p.saveMeta(), 0)
	_ = p.fd.Sync()

	p.free.maxSeq = p.free.tailSeq
}

func (p *PM) extendMmap(size int) {
	if size <= p.mmapTotal {
		return
	}
	alloc := defaultMmapSz
	if p.mmapTotal > alloc {
		alloc = p.mmapTotal
	}
	for p.mmapTotal+alloc < size {
		alloc *= 2
	}
	chunk, err := unix.Mmap(int(p.fd.Fd()), int64(p.mmapTotal), alloc, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return
	}
	p.mmapTotal += alloc
	p.chunks = append(p.chunks, chunk)
}

func (p *PM) saveMeta() []byte {
	data := make([]byte, metaPageSize)
	copy(data[:16], []byte(pmSignature))
	binary.LittleEndian.PutUint64(data[16:], p.root)
	binary.LittleEndian.PutUint32(data[24:], p.height)
	binary.LittleEndian.PutUint64(data[28:], p.flushed)
	copy(data[40:], p.free.serialize())
	return data
}

func (p *PM) readMeta() error {
	data := p.chunks[0][:metaPageSize]
	if string(data[:16]) != pmSignature {
		return fmt.Errorf("pool: bad signature %q", data[:16])
	}
	p.root = binary.LittleEndian.Uint64(data[16:])
	p.height = binary.LittleEndian.Uint32(data[24:])
	p.flushed = binary.LittleEndian.Uint64(data[28:])
	p.free.deserialize(data[40:80])
	return nil
}

func createFileSync(path string) (*os.File, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("open directory: %w", err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		fd.Close()
		return nil, fmt.Errorf("fsync directory: %w", err)
	}
	return fd, nil
}
