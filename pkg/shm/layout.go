// Package shm implements the shared-memory ring-buffer IPC core: a
// fixed-size array of buffers inside one shared memory segment, a
// per-buffer ownership state machine, and byte-level read/write operations
// on whichever buffer the caller currently owns.
//
// Platform-specific segment mapping lives in internal/shm; this package
// only knows about bytes, offsets, and atomics once a Region exists.
package shm

import (
	"sync/atomic"
	"unsafe"
)

// State is a buffer's position in the ownership state machine.
type State uint32

const (
	// Empty buffers are available to any manager for writing.
	Empty State = iota
	// Writing buffers are claimed by exactly one manager that is filling
	// them with fragment bytes.
	Writing
	// Full buffers hold a complete fragment ready to be read, optionally
	// restricted to one destination manager.
	Full
	// Reading buffers are claimed by exactly one manager that is copying
	// fragment bytes out.
	Reading
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Writing:
		return "Writing"
	case Full:
		return "Full"
	case Reading:
		return "Reading"
	default:
		return "Unknown"
	}
}

// Unowned is the sem_id sentinel meaning "no manager currently owns this
// buffer" — available to any manager for Empty/Full buffers.
const Unowned int32 = -1

// ReadyMagic is written by the segment's creator exactly once, strictly
// after every descriptor has been initialized. Every other attacher spins
// on this value before touching any other field.
const ReadyMagic uint32 = 0xCAFE1111

// SegmentHeader sits at offset 0 of the segment. Field order matches the
// wire layout exactly; every attacher in a given deployment must be built
// from the same struct definition, since this is a Go-to-Go IPC core and
// makes no attempt at cross-language struct compatibility.
type SegmentHeader struct {
	NextID      atomic.Uint32 // monotonically increasing manager-ID dispenser
	ReaderPos   atomic.Uint32 // round-robin search hint for readers
	WriterPos   atomic.Uint32 // round-robin search hint for writers
	BufferSize  uint64        // fixed payload capacity of each buffer, in bytes
	BufferCount uint64        // number of buffers
	Rank        int32         // opaque writer-process tag, for diagnostics
	ReadyMagic  atomic.Uint32 // 0xCAFE1111 once the creator has finished setup
}

// BufferDescriptor describes one buffer's ownership state. buffer i's
// descriptor sits at offset sizeof(SegmentHeader) + i*sizeof(BufferDescriptor).
type BufferDescriptor struct {
	WritePos        uint64       // byte offset within the buffer's payload, only touched by the owner
	ReadPos         uint64       // byte offset within the buffer's payload, only touched by the owner
	Sem             atomic.Uint32 // State, loaded/stored atomically for cross-process visibility
	SemID           atomic.Int32 // owning manager ID, or Unowned; the sole claim-then-verify arbitration field
	BufferTouchTime atomic.Uint64 // wall-clock microseconds of the owner's most recent operation
}

var (
	headerSize     = unsafe.Sizeof(SegmentHeader{})
	descriptorSize = unsafe.Sizeof(BufferDescriptor{})
)

// SegmentSize returns the total byte size of a segment with the given
// buffer layout, matching the construction formula from the spec:
// buffer_count*(max_buffer_size+sizeof(BufferDescriptor)) + sizeof(SegmentHeader).
func SegmentSize(bufferCount, maxBufferSize uint64) uint64 {
	return bufferCount*(maxBufferSize+uint64(descriptorSize)) + uint64(headerSize)
}

func headerOf(region []byte) *SegmentHeader {
	return (*SegmentHeader)(unsafe.Pointer(&region[0]))
}

func descriptorOf(region []byte, buffer int) *BufferDescriptor {
	off := headerSize + uintptr(buffer)*descriptorSize
	return (*BufferDescriptor)(unsafe.Pointer(&region[off]))
}

func dataStart(bufferCount uint64) uintptr {
	return headerSize + uintptr(bufferCount)*descriptorSize
}

func bufferStart(region []byte, bufferCount uint64, bufferSize uint64, buffer int) []byte {
	start := dataStart(bufferCount) + uintptr(buffer)*uintptr(bufferSize)
	return region[start : start+uintptr(bufferSize)]
}
