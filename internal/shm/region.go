// Package shm contains platform-specific helpers for mapping a System-V
// shared memory segment into the process's address space. The public
// segment and buffer state machine built on top of this live in pkg/shm;
// this package knows nothing about buffers, descriptors, or fragments.
package shm

// Region is a shared memory segment mapped into this process.
type Region struct {
	// Addr is the mapped byte slice backing the segment. Its length is
	// always Size.
	Addr []byte
	// Size is the segment size in bytes, as requested at Open time.
	Size int
	// Created reports whether this process created the segment (as
	// opposed to attaching to one created by a peer).
	Created bool

	handle regionHandle
}

// OpenOptions describes how to open or create a segment.
type OpenOptions struct {
	// Key is the host-wide identifier for the segment (a System-V IPC
	// key on Unix, a named file mapping on Windows).
	Key int
	// Size is the required segment size in bytes.
	Size int
}

// Detach unmaps the region from this process's address space. It does not
// request OS removal of the segment; see Destroy for that.
func (r *Region) Detach() error {
	return detach(r)
}

// Destroy requests that the OS remove the segment once the last attacher
// detaches. Only the creator should call this.
func (r *Region) Destroy() error {
	return destroy(r)
}
