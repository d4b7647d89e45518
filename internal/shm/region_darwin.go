//go:build darwin

package shm

import (
	"fmt"
	"reflect"
	"syscall"
	"unsafe"
)

// Darwin's golang.org/x/sys/unix does not expose the SysvShm* convenience
// wrappers that Linux gets, so this talks to the System-V shm syscalls
// directly by number, the same way leslie-fei/fastcache's shm_darwin.go
// does for its memory-mapped cache segments.
const (
	sysShmget = 265
	sysShmat  = 262
	sysShmdt  = 264
	sysShmctl = 263
)

const (
	ipcCreat = 0o1000
	ipcExcl  = 0o2000
	ipcRmid  = 0
)

type regionHandle struct {
	id uintptr
}

// Open attaches to an existing System-V shared memory segment identified by
// opts.Key, or creates it if no attacher has created it yet.
func Open(opts OpenOptions) (*Region, error) {
	id, _, errno := syscall.Syscall(sysShmget, uintptr(opts.Key), uintptr(opts.Size), ipcCreat|ipcExcl|0666)
	created := true
	if errno != 0 {
		created = false
		id, _, errno = syscall.Syscall(sysShmget, uintptr(opts.Key), uintptr(opts.Size), 0666)
		if errno != 0 {
			return nil, fmt.Errorf("shmget: %w", errno)
		}
	}

	addr, _, errno := syscall.Syscall(sysShmat, id, 0, 0)
	if errno != 0 {
		return nil, fmt.Errorf("shmat: %w", errno)
	}

	var sh reflect.SliceHeader
	sh.Data = addr
	sh.Len = opts.Size
	sh.Cap = opts.Size
	buf := *(*[]byte)(unsafe.Pointer(&sh))

	return &Region{
		Addr:    buf,
		Size:    opts.Size,
		Created: created,
		handle:  regionHandle{id: id},
	}, nil
}

func detach(r *Region) error {
	if r.Addr == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&r.Addr[0]))
	_, _, errno := syscall.Syscall(sysShmdt, addr, 0, 0)
	r.Addr = nil
	if errno != 0 {
		return fmt.Errorf("shmdt: %w", errno)
	}
	return nil
}

func destroy(r *Region) error {
	_, _, errno := syscall.Syscall(sysShmctl, r.handle.id, ipcRmid, 0)
	if errno != 0 {
		return fmt.Errorf("shmctl(IPC_RMID): %w", errno)
	}
	return nil
}
