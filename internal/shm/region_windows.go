//go:build windows

package shm

import (
	"fmt"
	"strconv"
	"syscall"
	"unsafe"
)

type regionHandle struct {
	h syscall.Handle
}

// Open opens or creates a named file mapping keyed by opts.Key, the
// Windows analogue of a System-V shm key. Grounded on fastcache's
// shm_windows.go, which does the same OpenFileMapping-then-
// CreateFileMapping dance for its cache segment.
func Open(opts OpenOptions) (*Region, error) {
	name, err := syscall.UTF16PtrFromString("shmring-" + strconv.Itoa(opts.Key))
	if err != nil {
		return nil, err
	}

	created := false
	h, err := openFileMapping(syscall.FILE_MAP_READ|syscall.FILE_MAP_WRITE, 0, name)
	if err != nil {
		sizeHi := uint32(opts.Size >> 32)
		sizeLo := uint32(opts.Size) & 0xffffffff
		h, err = syscall.CreateFileMapping(syscall.InvalidHandle, nil, syscall.PAGE_READWRITE, sizeHi, sizeLo, name)
		if err != nil {
			return nil, fmt.Errorf("CreateFileMapping: %w", err)
		}
		created = true
	}

	addr, err := syscall.MapViewOfFile(h, syscall.FILE_MAP_READ|syscall.FILE_MAP_WRITE, 0, 0, uintptr(opts.Size))
	if err != nil {
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), opts.Size)

	return &Region{
		Addr:    buf,
		Size:    opts.Size,
		Created: created,
		handle:  regionHandle{h: h},
	}, nil
}

func detach(r *Region) error {
	if r.Addr == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&r.Addr[0]))
	r.Addr = nil
	if err := syscall.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("UnmapViewOfFile: %w", err)
	}
	return nil
}

func destroy(r *Region) error {
	// Windows has no explicit "mark for removal" analogue to shmctl's
	// IPC_RMID: a named file mapping is destroyed automatically once its
	// last handle is closed, which CloseHandle below does.
	return syscall.CloseHandle(r.handle.h)
}

var (
	kernel32            = syscall.NewLazyDLL("kernel32.dll")
	procOpenFileMapping = kernel32.NewProc("OpenFileMappingW")
)

func openFileMapping(desiredAccess uint32, inheritHandle uint32, name *uint16) (syscall.Handle, error) {
	ret, _, err := procOpenFileMapping.Call(
		uintptr(desiredAccess),
		uintptr(inheritHandle),
		uintptr(unsafe.Pointer(name)),
	)
	if ret == 0 {
		return 0, err
	}
	return syscall.Handle(ret), nil
}
