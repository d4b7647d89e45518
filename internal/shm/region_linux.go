//go:build linux

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type regionHandle struct {
	id int
}

// Open attaches to an existing System-V shared memory segment identified by
// opts.Key, or creates it if no attacher has created it yet.
//
// The create path uses IPC_CREAT|IPC_EXCL so that two processes racing to be
// the first attacher get a definitive winner instead of both believing they
// created the segment (the spec's §9 "creator detection" note).
func Open(opts OpenOptions) (*Region, error) {
	id, err := unix.SysvShmGet(opts.Key, opts.Size, unix.IPC_CREAT|unix.IPC_EXCL|0666)
	created := true
	if err != nil {
		created = false
		id, err = unix.SysvShmGet(opts.Key, opts.Size, 0666)
		if err != nil {
			return nil, fmt.Errorf("shmget: %w", err)
		}
	}

	addr, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat: %w", err)
	}

	return &Region{
		Addr:    addr,
		Size:    opts.Size,
		Created: created,
		handle:  regionHandle{id: id},
	}, nil
}

func detach(r *Region) error {
	if r.Addr == nil {
		return nil
	}
	if err := unix.SysvShmDetach(r.Addr); err != nil {
		return fmt.Errorf("shmdt: %w", err)
	}
	r.Addr = nil
	return nil
}

func destroy(r *Region) error {
	_, err := unix.SysvShmCtl(r.handle.id, unix.IPC_RMID, nil)
	if err != nil {
		return fmt.Errorf("shmctl(IPC_RMID): %w", err)
	}
	return nil
}
