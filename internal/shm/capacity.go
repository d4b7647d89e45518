package shm

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
)

// CanCreateSegment reports whether a segment of the given size can plausibly
// be created without exhausting the host's shared memory backing store.
//
// On Linux, System-V shared memory (and tmpfs more generally) is backed by
// /dev/shm; a segment larger than the free space there will fail at
// shmget/shmat time with ENOMEM, which is harder to diagnose than a
// pre-flight check. Other platforms don't expose an equivalent fixed-size
// pool in the same way, so the check always passes there.
func CanCreateSegment(sizeBytes uint64) bool {
	if runtime.GOOS != "linux" {
		return true
	}
	usage, err := disk.Usage("/dev/shm")
	if err != nil {
		return true
	}
	return sizeBytes <= usage.Free
}
