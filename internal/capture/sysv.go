//go:build linux || freebsd || netbsd || openbsd

package capture

import (
	sysvshm "github.com/gen2brain/shm"
)

// SysV allocates System V shared memory segments.
type SysV struct{}

// NewSharedMemory returns the platform's shared memory allocator, or nil
// where there is none.
func NewSharedMemory() SharedMemory {
	return SysV{}
}

func (SysV) Create(size int) (int, error) {
	return sysvshm.Get(sysvshm.IPC_PRIVATE, size, sysvshm.IPC_CREAT|0600)
}

func (SysV) Map(id int) ([]byte, error) {
	return sysvshm.At(id, 0, 0)
}

func (SysV) Unmap(data []byte) error {
	return sysvshm.Dt(data)
}

func (SysV) Remove(id int) error {
	return sysvshm.Rm(id)
}
