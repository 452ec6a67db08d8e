//go:build !(linux || freebsd || netbsd || openbsd)

package capture

// NewSharedMemory returns nil: this platform has no System V shared memory.
func NewSharedMemory() SharedMemory {
	return nil
}
