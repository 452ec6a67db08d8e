// Package capture acquires the current screen contents as a read-only pixel
// grid.
//
// A Session negotiates a shared-memory fast path with its Backend once and
// reuses the shared buffer for every later frame. When negotiation fails the
// session permanently falls back to fresh per-frame snapshots. A failed
// shared-memory refresh on a live session falls back to a snapshot for that
// frame only.
package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means the shared-memory path could not be set up.
	// The session keeps working on snapshots.
	ErrBackendUnavailable = errors.New("shared memory capture unavailable")

	// ErrTransientCapture marks a failed refresh of the shared buffer. The
	// frame is taken as a snapshot instead.
	ErrTransientCapture = errors.New("shared memory refresh failed")

	// ErrBackendFatal means the backend itself is gone, e.g. the display
	// server disconnected. Callers decide whether to reconnect.
	ErrBackendFatal = errors.New("capture backend failed")

	ErrNotSupported = errors.New("not supported by capture backend")
	ErrClosed       = errors.New("capture session closed")
)

// Backend is the display-server side of frame capture.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// QueryShm reports whether the shared-memory path is available.
	QueryShm() error
	// ImageLayout describes a width x height image in the backend's native
	// pixel format.
	ImageLayout(width, height int) (Layout, error)
	// AttachShm registers a shared memory segment with the backend and
	// returns the backend's handle for it.
	AttachShm(shmID int) (uint32, error)
	DetachShm(seg uint32) error
	// GetShmImage refreshes the attached segment in place from the screen.
	GetShmImage(seg uint32, l Layout) error

	// GetImage returns a freshly allocated snapshot of the screen.
	GetImage(width, height int) (*Image, error)

	Close() error
}

// SharedMemory allocates segments that a Backend can fill.
type SharedMemory interface {
	Create(size int) (int, error)
	Map(id int) ([]byte, error)
	Unmap(data []byte) error
	Remove(id int) error
}

// Layout is the memory layout of a captured image.
type Layout struct {
	Width, Height int
	Stride        int // bytes per row
	Format        PixelFormat
}

// Size returns the number of bytes an image with this layout occupies.
func (l Layout) Size() int {
	return l.Stride * l.Height
}

// NegotiationError records the step at which the shared-memory path failed.
// It matches ErrBackendUnavailable with errors.Is.
type NegotiationError struct {
	Step string
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("shared memory negotiation failed at %s: %v", e.Step, e.Err)
}

func (e *NegotiationError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}

// noShm provides the shared-memory half of Backend for backends that only
// produce snapshots.
type noShm struct{}

func (noShm) QueryShm() error { return ErrNotSupported }

func (noShm) ImageLayout(int, int) (Layout, error) { return Layout{}, ErrNotSupported }

func (noShm) AttachShm(int) (uint32, error) { return 0, ErrNotSupported }

func (noShm) DetachShm(uint32) error { return ErrNotSupported }

func (noShm) GetShmImage(uint32, Layout) error { return ErrNotSupported }
