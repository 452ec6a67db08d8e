package capture

import (
	"sync"

	"ambisync/internal/color"
)

// Frame is an acquired, read-only view of the screen. Release must be called
// once the caller is done sampling it.
type Frame interface {
	Width() int
	Height() int
	// PixelAt returns the color at (x, y) with x in [0,Width) and y in
	// [0,Height). Other coordinates are a programming error.
	PixelAt(x, y int) color.RGB
	// Shared reports whether the frame is backed by the session's reused
	// shared-memory buffer.
	Shared() bool
	Release()
}

// sharedFrame borrows the session's shared buffer until Release.
type sharedFrame struct {
	img     *Image
	release sync.Once
	unlock  func()
}

func (f *sharedFrame) Width() int                 { return f.img.Width }
func (f *sharedFrame) Height() int                { return f.img.Height }
func (f *sharedFrame) PixelAt(x, y int) color.RGB { return f.img.PixelAt(x, y) }
func (f *sharedFrame) Shared() bool               { return true }

// Release hands the buffer back to the session. The buffer itself lives
// until the session is closed.
func (f *sharedFrame) Release() {
	f.release.Do(f.unlock)
}

// snapshotFrame owns a buffer allocated for a single frame.
type snapshotFrame struct {
	img *Image
}

func (f *snapshotFrame) Width() int                 { return f.img.Width }
func (f *snapshotFrame) Height() int                { return f.img.Height }
func (f *snapshotFrame) PixelAt(x, y int) color.RGB { return f.img.PixelAt(x, y) }
func (f *snapshotFrame) Shared() bool               { return false }

// Release drops the snapshot buffer.
func (f *snapshotFrame) Release() {
	f.img.Data = nil
}
