// Package capturetest provides an in-memory capture backend and shared
// memory allocator for tests.
package capturetest

import (
	"errors"
	"fmt"
	"sync"

	"ambisync/internal/capture"
	"ambisync/internal/color"
)

// Scene returns the color shown at (x, y).
type Scene func(x, y int) color.RGB

// Solid shows c everywhere.
func Solid(c color.RGB) Scene {
	return func(int, int) color.RGB { return c }
}

// Recorder collects backend and memory calls in order.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *Recorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how often call was recorded.
func (r *Recorder) Count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Memory is a SharedMemory backed by ordinary slices.
type Memory struct {
	rec *Recorder

	FailCreate error
	FailMap    error

	mu   sync.Mutex
	next int
	segs map[int][]byte
}

func (m *Memory) Create(size int) (int, error) {
	m.rec.record("create")
	if m.FailCreate != nil {
		return 0, m.FailCreate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.segs[m.next] = make([]byte, size)
	return m.next, nil
}

func (m *Memory) Map(id int) ([]byte, error) {
	m.rec.record("map")
	if m.FailMap != nil {
		return nil, m.FailMap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.segs[id]
	if !ok {
		return nil, fmt.Errorf("no segment %d", id)
	}
	return data, nil
}

func (m *Memory) Unmap([]byte) error {
	m.rec.record("unmap")
	return nil
}

func (m *Memory) Remove(id int) error {
	m.rec.record("remove")
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.segs, id)
	return nil
}

// Live returns the number of segments created and not yet removed.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segs)
}

func (m *Memory) segment(id int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.segs[id]
}

// Backend renders a Scene in capture.FormatBGRX32.
type Backend struct {
	Scene Scene
	Rec   *Recorder
	Mem   *Memory

	FailQuery    error
	FailLayout   error
	FailAttach   error
	FailGetImage error
	// ShmFailures makes the next n GetShmImage calls fail.
	ShmFailures int

	mu       sync.Mutex
	nextSeg  uint32
	attached map[uint32]int
}

// New returns a backend showing scene and the memory it attaches to.
func New(scene Scene) (*Backend, *Memory) {
	rec := &Recorder{}
	mem := &Memory{rec: rec, segs: make(map[int][]byte)}
	return &Backend{
		Scene:    scene,
		Rec:      rec,
		Mem:      mem,
		attached: make(map[uint32]int),
	}, mem
}

var errNoSegment = errors.New("segment not attached")

func (b *Backend) Name() string { return "fake" }

func (b *Backend) QueryShm() error {
	b.Rec.record("query")
	return b.FailQuery
}

func (b *Backend) ImageLayout(width, height int) (capture.Layout, error) {
	b.Rec.record("layout")
	if b.FailLayout != nil {
		return capture.Layout{}, b.FailLayout
	}
	return capture.Layout{
		Width:  width,
		Height: height,
		Stride: width * 4,
		Format: capture.FormatBGRX32,
	}, nil
}

func (b *Backend) AttachShm(shmID int) (uint32, error) {
	b.Rec.record("attach")
	if b.FailAttach != nil {
		return 0, b.FailAttach
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeg++
	b.attached[b.nextSeg] = shmID
	return b.nextSeg, nil
}

func (b *Backend) DetachShm(seg uint32) error {
	b.Rec.record("detach")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.attached[seg]; !ok {
		return errNoSegment
	}
	delete(b.attached, seg)
	return nil
}

func (b *Backend) GetShmImage(seg uint32, l capture.Layout) error {
	b.Rec.record("shmget")
	b.mu.Lock()
	id, ok := b.attached[seg]
	fail := b.ShmFailures > 0
	if fail {
		b.ShmFailures--
	}
	b.mu.Unlock()
	if !ok {
		return errNoSegment
	}
	if fail {
		return errors.New("shm get image failed")
	}
	b.render(b.Mem.segment(id), l.Width, l.Height, l.Stride)
	return nil
}

func (b *Backend) GetImage(width, height int) (*capture.Image, error) {
	b.Rec.record("getimage")
	if b.FailGetImage != nil {
		return nil, b.FailGetImage
	}
	img := &capture.Image{
		Width:  width,
		Height: height,
		Stride: width * 4,
		Format: capture.FormatBGRX32,
		Data:   make([]byte, width*height*4),
	}
	b.render(img.Data, width, height, img.Stride)
	return img, nil
}

func (b *Backend) Close() error {
	b.Rec.record("close")
	return nil
}

func (b *Backend) render(dst []byte, width, height, stride int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := b.Scene(x, y)
			off := y*stride + x*4
			dst[off] = c.B
			dst[off+1] = c.G
			dst[off+2] = c.R
			dst[off+3] = 0
		}
	}
}
