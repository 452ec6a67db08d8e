package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Session owns a capture backend and the shared-memory buffer negotiated
// with it. Create one per process at startup and pass it to whatever
// produces frames.
type Session struct {
	backend Backend
	shm     SharedMemory
	log     *zap.Logger

	once   sync.Once
	shared atomic.Pointer[sharedImage] // nil when the fast path is off
	negErr error

	// mu is held from a shared-buffer refresh until the frame is released,
	// so a partially refreshed buffer is never sampled.
	mu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	transient atomic.Uint64
}

type sharedImage struct {
	id   int
	data []byte
	seg  uint32
	img  *Image
	lay  Layout
}

// NewSession wraps backend. shm may be nil on platforms without System V
// shared memory, in which case the session always uses snapshots.
func NewSession(backend Backend, shm SharedMemory, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		backend: backend,
		shm:     shm,
		log:     log.With(zap.String("backend", backend.Name())),
	}
}

// Backend returns the name of the session's backend.
func (s *Session) Backend() string {
	return s.backend.Name()
}

// Ensure negotiates the shared-memory path the first time it is called and
// returns the outcome. Later calls return the cached outcome whatever size
// they ask for; negotiation is never retried.
func (s *Session) Ensure(width, height int) error {
	s.once.Do(func() {
		sh, err := s.negotiate(width, height)
		if err != nil {
			s.negErr = err
			s.log.Warn("shared memory capture unavailable, using snapshots", zap.Error(err))
			return
		}
		s.shared.Store(sh)
		s.log.Info("shared memory capture ready",
			zap.Int("width", width),
			zap.Int("height", height),
			zap.Int("bytes", sh.lay.Size()))
	})
	return s.negErr
}

// FastPath reports whether frames come from the shared buffer. It is false
// until the first Ensure or Acquire.
func (s *Session) FastPath() bool {
	return s.shared.Load() != nil
}

// TransientFailures returns how many shared-memory refreshes have failed
// and been replaced by snapshots.
func (s *Session) TransientFailures() uint64 {
	return s.transient.Load()
}

func (s *Session) negotiate(width, height int) (sh *sharedImage, err error) {
	var undo undoStack
	defer func() {
		if err == nil {
			return
		}
		if uerr := undo.unwind(); uerr != nil {
			s.log.Warn("releasing partial shared memory setup", zap.Error(uerr))
		}
	}()

	if s.closed.Load() {
		return nil, &NegotiationError{Step: "query", Err: ErrClosed}
	}
	if err = s.backend.QueryShm(); err != nil {
		return nil, &NegotiationError{Step: "query", Err: err}
	}

	lay, err := s.backend.ImageLayout(width, height)
	if err != nil {
		return nil, &NegotiationError{Step: "image", Err: err}
	}
	if s.shm == nil {
		return nil, &NegotiationError{Step: "segment", Err: ErrNotSupported}
	}

	id, err := s.shm.Create(lay.Size())
	if err != nil {
		return nil, &NegotiationError{Step: "segment", Err: err}
	}
	undo.push(func() error { return s.shm.Remove(id) })

	data, err := s.shm.Map(id)
	if err != nil {
		return nil, &NegotiationError{Step: "map", Err: err}
	}
	undo.push(func() error { return s.shm.Unmap(data) })

	seg, err := s.backend.AttachShm(id)
	if err != nil {
		return nil, &NegotiationError{Step: "attach", Err: err}
	}

	return &sharedImage{
		id:   id,
		data: data,
		seg:  seg,
		lay:  lay,
		img: &Image{
			Width:  lay.Width,
			Height: lay.Height,
			Stride: lay.Stride,
			Format: lay.Format,
			Data:   data,
		},
	}, nil
}

// Acquire returns the current screen contents. With the fast path active
// the shared buffer is refreshed in place; if that refresh fails, or the
// requested size differs from the negotiated one, a snapshot is taken for
// this frame only. A failing snapshot is fatal and matches ErrBackendFatal.
func (s *Session) Acquire(width, height int) (Frame, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	_ = s.Ensure(width, height)

	if sh := s.shared.Load(); sh != nil {
		if sh.lay.Width == width && sh.lay.Height == height {
			s.mu.Lock()
			if s.closed.Load() {
				s.mu.Unlock()
				return nil, ErrClosed
			}
			err := s.backend.GetShmImage(sh.seg, sh.lay)
			if err == nil {
				return &sharedFrame{img: sh.img, unlock: s.mu.Unlock}, nil
			}
			s.mu.Unlock()
			s.transient.Add(1)
			s.log.Warn("using snapshot for this frame", zap.Error(fmt.Errorf("%w: %w", ErrTransientCapture, err)))
		} else {
			s.log.Debug("frame size differs from shared buffer, using snapshot",
				zap.Int("width", width), zap.Int("height", height))
		}
	}

	img, err := s.backend.GetImage(width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %s snapshot: %w", ErrBackendFatal, s.backend.Name(), err)
	}
	return &snapshotFrame{img: img}, nil
}

// Close releases the shared buffer in reverse order of acquisition and
// closes the backend. It waits for an outstanding shared frame to be
// released.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// Run negotiation's once so it cannot start after Close.
		s.once.Do(func() { s.negErr = &NegotiationError{Step: "query", Err: ErrClosed} })

		s.mu.Lock()
		defer s.mu.Unlock()

		var errs []error
		if sh := s.shared.Swap(nil); sh != nil {
			if err := s.backend.DetachShm(sh.seg); err != nil {
				errs = append(errs, fmt.Errorf("detaching segment: %w", err))
			}
			if err := s.shm.Unmap(sh.data); err != nil {
				errs = append(errs, fmt.Errorf("unmapping segment: %w", err))
			}
			if err := s.shm.Remove(sh.id); err != nil {
				errs = append(errs, fmt.Errorf("removing segment: %w", err))
			}
			sh.img.Data = nil
		}
		if err := s.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", s.backend.Name(), err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// undoStack releases acquired resources in reverse order.
type undoStack []func() error

func (u *undoStack) push(fn func() error) {
	*u = append(*u, fn)
}

func (u *undoStack) unwind() error {
	var errs []error
	for i := len(*u) - 1; i >= 0; i-- {
		if err := (*u)[i](); err != nil {
			errs = append(errs, err)
		}
	}
	*u = nil
	return errors.Join(errs...)
}
