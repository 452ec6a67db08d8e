package capture_test

import (
	"errors"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"ambisync/internal/capture"
	"ambisync/internal/capture/capturetest"
	"ambisync/internal/color"
)

var red = color.RGB{R: 255}

func TestSession_FastPath(t *testing.T) {
	b, mem := capturetest.New(capturetest.Solid(red))
	s := capture.NewSession(b, mem, zaptest.NewLogger(t))
	defer s.Close()

	f, err := s.Acquire(8, 4)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !f.Shared() {
		t.Error("expected shared frame")
	}
	if f.Width() != 8 || f.Height() != 4 {
		t.Errorf("expected 8x4, got %dx%d", f.Width(), f.Height())
	}
	if got := f.PixelAt(7, 3); got != red {
		t.Errorf("expected %v, got %v", red, got)
	}
	f.Release()

	if !s.FastPath() {
		t.Error("expected fast path active")
	}
	want := []string{"query", "layout", "create", "map", "attach", "shmget"}
	if got := b.Rec.Calls(); !slices.Equal(got, want) {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestSession_FastPathReusesBuffer(t *testing.T) {
	b, mem := capturetest.New(capturetest.Solid(red))
	s := capture.NewSession(b, mem, nil)
	defer s.Close()

	for i := 0; i < 3; i++ {
		f, err := s.Acquire(4, 4)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		f.Release()
	}
	if n := b.Rec.Count("create"); n != 1 {
		t.Errorf("expected one segment, created %d", n)
	}
	if n := b.Rec.Count("shmget"); n != 3 {
		t.Errorf("expected 3 refreshes, got %d", n)
	}
	if n := b.Rec.Count("getimage"); n != 0 {
		t.Errorf("expected no snapshots, got %d", n)
	}
}

func TestSession_NegotiationFailureUnwinds(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		step  string
		setup func(*capturetest.Backend, *capturetest.Memory)
		calls []string
	}{
		{"query", func(b *capturetest.Backend, _ *capturetest.Memory) { b.FailQuery = boom },
			[]string{"query"}},
		{"image", func(b *capturetest.Backend, _ *capturetest.Memory) { b.FailLayout = boom },
			[]string{"query", "layout"}},
		{"segment", func(_ *capturetest.Backend, m *capturetest.Memory) { m.FailCreate = boom },
			[]string{"query", "layout", "create"}},
		{"map", func(_ *capturetest.Backend, m *capturetest.Memory) { m.FailMap = boom },
			[]string{"query", "layout", "create", "map", "remove"}},
		{"attach", func(b *capturetest.Backend, _ *capturetest.Memory) { b.FailAttach = boom },
			[]string{"query", "layout", "create", "map", "attach", "unmap", "remove"}},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			b, mem := capturetest.New(capturetest.Solid(red))
			tt.setup(b, mem)
			s := capture.NewSession(b, mem, nil)

			err := s.Ensure(4, 2)
			if !errors.Is(err, capture.ErrBackendUnavailable) {
				t.Fatalf("expected ErrBackendUnavailable, got %v", err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("expected cause to be kept, got %v", err)
			}
			var nerr *capture.NegotiationError
			if !errors.As(err, &nerr) || nerr.Step != tt.step {
				t.Errorf("expected failure at %s, got %v", tt.step, err)
			}
			if got := b.Rec.Calls(); !slices.Equal(got, tt.calls) {
				t.Errorf("expected calls %v, got %v", tt.calls, got)
			}
			if mem.Live() != 0 {
				t.Errorf("expected no live segments, got %d", mem.Live())
			}
			if s.FastPath() {
				t.Error("expected fast path off")
			}

			f, err := s.Acquire(4, 2)
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			if f.Shared() {
				t.Error("expected snapshot frame")
			}
			if got := f.PixelAt(0, 0); got != red {
				t.Errorf("expected %v, got %v", red, got)
			}
			f.Release()
			if err := s.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}

func TestSession_NegotiatesOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b, mem := capturetest.New(capturetest.Solid(red))
	b.FailQuery = errors.New("no MIT-SHM")
	s := capture.NewSession(b, mem, zap.New(core))
	defer s.Close()

	for i := 0; i < 5; i++ {
		f, err := s.Acquire(4, 2)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		f.Release()
	}
	if n := b.Rec.Count("query"); n != 1 {
		t.Errorf("expected one negotiation, got %d", n)
	}
	if n := logs.FilterMessage("shared memory capture unavailable, using snapshots").Len(); n != 1 {
		t.Errorf("expected one diagnostic, got %d", n)
	}
}

func TestSession_NilSharedMemory(t *testing.T) {
	b, _ := capturetest.New(capturetest.Solid(red))
	s := capture.NewSession(b, nil, nil)
	defer s.Close()

	err := s.Ensure(4, 2)
	if !errors.Is(err, capture.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
	f, err := s.Acquire(4, 2)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer f.Release()
	if f.Shared() {
		t.Error("expected snapshot frame")
	}
}

func TestSession_TransientFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b, mem := capturetest.New(capturetest.Solid(red))
	b.ShmFailures = 1
	s := capture.NewSession(b, mem, zap.New(core))
	defer s.Close()

	f, err := s.Acquire(4, 2)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if f.Shared() {
		t.Error("expected snapshot after failed refresh")
	}
	if got := f.PixelAt(3, 1); got != red {
		t.Errorf("expected %v, got %v", red, got)
	}
	f.Release()

	if !s.FastPath() {
		t.Error("transient failure must not disable the fast path")
	}
	if s.TransientFailures() != 1 {
		t.Errorf("expected 1 transient failure, got %d", s.TransientFailures())
	}
	entries := logs.FilterMessage("using snapshot for this frame").All()
	if len(entries) != 1 {
		t.Fatalf("expected one transient diagnostic, got %d", len(entries))
	}
	if msg, ok := entries[0].ContextMap()["error"].(string); !ok || msg == "" {
		t.Errorf("expected error field, got %v", entries[0].ContextMap())
	}

	f, err = s.Acquire(4, 2)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !f.Shared() {
		t.Error("expected shared frame once refresh succeeds")
	}
	f.Release()
}

func TestSession_FatalSnapshot(t *testing.T) {
	b, mem := capturetest.New(capturetest.Solid(red))
	b.FailQuery = errors.New("no MIT-SHM")
	b.FailGetImage = errors.New("connection reset")
	s := capture.NewSession(b, mem, nil)
	defer s.Close()

	_, err := s.Acquire(4, 2)
	if !errors.Is(err, capture.ErrBackendFatal) {
		t.Errorf("expected ErrBackendFatal, got %v", err)
	}
}

func TestSession_FatalAfterTransient(t *testing.T) {
	b, mem := capturetest.New(capturetest.Solid(red))
	b.ShmFailures = 1
	b.FailGetImage = errors.New("connection reset")
	s := capture.NewSession(b, mem, nil)
	defer s.Close()

	_, err := s.Acquire(4, 2)
	if !errors.Is(err, capture.ErrBackendFatal) {
		t.Errorf("expected ErrBackendFatal, got %v", err)
	}
}

func TestSession_SizeMismatchUsesSnapshot(t *testing.T) {
	b, mem := capturetest.New(capturetest.Solid(red))
	s := capture.NewSession(b, mem, nil)
	defer s.Close()

	f, err := s.Acquire(8, 4)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	f.Release()

	f, err = s.Acquire(4, 2)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer f.Release()
	if f.Shared() {
		t.Error("expected snapshot for a different size")
	}
	if f.Width() != 4 || f.Height() != 2 {
		t.Errorf("expected 4x2, got %dx%d", f.Width(), f.Height())
	}
	if !s.FastPath() {
		t.Error("expected fast path to stay active")
	}
}

func TestSession_CloseReleasesInReverse(t *testing.T) {
	b, mem := capturetest.New(capturetest.Solid(red))
	s := capture.NewSession(b, mem, nil)

	f, err := s.Acquire(4, 2)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	f.Release()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	calls := b.Rec.Calls()
	want := []string{"detach", "unmap", "remove", "close"}
	if got := calls[len(calls)-len(want):]; !slices.Equal(got, want) {
		t.Errorf("expected release order %v, got %v", want, got)
	}
	if mem.Live() != 0 {
		t.Errorf("expected no live segments, got %d", mem.Live())
	}
	if s.FastPath() {
		t.Error("expected fast path off after Close")
	}

	if _, err := s.Acquire(4, 2); !errors.Is(err, capture.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if n := b.Rec.Count("close"); n != 1 {
		t.Errorf("expected backend closed once, got %d", n)
	}
}

func TestSession_CloseBeforeNegotiation(t *testing.T) {
	b, mem := capturetest.New(capturetest.Solid(red))
	s := capture.NewSession(b, mem, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ensure(4, 2); !errors.Is(err, capture.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if n := b.Rec.Count("query"); n != 0 {
		t.Errorf("expected no negotiation after Close, got %d queries", n)
	}
}
