package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const firstFrameTimeout = 5 * time.Second

// Stream reads packed RGB24 frames of a fixed size from a child process
// and always serves the most recent one. It has no shared-memory path.
type Stream struct {
	noShm

	name          string
	width, height int

	cancel  context.CancelFunc
	cmd     *exec.Cmd
	done    chan struct{}
	ready   chan struct{} // closed when the first frame is available
	cleanup func()

	mu    sync.Mutex
	frame []byte
	err   error
}

// startStream runs cmd and waits for its first frame. cleanup runs after
// the process has exited, on both failure and Close.
func startStream(cancel context.CancelFunc, name string, cmd *exec.Cmd, width, height int, cleanup func()) (*Stream, error) {
	if cleanup == nil {
		cleanup = func() {}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		cleanup()
		return nil, fmt.Errorf("%s stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		cleanup()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	s := &Stream{
		name:    name,
		width:   width,
		height:  height,
		cancel:  cancel,
		cmd:     cmd,
		done:    make(chan struct{}),
		ready:   make(chan struct{}),
		cleanup: cleanup,
	}
	go s.readFrames(stdout)

	select {
	case <-s.ready:
	case <-s.done:
		_ = s.Close()
		return nil, fmt.Errorf("%s exited before the first frame", name)
	case <-time.After(firstFrameTimeout):
		_ = s.Close()
		return nil, fmt.Errorf("%s: timed out waiting for first frame", name)
	}
	return s, nil
}

func (s *Stream) readFrames(r io.Reader) {
	defer close(s.done)
	back := make([]byte, s.width*s.height*3)
	first := true
	for {
		if _, err := io.ReadFull(r, back); err != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("%s stream ended: %w", s.name, err)
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.frame, back = back, s.frame
		s.mu.Unlock()
		if back == nil {
			back = make([]byte, len(s.frame))
		}
		if first {
			close(s.ready)
			first = false
		}
	}
}

func (s *Stream) Name() string { return s.name }

// GetImage copies the latest frame. The process scales the screen to the
// size it was started with, so other sizes are rejected.
func (s *Stream) GetImage(width, height int) (*Image, error) {
	if width != s.width || height != s.height {
		return nil, fmt.Errorf("%s streams %dx%d frames, not %dx%d", s.name, s.width, s.height, width, height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.frame == nil {
		return nil, fmt.Errorf("no frame captured yet")
	}
	data := make([]byte, len(s.frame))
	copy(data, s.frame)
	return &Image{
		Width:  width,
		Height: height,
		Stride: width * 3,
		Format: FormatRGB24,
		Data:   data,
	}, nil
}

func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	err := s.cmd.Wait()
	s.cleanup()
	return ignoreKilled(err)
}

// ignoreKilled drops the error a child reports after being cancelled.
func ignoreKilled(err error) error {
	if exitErr, ok := err.(*exec.ExitError); ok && !exitErr.Exited() {
		return nil
	}
	return err
}

// OpenFFmpeg captures an X11 display with ffmpeg's x11grab, scaled to
// width x height.
func OpenFFmpeg(display string, width, height int) (*Stream, error) {
	if !hasExecutable("ffmpeg") {
		return nil, fmt.Errorf("ffmpeg not found")
	}
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		return nil, fmt.Errorf("DISPLAY not set")
	}

	w, h, err := RootSize(display)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin",
		"-loglevel", "error",
		"-f", "x11grab",
		"-framerate", "30",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-i", display,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	return startStream(cancel, "ffmpeg", cmd, width, height, nil)
}

// hasExecutable reports whether the named program is on PATH.
func hasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
