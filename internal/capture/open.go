package capture

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Backends lists the names Open accepts.
var Backends = []string{"auto", "x11", "ffmpeg", "portal", "screenshot"}

// Open starts the named backend and wraps it in a Session. display is the
// X display for x11 and ffmpeg; width and height fix the frame size of
// the streaming backends.
//
// "auto" tries x11 when DISPLAY is set and the portal when WAYLAND_DISPLAY
// is set, and falls back to screenshot.
func Open(name, display string, width, height int, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	backend, err := openBackend(name, display, width, height, log)
	if err != nil {
		return nil, err
	}

	var shm SharedMemory
	if _, ok := backend.(*X11); ok {
		shm = NewSharedMemory()
	}
	return NewSession(backend, shm, log), nil
}

// normalizeBackend folds a configured backend name to the form Backends lists.
func normalizeBackend(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ScreenSize returns the size of the surface the named backend captures:
// the root window of display for x11 and ffmpeg, display 0 of the
// screenshot package otherwise. "auto" follows the same preference as Open.
func ScreenSize(name, display string) (int, int, error) {
	switch normalizeBackend(name) {
	case "x11", "ffmpeg":
		return RootSize(display)
	case "auto", "":
		if display != "" || os.Getenv("DISPLAY") != "" {
			if w, h, err := RootSize(display); err == nil {
				return w, h, nil
			}
		}
	}
	return DisplaySize()
}

func openBackend(name, display string, width, height int, log *zap.Logger) (Backend, error) {
	switch normalizeBackend(name) {
	case "x11":
		return backendOf(OpenX11(display))
	case "ffmpeg":
		return backendOf(OpenFFmpeg(display, width, height))
	case "portal":
		return backendOf(OpenPortal(width, height))
	case "screenshot":
		return backendOf(OpenScreenshot(0))
	case "auto", "":
	default:
		return nil, fmt.Errorf("unknown capture backend %q", name)
	}

	var errs []error
	if display != "" || os.Getenv("DISPLAY") != "" {
		b, err := OpenX11(display)
		if err == nil {
			return b, nil
		}
		log.Debug("x11 backend unavailable", zap.Error(err))
		errs = append(errs, fmt.Errorf("x11: %w", err))
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		b, err := OpenPortal(width, height)
		if err == nil {
			return b, nil
		}
		log.Debug("portal backend unavailable", zap.Error(err))
		errs = append(errs, fmt.Errorf("portal: %w", err))
	}
	b, err := OpenScreenshot(0)
	if err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
		return nil, fmt.Errorf("no capture backend available: %w", errors.Join(errs...))
	}
	return b, nil
}

// backendOf keeps a failed constructor from yielding a non-nil Backend
// holding a nil pointer.
func backendOf[B Backend](b B, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
