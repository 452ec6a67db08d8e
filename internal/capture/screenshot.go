package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Screenshot captures a display through kbinani/screenshot. It works on
// every platform that package supports but has no shared-memory path.
type Screenshot struct {
	noShm
	display int
}

// OpenScreenshot returns a backend for the given display index.
func OpenScreenshot(display int) (*Screenshot, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range, %d active", display, n)
	}
	return &Screenshot{display: display}, nil
}

func (s *Screenshot) Name() string { return "screenshot" }

// GetImage captures the top-left width x height pixels of the display.
func (s *Screenshot) GetImage(width, height int) (*Image, error) {
	bounds := screenshot.GetDisplayBounds(s.display)
	if width > bounds.Dx() || height > bounds.Dy() {
		return nil, fmt.Errorf("%dx%d exceeds display %d (%dx%d)", width, height, s.display, bounds.Dx(), bounds.Dy())
	}
	bounds.Max = bounds.Min.Add(image.Pt(width, height))

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capturing screen: %w", err)
	}
	return &Image{
		Width:  width,
		Height: height,
		Stride: img.Stride,
		Format: FormatRGBA32,
		Data:   img.Pix,
	}, nil
}

func (s *Screenshot) Close() error { return nil }

// DisplaySize returns the size of display 0.
func DisplaySize() (int, int, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return 0, 0, fmt.Errorf("no active displays")
	}
	b := screenshot.GetDisplayBounds(0)
	return b.Dx(), b.Dy(), nil
}
