// Package layout maps LED indices to the screen rectangles they sample.
//
// LEDs are numbered around the perimeter starting at the bottom right corner:
// the bottom edge right to left, the left edge bottom to top, the top edge
// left to right and the right edge top to bottom. The downstream LED driver
// relies on this order.
package layout

import (
	"errors"
	"fmt"
)

// ErrInvalidRegion reports an LED whose sampling rectangle is empty or
// reaches outside the captured region.
var ErrInvalidRegion = errors.New("invalid sampling region")

// Geometry describes the captured region and the LEDs around it.
type Geometry struct {
	Width  int // horizontal pixel count of the captured region
	Height int // vertical pixel count of the captured region

	GapH int // pixels skipped before the first top/bottom LED
	GapV int // pixels skipped before the first left/right LED

	LedsOnSide int
	LedsOnTop  int

	PixelsPerSide int // rectangle extent of a left/right LED
	PixelsPerTop  int // rectangle extent of a top/bottom LED
}

// Total returns the number of LEDs around the perimeter.
func (g Geometry) Total() int {
	return 2*g.LedsOnSide + 2*g.LedsOnTop
}

// Edge is one side of the screen.
type Edge int

const (
	Bottom Edge = iota
	Left
	Top
	Right
)

func (e Edge) String() string {
	switch e {
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Top:
		return "top"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Edge(%d)", int(e))
}

// Rect is the half-open pixel area [XMin,XMax) x [YMin,YMax).
type Rect struct {
	XMin, XMax int
	YMin, YMax int
}

func (r Rect) Dx() int { return r.XMax - r.XMin }
func (r Rect) Dy() int { return r.YMax - r.YMin }

// Empty reports whether r contains no pixels.
func (r Rect) Empty() bool {
	return r.XMax <= r.XMin || r.YMax <= r.YMin
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", r.XMin, r.XMax, r.YMin, r.YMax)
}

// Locate returns the edge LED i sits on and its index along that edge.
func (g Geometry) Locate(i int) (Edge, int) {
	if i < 0 || i >= g.Total() {
		panic(fmt.Sprintf("layout: led index %d out of range [0,%d)", i, g.Total()))
	}
	switch {
	case i < g.LedsOnTop:
		return Bottom, i
	case i < g.LedsOnTop+g.LedsOnSide:
		return Left, i - g.LedsOnTop
	case i < 2*g.LedsOnTop+g.LedsOnSide:
		return Top, i - g.LedsOnTop - g.LedsOnSide
	default:
		return Right, i - 2*g.LedsOnTop - g.LedsOnSide
	}
}

// RectFor returns the rectangle sampled for LED i.
func (g Geometry) RectFor(i int) Rect {
	edge, k := g.Locate(i)

	switch edge {
	case Bottom:
		// k=0 is the rightmost slot.
		slot := g.LedsOnTop - k - 1
		x := g.GapH + slot*g.PixelsPerTop
		return Rect{
			XMin: x,
			XMax: x + g.PixelsPerTop,
			YMin: g.Height - g.PixelsPerTop,
			YMax: g.Height,
		}

	case Left:
		// k=0 is the lowest slot.
		slot := g.LedsOnSide - k - 1
		return Rect{
			XMin: 0,
			XMax: g.PixelsPerSide,
			YMin: g.GapV + slot*g.PixelsPerSide,
			YMax: g.GapV + (slot+1)*g.PixelsPerSide,
		}

	case Top:
		return Rect{
			XMin: g.GapH + k*g.PixelsPerTop,
			XMax: g.GapH + (k+1)*g.PixelsPerTop,
			YMin: 0,
			YMax: g.PixelsPerTop,
		}

	default:
		return Rect{
			XMin: g.Width - g.PixelsPerSide,
			XMax: g.Width,
			YMin: g.GapV + k*g.PixelsPerSide,
			YMax: g.GapV + (k+1)*g.PixelsPerSide,
		}
	}
}

// Rects returns the rectangle of every LED in perimeter order.
func (g Geometry) Rects() []Rect {
	rects := make([]Rect, g.Total())
	for i := range rects {
		rects[i] = g.RectFor(i)
	}
	return rects
}

// Validate checks that every LED samples a non-empty rectangle inside the
// captured region and returns one error per offending LED.
func (g Geometry) Validate() []error {
	var errs []error
	for i := 0; i < g.Total(); i++ {
		r := g.RectFor(i)
		edge, k := g.Locate(i)
		switch {
		case r.Empty():
			errs = append(errs, fmt.Errorf("%w: led %d (%s #%d) rectangle %v is empty", ErrInvalidRegion, i, edge, k, r))
		case r.XMin < 0 || r.YMin < 0 || r.XMax > g.Width || r.YMax > g.Height:
			errs = append(errs, fmt.Errorf("%w: led %d (%s #%d) rectangle %v exceeds %dx%d", ErrInvalidRegion, i, edge, k, r, g.Width, g.Height))
		}
	}
	return errs
}
