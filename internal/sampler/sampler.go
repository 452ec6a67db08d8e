// Package sampler estimates the average color of a screen region from a
// bounded number of random pixels.
package sampler

import (
	"math/rand/v2"

	"ambisync/internal/color"
	"ambisync/internal/layout"
)

// Pixels is anything that can be sampled, such as a capture.Frame.
type Pixels interface {
	PixelAt(x, y int) color.RGB
}

// Sample draws n uniform random points with x in [r.XMin, r.XMax) and y in
// [r.YMin, r.YMax) and returns the per-channel mean, truncated. Its cost
// depends on n alone, not on the area of r.
//
// An empty rectangle or n < 1 yields black.
func Sample(p Pixels, r layout.Rect, n int, rng *rand.Rand) color.RGB {
	if n < 1 || r.Empty() {
		return color.RGB{}
	}

	dx, dy := r.Dx(), r.Dy()
	var rSum, gSum, bSum uint64
	for i := 0; i < n; i++ {
		x := r.XMin + rng.IntN(dx)
		y := r.YMin + rng.IntN(dy)
		c := p.PixelAt(x, y)
		rSum += uint64(c.R)
		gSum += uint64(c.G)
		bSum += uint64(c.B)
	}

	count := uint64(n)
	return color.RGB{
		R: uint8(rSum / count),
		G: uint8(gSum / count),
		B: uint8(bSum / count),
	}
}
