// Package color converts sampled screen colors between RGB and HSV and
// applies the brightness and saturation adjustments configured for the LEDs.
package color

import "fmt"

// RGB holds an 8-bit color value.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Spread returns the difference between the largest and smallest channel.
func (c RGB) Spread() uint8 {
	hi := max(c.R, c.G, c.B)
	lo := min(c.R, c.G, c.B)
	return hi - lo
}

// Put writes c into the first three bytes of dst.
func (c RGB) Put(dst []byte) {
	dst[0] = c.R
	dst[1] = c.G
	dst[2] = c.B
}

// At reads the color of LED i from a packed R,G,B buffer.
func At(buf []byte, i int) RGB {
	off := i * 3
	return RGB{R: buf[off], G: buf[off+1], B: buf[off+2]}
}
