package color

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// achromaticEpsilon is the channel spread below which a color has no hue.
const achromaticEpsilon = 1e-5

// truncSlack absorbs float error so exact byte values survive the HSV round
// trip; fractional values are still truncated.
const truncSlack = 1e-9

// HSV is a color with H in degrees [0,360) and S, V in [0,1].
type HSV struct {
	H, S, V float64
}

// ToHSV converts an 8-bit color to HSV. Grays get hue 0.
func ToHSV(c RGB) HSV {
	cf := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}

	hi := math.Max(cf.R, math.Max(cf.G, cf.B))
	lo := math.Min(cf.R, math.Min(cf.G, cf.B))
	if hi-lo < achromaticEpsilon {
		return HSV{H: 0, S: 0, V: hi}
	}

	h, s, v := cf.Hsv()
	if h >= 360 {
		h -= 360
	}
	return HSV{H: h, S: s, V: v}
}

// ToRGB converts an HSV color back to 8 bits per channel. H is taken modulo
// 360 and channels are truncated, not rounded.
func ToRGB(c HSV) RGB {
	if c.S <= 0 {
		g := truncate(c.V)
		return RGB{R: g, G: g, B: g}
	}

	h := math.Mod(c.H, 360)
	if h < 0 {
		h += 360
	}

	cf := colorful.Hsv(h, math.Min(c.S, 1), c.V)
	return RGB{
		R: truncate(cf.R),
		G: truncate(cf.G),
		B: truncate(cf.B),
	}
}

func truncate(f float64) uint8 {
	v := f*255 + truncSlack
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
