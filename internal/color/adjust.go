package color

// Adjust scales c by brightness percent (100 leaves it unchanged), then adds
// saturation percent to the color's own saturation. Brightness is applied to
// the raw channels before the HSV round trip.
func Adjust(c RGB, brightness, saturation int) RGB {
	scaled := RGB{
		R: scale(c.R, brightness),
		G: scale(c.G, brightness),
		B: scale(c.B, brightness),
	}

	hsv := ToHSV(scaled)
	hsv.S = clampUnit(hsv.S * float64(saturation+100) / 100)
	return ToRGB(hsv)
}

func scale(v uint8, pct int) uint8 {
	x := int(v) * pct / 100
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
