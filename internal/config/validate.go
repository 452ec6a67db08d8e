package config

import (
	"fmt"
	"strings"
)

var validBackends = map[string]bool{
	"auto":       true,
	"x11":        true,
	"ffmpeg":     true,
	"portal":     true,
	"screenshot": true,
}

var validSinks = map[string]bool{
	"wled": true,
	"hue":  true,
	"log":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the config and returns every problem found. Any LED whose
// sampling rectangle is empty or leaves the captured region makes the
// configuration invalid; sampling never runs against such a layout.
func (c *Config) Validate() []error {
	var errs []error

	if !validBackends[strings.ToLower(strings.TrimSpace(c.Capture.Backend))] {
		errs = append(errs, fmt.Errorf("capture.backend %q is not valid (use auto, x11, ffmpeg, portal or screenshot)", c.Capture.Backend))
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		errs = append(errs, fmt.Errorf("capture size %dx%d must be positive", c.Capture.Width, c.Capture.Height))
	}

	negative := false
	for _, f := range []struct {
		key string
		val int
	}{
		{"leds.on_side", c.LEDs.OnSide},
		{"leds.on_top", c.LEDs.OnTop},
		{"leds.pixels_per_side", c.LEDs.PixelsPerSide},
		{"leds.pixels_per_top", c.LEDs.PixelsPerTop},
		{"leds.gap_horizontal", c.LEDs.GapHorizontal},
		{"leds.gap_vertical", c.LEDs.GapVertical},
	} {
		if f.val < 0 {
			errs = append(errs, fmt.Errorf("%s %d must not be negative", f.key, f.val))
			negative = true
		}
	}
	if c.TotalLEDs() <= 0 && !negative {
		errs = append(errs, fmt.Errorf("no LEDs configured"))
	}

	if c.Color.PixelsToProcess < 1 {
		errs = append(errs, fmt.Errorf("color.pixels_to_process %d is below minimum 1", c.Color.PixelsToProcess))
	}
	if c.Color.Brightness < 0 {
		errs = append(errs, fmt.Errorf("color.brightness %d must not be negative", c.Color.Brightness))
	}

	if c.Output.Rate <= 0 {
		errs = append(errs, fmt.Errorf("output.rate %g must be positive", c.Output.Rate))
	}
	for _, s := range c.Output.Sinks {
		if !validSinks[strings.ToLower(s)] {
			errs = append(errs, fmt.Errorf("unknown sink %q", s))
		}
	}
	if c.WLED.Timeout < 0 || c.WLED.Timeout > 255 {
		errs = append(errs, fmt.Errorf("wled.timeout %d is outside 0..255", c.WLED.Timeout))
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level %q is not valid (use debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not valid (use console or json)", c.Log.Format))
	}

	if !negative && c.Capture.Width > 0 && c.Capture.Height > 0 {
		errs = append(errs, c.Geometry().Validate()...)
	}

	return errs
}
