package main

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"ambisync/internal/color"
	"ambisync/internal/config"
	"ambisync/internal/layout"
)

// Sink receives one color per LED each cycle, packed as R,G,B bytes in
// perimeter order.
type Sink interface {
	Name() string
	Send(rgb []byte) error
	Close() error
}

// openSinks opens every sink named in output.sinks. On failure the sinks
// opened so far are closed again.
func openSinks(cfg *config.Config, leds int, log *zap.Logger) ([]Sink, error) {
	var sinks []Sink
	for _, name := range cfg.Output.Sinks {
		var (
			s   Sink
			err error
		)
		switch strings.ToLower(name) {
		case "wled":
			s, err = newWLEDSink(cfg.WLED)
		case "hue":
			s, err = newHueSink(cfg.Hue, log)
		case "log":
			s = &logSink{log: log}
		default:
			err = fmt.Errorf("unknown sink %q", name)
		}
		if err != nil {
			closeSinks(sinks, log)
			return nil, fmt.Errorf("opening %s sink: %w", name, err)
		}
		log.Info("sink ready", zap.String("sink", s.Name()), zap.Int("leds", leds))
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func closeSinks(sinks []Sink, log *zap.Logger) {
	for i := len(sinks) - 1; i >= 0; i-- {
		if err := sinks[i].Close(); err != nil {
			log.Warn("closing sink", zap.String("sink", sinks[i].Name()), zap.Error(err))
		}
	}
}

// hexColors renders a packed buffer as one hex string per LED.
func hexColors(rgb []byte) []string {
	out := make([]string, len(rgb)/3)
	for i := range out {
		out[i] = color.At(rgb, i).String()
	}
	return out
}

// logSink writes every frame to the debug log.
type logSink struct {
	log *zap.Logger
}

func (s *logSink) Name() string { return "log" }

func (s *logSink) Send(rgb []byte) error {
	s.log.Debug("colors", zap.Strings("leds", hexColors(rgb)))
	return nil
}

func (s *logSink) Close() error { return nil }

// printSink writes one line per screen edge.
type printSink struct {
	w   io.Writer
	geo layout.Geometry
}

func newPrintSink(w io.Writer, geo layout.Geometry) *printSink {
	return &printSink{w: w, geo: geo}
}

func (s *printSink) Name() string { return "print" }

func (s *printSink) Send(rgb []byte) error {
	leds := hexColors(rgb)
	start := 0
	for _, e := range []struct {
		edge  layout.Edge
		count int
	}{
		{layout.Bottom, s.geo.LedsOnTop},
		{layout.Left, s.geo.LedsOnSide},
		{layout.Top, s.geo.LedsOnTop},
		{layout.Right, s.geo.LedsOnSide},
	} {
		end := start + e.count
		if end > len(leds) {
			return fmt.Errorf("buffer holds %d LEDs, layout has %d", len(leds), s.geo.Total())
		}
		if _, err := fmt.Fprintf(s.w, "%-6s %s\n", e.edge.String()+":", strings.Join(leds[start:end], " ")); err != nil {
			return err
		}
		start = end
	}
	return nil
}

func (s *printSink) Close() error { return nil }
