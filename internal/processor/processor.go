// Package processor turns one captured frame into one color per LED.
package processor

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"ambisync/internal/capture"
	"ambisync/internal/color"
	"ambisync/internal/config"
	"ambisync/internal/layout"
	"ambisync/internal/sampler"
)

// ErrShortBuffer is returned when the output buffer cannot hold 3 bytes
// per LED.
var ErrShortBuffer = errors.New("output buffer too short")

// slowCycle is the cycle duration above which a cycle is logged.
const slowCycle = 50 * time.Millisecond

// Source supplies frames. *capture.Session implements it.
type Source interface {
	Acquire(width, height int) (capture.Frame, error)
}

// Processor runs capture cycles against a fixed configuration.
type Processor struct {
	src Source
	log *zap.Logger

	width, height int
	rects         []layout.Rect
	samples       int
	brightness    int
	saturation    int
}

// New checks cfg and precomputes the sampling rectangle of every LED. An
// invalid configuration is rejected here so no cycle ever samples a
// degenerate rectangle.
func New(src Source, cfg *config.Config, log *zap.Logger) (*Processor, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Processor{
		src:        src,
		log:        log,
		width:      cfg.Capture.Width,
		height:     cfg.Capture.Height,
		rects:      cfg.Geometry().Rects(),
		samples:    cfg.Color.PixelsToProcess,
		brightness: cfg.Color.Brightness,
		saturation: cfg.Color.Saturation,
	}, nil
}

// LEDs returns the number of LEDs each cycle produces.
func (p *Processor) LEDs() int {
	return len(p.rects)
}

// BufferSize returns the number of bytes ProduceColors writes.
func (p *Processor) BufferSize() int {
	return 3 * len(p.rects)
}

// ProduceColors captures a frame and writes R,G,B for every LED into out
// in perimeter order. seed makes the cycle's sampling reproducible.
//
// out is only written once a frame has been acquired, so on error it still
// holds the previous cycle's colors. Errors matching capture.ErrBackendFatal
// mean the capture backend is gone.
func (p *Processor) ProduceColors(out []byte, seed uint64) error {
	if len(out) < p.BufferSize() {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, p.BufferSize(), len(out))
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	start := time.Now()

	frame, err := p.src.Acquire(p.width, p.height)
	if err != nil {
		return fmt.Errorf("acquiring frame: %w", err)
	}
	defer frame.Release()

	for i, r := range p.rects {
		raw := sampler.Sample(frame, r, p.samples, rng)
		color.Adjust(raw, p.brightness, p.saturation).Put(out[i*3:])
	}

	if elapsed := time.Since(start); elapsed > slowCycle {
		p.log.Debug("slow capture cycle",
			zap.Duration("elapsed", elapsed),
			zap.Bool("shared", frame.Shared()),
			zap.Int("leds", len(p.rects)))
	}
	return nil
}
