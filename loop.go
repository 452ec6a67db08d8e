package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ambisync/internal/capture"
)

// producer is the part of *processor.Processor the loop needs.
type producer interface {
	BufferSize() int
	ProduceColors(out []byte, seed uint64) error
}

// runLoop produces a frame every 1/rate seconds and hands it to every
// sink until ctx is cancelled. A fatal capture error ends the loop; other
// cycle failures and sink errors are logged and the loop carries on.
func runLoop(ctx context.Context, p producer, sinks []Sink, rate float64, log *zap.Logger) error {
	if rate <= 0 {
		return fmt.Errorf("rate %g must be positive", rate)
	}
	period := time.Duration(float64(time.Second) / rate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]byte, p.BufferSize())
	failing := make([]bool, len(sinks))
	var cycles, skipped uint64

	log.Info("streaming", zap.Duration("period", period), zap.Int("sinks", len(sinks)))
	defer func() {
		log.Info("stopped", zap.Uint64("cycles", cycles), zap.Uint64("failed", skipped))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
		}

		err := p.ProduceColors(buf, uint64(time.Now().UnixNano()))
		if errors.Is(err, capture.ErrBackendFatal) {
			return err
		}
		if err != nil {
			skipped++
			log.Warn("capture cycle failed", zap.Error(err))
			continue
		}
		cycles++

		for i, s := range sinks {
			err := s.Send(buf)
			switch {
			case err != nil && !failing[i]:
				log.Warn("sink failing", zap.String("sink", s.Name()), zap.Error(err))
			case err == nil && failing[i]:
				log.Info("sink recovered", zap.String("sink", s.Name()))
			}
			failing[i] = err != nil
		}
	}
}
