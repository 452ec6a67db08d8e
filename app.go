package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ambisync/internal/capture"
	"ambisync/internal/config"
	"ambisync/internal/processor"
)

// app is what the capturing commands share: configuration, logger, the
// capture session and the processor reading from it.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	session *capture.Session
	proc    *processor.Processor
}

// loadConfig reads the file named by --config (or the default locations)
// and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// screenSize is replaced in tests.
var screenSize = capture.ScreenSize

// resolveSize fills in a zero capture size from the surface the configured
// backend captures.
func resolveSize(cfg *config.Config) error {
	if cfg.Capture.Width > 0 && cfg.Capture.Height > 0 {
		return nil
	}
	w, h, err := screenSize(cfg.Capture.Backend, cfg.Capture.Display)
	if err != nil {
		return fmt.Errorf("detecting display size: %w", err)
	}
	if cfg.Capture.Width <= 0 {
		cfg.Capture.Width = w
	}
	if cfg.Capture.Height <= 0 {
		cfg.Capture.Height = h
	}
	return nil
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	if err := resolveSize(cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n%w", errors.Join(errs...))
	}

	session, err := capture.Open(cfg.Capture.Backend, cfg.Capture.Display, cfg.Capture.Width, cfg.Capture.Height, log)
	if err != nil {
		return nil, err
	}
	proc, err := processor.New(session, cfg, log)
	if err != nil {
		session.Close()
		return nil, err
	}

	log.Info("capture ready",
		zap.String("backend", session.Backend()),
		zap.Int("width", cfg.Capture.Width),
		zap.Int("height", cfg.Capture.Height),
		zap.Int("leds", proc.LEDs()))

	return &app{cfg: cfg, log: log, session: session, proc: proc}, nil
}

func (a *app) Close() {
	if err := a.session.Close(); err != nil {
		a.log.Warn("closing capture session", zap.Error(err))
	}
	_ = a.log.Sync()
}
