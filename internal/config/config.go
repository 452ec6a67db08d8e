// Package config loads the ambisync configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"ambisync/internal/layout"
)

const (
	configName = "ambisync"
	envPrefix  = "AMBISYNC"
)

// Config holds all ambisync configuration
type Config struct {
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	LEDs    LEDConfig     `mapstructure:"leds" yaml:"leds"`
	Color   ColorConfig   `mapstructure:"color" yaml:"color"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	WLED    WLEDConfig    `mapstructure:"wled" yaml:"wled"`
	Hue     HueConfig     `mapstructure:"hue" yaml:"hue"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// CaptureConfig selects the capture backend and the captured region.
// A zero Width or Height is replaced by the size of the display.
type CaptureConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Display string `mapstructure:"display" yaml:"display"`
	Width   int    `mapstructure:"width" yaml:"width"`
	Height  int    `mapstructure:"height" yaml:"height"`
}

// LEDConfig describes the LEDs around the screen.
type LEDConfig struct {
	OnSide        int `mapstructure:"on_side" yaml:"on_side"`
	OnTop         int `mapstructure:"on_top" yaml:"on_top"`
	PixelsPerSide int `mapstructure:"pixels_per_side" yaml:"pixels_per_side"`
	PixelsPerTop  int `mapstructure:"pixels_per_top" yaml:"pixels_per_top"`
	GapHorizontal int `mapstructure:"gap_horizontal" yaml:"gap_horizontal"`
	GapVertical   int `mapstructure:"gap_vertical" yaml:"gap_vertical"`
}

// ColorConfig tunes sampling and color post-processing.
type ColorConfig struct {
	// Brightness in percent: 0 is black, 100 unchanged, above 100 boosted.
	Brightness int `mapstructure:"brightness" yaml:"brightness"`
	// Saturation in percent added to each color's own saturation.
	Saturation      int `mapstructure:"saturation" yaml:"saturation"`
	PixelsToProcess int `mapstructure:"pixels_to_process" yaml:"pixels_to_process"`
}

// OutputConfig controls the refresh loop.
type OutputConfig struct {
	Rate  float64  `mapstructure:"rate" yaml:"rate"` // cycles per second
	Sinks []string `mapstructure:"sinks" yaml:"sinks"`
}

type WLEDConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
	Timeout int    `mapstructure:"timeout" yaml:"timeout"` // seconds before WLED resumes its own effect
}

// HueConfig names the bridge and entertainment area `ambisync hue pair`
// selected. Credentials are stored separately, keyed by BridgeID.
type HueConfig struct {
	Bridge   string `mapstructure:"bridge" yaml:"bridge"` // IP address
	BridgeID string `mapstructure:"bridge_id" yaml:"bridge_id"`
	Area     string `mapstructure:"area" yaml:"area"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns configuration with sensible defaults
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{Backend: "auto"},
		LEDs: LEDConfig{
			OnSide:        18,
			OnTop:         32,
			PixelsPerSide: 60,
			PixelsPerTop:  60,
		},
		Color: ColorConfig{
			Brightness:      100,
			Saturation:      0,
			PixelsToProcess: 150,
		},
		Output: OutputConfig{
			Rate:  30,
			Sinks: []string{"wled"},
		},
		WLED: WLEDConfig{Timeout: 2},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Geometry returns the LED layout for the captured region.
func (c *Config) Geometry() layout.Geometry {
	return layout.Geometry{
		Width:         c.Capture.Width,
		Height:        c.Capture.Height,
		GapH:          c.LEDs.GapHorizontal,
		GapV:          c.LEDs.GapVertical,
		LedsOnSide:    c.LEDs.OnSide,
		LedsOnTop:     c.LEDs.OnTop,
		PixelsPerSide: c.LEDs.PixelsPerSide,
		PixelsPerTop:  c.LEDs.PixelsPerTop,
	}
}

// TotalLEDs returns the number of LEDs around the perimeter.
func (c *Config) TotalLEDs() int {
	return c.Geometry().Total()
}

// Load reads configuration from path (or the default locations when path is
// empty) and from AMBISYNC_* environment variables.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("capture.backend", d.Capture.Backend)
	v.SetDefault("capture.display", d.Capture.Display)
	v.SetDefault("capture.width", d.Capture.Width)
	v.SetDefault("capture.height", d.Capture.Height)
	v.SetDefault("leds.on_side", d.LEDs.OnSide)
	v.SetDefault("leds.on_top", d.LEDs.OnTop)
	v.SetDefault("leds.pixels_per_side", d.LEDs.PixelsPerSide)
	v.SetDefault("leds.pixels_per_top", d.LEDs.PixelsPerTop)
	v.SetDefault("leds.gap_horizontal", d.LEDs.GapHorizontal)
	v.SetDefault("leds.gap_vertical", d.LEDs.GapVertical)
	v.SetDefault("color.brightness", d.Color.Brightness)
	v.SetDefault("color.saturation", d.Color.Saturation)
	v.SetDefault("color.pixels_to_process", d.Color.PixelsToProcess)
	v.SetDefault("output.rate", d.Output.Rate)
	v.SetDefault("output.sinks", d.Output.Sinks)
	v.SetDefault("wled.address", d.WLED.Address)
	v.SetDefault("wled.timeout", d.WLED.Timeout)
	v.SetDefault("hue.bridge", d.Hue.Bridge)
	v.SetDefault("hue.bridge_id", d.Hue.BridgeID)
	v.SetDefault("hue.area", d.Hue.Area)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	return v
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes c to path, creating the parent directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configName), nil
}

// DefaultPath returns the config file written by `ambisync config init`.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+".yaml"), nil
}
