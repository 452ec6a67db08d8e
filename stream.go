package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/pion/dtls/v2"
	"go.uber.org/zap"

	"ambisync/internal/color"
	"ambisync/internal/config"
)

const (
	hueStreamPort    = 2100
	handshakeTimeout = 5 * time.Second

	hueStreamHeader  = 52
	hueStreamChannel = 7
)

// Streamer sends colors to a Hue entertainment area over DTLS.
type Streamer struct {
	conn       net.Conn
	areaID     string
	channelIDs []uint8
	seq        uint8
}

// NewStreamer performs the DTLS PSK handshake with the bridge at ip.
func NewStreamer(ip net.IP, creds BridgeCredentials, areaID string, channelIDs []uint8) (*Streamer, error) {
	psk, err := hex.DecodeString(creds.Clientkey)
	if err != nil {
		return nil, fmt.Errorf("decoding clientkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	conn, err := dtls.DialWithContext(ctx, "udp", &net.UDPAddr{IP: ip, Port: hueStreamPort}, &dtls.Config{
		PSK: func([]byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint:    []byte(creds.Username),
		CipherSuites:       []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, fmt.Errorf("DTLS handshake: %w", err)
	}

	return &Streamer{conn: conn, areaID: areaID, channelIDs: channelIDs}, nil
}

// Send writes one color per channel, in the order of the area's channels.
func (s *Streamer) Send(colors []color.RGB) error {
	msg := BuildHueStreamMessage(s.areaID, s.channelIDs, colors, s.seq)
	s.seq++
	if _, err := s.conn.Write(msg); err != nil {
		return fmt.Errorf("writing to DTLS: %w", err)
	}
	return nil
}

func (s *Streamer) Close() error {
	return s.conn.Close()
}

// BuildHueStreamMessage encodes a HueStream v2 RGB message. Channel
// channelIDs[i] gets colors[i]; missing colors are sent as black.
func BuildHueStreamMessage(areaID string, channelIDs []uint8, colors []color.RGB, seq uint8) []byte {
	msg := make([]byte, hueStreamHeader+hueStreamChannel*len(channelIDs))

	copy(msg[0:9], "HueStream")
	msg[9] = 0x02  // major version
	msg[10] = 0x00 // minor version
	msg[11] = seq
	// 12-13 reserved, 14 color space (0 = RGB), 15 reserved
	copy(msg[16:52], areaID) // 36 character UUID

	for i, ch := range channelIDs {
		var c color.RGB
		if i < len(colors) {
			c = colors[i]
		}
		off := hueStreamHeader + i*hueStreamChannel
		msg[off] = ch
		put16(msg[off+1:], c.R)
		put16(msg[off+3:], c.G)
		put16(msg[off+5:], c.B)
	}
	return msg
}

// put16 widens an 8-bit channel to 16 bits big-endian.
func put16(dst []byte, v uint8) {
	w := uint16(v) * 257
	dst[0] = byte(w >> 8)
	dst[1] = byte(w)
}

// channelColors splits the LED array into n contiguous shares and returns
// the mean color of each. Channel i covers LEDs [i*N/n, (i+1)*N/n); when
// there are more channels than LEDs a channel takes the LED at its start.
func channelColors(rgb []byte, n int) []color.RGB {
	leds := len(rgb) / 3
	out := make([]color.RGB, n)
	if leds == 0 {
		return out
	}
	for i := range out {
		lo := i * leds / n
		hi := (i + 1) * leds / n
		if hi <= lo {
			hi = lo + 1
		}
		var r, g, b int
		for j := lo; j < hi; j++ {
			c := color.At(rgb, j)
			r += int(c.R)
			g += int(c.G)
			b += int(c.B)
		}
		count := hi - lo
		out[i] = color.RGB{R: uint8(r / count), G: uint8(g / count), B: uint8(b / count)}
	}
	return out
}

// hueSink streams to the configured entertainment area and stops
// entertainment mode again on Close.
type hueSink struct {
	bridge   hueBridge
	area     EntertainmentArea
	streamer *Streamer
	log      *zap.Logger
}

func newHueSink(cfg config.HueConfig, log *zap.Logger) (*hueSink, error) {
	if cfg.Bridge == "" || cfg.Area == "" {
		return nil, fmt.Errorf("hue.bridge and hue.area must be set, run `ambisync hue pair`")
	}
	ip := net.ParseIP(cfg.Bridge)
	if ip == nil {
		return nil, fmt.Errorf("hue.bridge %q is not an IP address", cfg.Bridge)
	}
	creds, found, err := LoadCredentials(cfg.BridgeID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no credentials for bridge %s, run `ambisync hue pair`", cfg.BridgeID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), hueRequestTimeout)
	defer cancel()

	bridge := hueBridge{host: cfg.Bridge, username: creds.Username}
	area, err := bridge.Area(ctx, cfg.Area)
	if err != nil {
		return nil, err
	}
	if err := bridge.SetStreaming(ctx, area.ID, true); err != nil {
		return nil, err
	}

	streamer, err := NewStreamer(ip, creds, area.ID, area.ChannelIDs)
	if err != nil {
		_ = bridge.SetStreaming(ctx, area.ID, false)
		return nil, err
	}

	log.Info("hue streaming started", zap.String("area", area.Name), zap.Int("channels", len(area.ChannelIDs)))
	return &hueSink{bridge: bridge, area: area, streamer: streamer, log: log}, nil
}

func (s *hueSink) Name() string { return "hue" }

func (s *hueSink) Send(rgb []byte) error {
	return s.streamer.Send(channelColors(rgb, len(s.area.ChannelIDs)))
}

func (s *hueSink) Close() error {
	err := s.streamer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), hueRequestTimeout)
	defer cancel()
	if serr := s.bridge.SetStreaming(ctx, s.area.ID, false); serr != nil {
		s.log.Warn("stopping hue streaming", zap.Error(serr))
	}
	return err
}
