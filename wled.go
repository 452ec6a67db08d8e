package main

import (
	"fmt"
	"net"
	"strconv"

	"ambisync/internal/config"
)

// WLED realtime UDP protocol.
const (
	wledPort = 21324

	wledDRGB  = 2 // all LEDs from index 0, at most wledDRGBMax
	wledDNRGB = 4 // 16-bit start index, at most wledDNRGBMax per packet

	wledDRGBMax  = 490
	wledDNRGBMax = 489
)

type wledSink struct {
	conn    net.Conn
	timeout uint8
}

func newWLEDSink(cfg config.WLEDConfig) (*wledSink, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("wled.address is not set")
	}
	addr := cfg.Address
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(wledPort))
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &wledSink{conn: conn, timeout: uint8(cfg.Timeout)}, nil
}

func (s *wledSink) Name() string { return "wled" }

func (s *wledSink) Send(rgb []byte) error {
	for _, pkt := range wledPackets(rgb, s.timeout) {
		if _, err := s.conn.Write(pkt); err != nil {
			return fmt.Errorf("writing to WLED: %w", err)
		}
	}
	return nil
}

func (s *wledSink) Close() error {
	return s.conn.Close()
}

// wledPackets encodes a frame as one DRGB packet, or as DNRGB packets when
// there are too many LEDs for DRGB. timeout is the number of seconds WLED
// waits after the last packet before resuming its own effect.
func wledPackets(rgb []byte, timeout uint8) [][]byte {
	leds := len(rgb) / 3
	if leds <= wledDRGBMax {
		pkt := make([]byte, 2+leds*3)
		pkt[0] = wledDRGB
		pkt[1] = timeout
		copy(pkt[2:], rgb[:leds*3])
		return [][]byte{pkt}
	}

	var pkts [][]byte
	for start := 0; start < leds; start += wledDNRGBMax {
		n := min(wledDNRGBMax, leds-start)
		pkt := make([]byte, 4+n*3)
		pkt[0] = wledDNRGB
		pkt[1] = timeout
		pkt[2] = byte(start >> 8)
		pkt[3] = byte(start)
		copy(pkt[4:], rgb[start*3:(start+n)*3])
		pkts = append(pkts, pkt)
	}
	return pkts
}
