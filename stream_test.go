package main

import (
	"testing"

	"ambisync/internal/color"
)

func TestBuildHueStreamMessage_Header(t *testing.T) {
	areaID := "abcdefgh-1234-5678-9abc-def012345678"
	channels := []uint8{0, 1}
	colors := []color.RGB{{R: 255, G: 128}, {B: 1}}

	msg := BuildHueStreamMessage(areaID, channels, colors, 42)

	// 52 header + 7*2 channels
	if len(msg) != 66 {
		t.Fatalf("expected length 66, got %d", len(msg))
	}
	if string(msg[0:9]) != "HueStream" {
		t.Errorf("expected magic 'HueStream', got %q", string(msg[0:9]))
	}
	if msg[9] != 0x02 || msg[10] != 0x00 {
		t.Errorf("expected version 2.0, got %d.%d", msg[9], msg[10])
	}
	if msg[11] != 42 {
		t.Errorf("expected sequence 42, got %d", msg[11])
	}
	if msg[14] != 0x00 {
		t.Errorf("expected RGB color space, got 0x%02x", msg[14])
	}
	if string(msg[16:52]) != areaID {
		t.Errorf("expected area ID %q, got %q", areaID, string(msg[16:52]))
	}
}

func TestBuildHueStreamMessage_PerChannelColors(t *testing.T) {
	areaID := "abcdefgh-1234-5678-9abc-def012345678"
	channels := []uint8{0, 3}
	colors := []color.RGB{{R: 255, B: 128}, {G: 1}}

	msg := BuildHueStreamMessage(areaID, channels, colors, 0)

	if msg[52] != 0 {
		t.Errorf("expected channel ID 0, got %d", msg[52])
	}
	// R=255 -> 0xFFFF, G=0, B=128 -> 0x8080
	if r16 := uint16(msg[53])<<8 | uint16(msg[54]); r16 != 65535 {
		t.Errorf("expected R16=65535, got %d", r16)
	}
	if g16 := uint16(msg[55])<<8 | uint16(msg[56]); g16 != 0 {
		t.Errorf("expected G16=0, got %d", g16)
	}
	if b16 := uint16(msg[57])<<8 | uint16(msg[58]); b16 != 32896 {
		t.Errorf("expected B16=32896, got %d", b16)
	}

	if msg[59] != 3 {
		t.Errorf("expected channel ID 3, got %d", msg[59])
	}
	if g16 := uint16(msg[62])<<8 | uint16(msg[63]); g16 != 257 {
		t.Errorf("expected channel 3 G16=257, got %d", g16)
	}
}

func TestBuildHueStreamMessage_MissingColorsAreBlack(t *testing.T) {
	msg := BuildHueStreamMessage("12345678-1234-1234-1234-123456789012", []uint8{5, 6}, []color.RGB{{R: 9}}, 255)
	if len(msg) != 66 {
		t.Fatalf("expected length 66, got %d", len(msg))
	}
	if msg[11] != 255 {
		t.Errorf("expected sequence 255, got %d", msg[11])
	}
	for i := 60; i < 66; i++ {
		if msg[i] != 0 {
			t.Errorf("expected byte %d to be 0, got %d", i, msg[i])
		}
	}
}

func TestChannelColors_EqualShares(t *testing.T) {
	// 4 LEDs, 2 channels: LEDs 0-1 and 2-3.
	rgb := []byte{
		100, 0, 0,
		200, 0, 0,
		0, 10, 0,
		0, 31, 0,
	}
	got := channelColors(rgb, 2)
	want := []color.RGB{{R: 150}, {G: 20}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("channel %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestChannelColors_UnevenShares(t *testing.T) {
	// 5 LEDs, 2 channels: [0,2) and [2,5).
	rgb := []byte{
		10, 0, 0,
		20, 0, 0,
		0, 0, 30,
		0, 0, 60,
		0, 0, 90,
	}
	got := channelColors(rgb, 2)
	if got[0] != (color.RGB{R: 15}) {
		t.Errorf("channel 0: expected R=15, got %v", got[0])
	}
	if got[1] != (color.RGB{B: 60}) {
		t.Errorf("channel 1: expected B=60, got %v", got[1])
	}
}

func TestChannelColors_MoreChannelsThanLEDs(t *testing.T) {
	rgb := []byte{1, 2, 3, 4, 5, 6}
	got := channelColors(rgb, 4)
	want := []color.RGB{{R: 1, G: 2, B: 3}, {R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}, {R: 4, G: 5, B: 6}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("channel %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
