package capture

import (
	"encoding/binary"
	"testing"

	"github.com/godbus/dbus/v5"

	"ambisync/internal/color"
)

func TestImage_BGRX32(t *testing.T) {
	im := &Image{Width: 2, Height: 1, Stride: 8, Format: FormatBGRX32,
		Data: []byte{0x30, 0x20, 0x10, 0, 0xff, 0, 0, 0}}
	if got := im.PixelAt(0, 0); got != (color.RGB{R: 0x10, G: 0x20, B: 0x30}) {
		t.Errorf("expected #102030, got %v", got)
	}
	if got := im.PixelAt(1, 0); got != (color.RGB{B: 0xff}) {
		t.Errorf("expected #0000ff, got %v", got)
	}
}

func TestImage_MSBFirst32(t *testing.T) {
	f := FormatBGRX32
	f.ByteOrder = binary.BigEndian
	im := &Image{Width: 1, Height: 1, Stride: 4, Format: f, Data: []byte{0, 0x10, 0x20, 0x30}}
	if got := im.PixelAt(0, 0); got != (color.RGB{R: 0x10, G: 0x20, B: 0x30}) {
		t.Errorf("expected #102030, got %v", got)
	}
}

func TestImage_RGB565(t *testing.T) {
	tests := []struct {
		pixel uint16
		want  color.RGB
	}{
		{0xf800, color.RGB{R: 255}},
		{0x07e0, color.RGB{G: 255}},
		{0x001f, color.RGB{B: 255}},
		{0xffff, color.RGB{R: 255, G: 255, B: 255}},
		{0x8410, color.RGB{R: 131, G: 129, B: 131}},
	}
	for _, tt := range tests {
		data := make([]byte, 2)
		binary.LittleEndian.PutUint16(data, tt.pixel)
		im := &Image{Width: 1, Height: 1, Stride: 2, Format: FormatRGB565, Data: data}
		if got := im.PixelAt(0, 0); got != tt.want {
			t.Errorf("pixel %#04x: expected %v, got %v", tt.pixel, tt.want, got)
		}
	}
}

func TestImage_RGB24(t *testing.T) {
	im := &Image{Width: 2, Height: 2, Stride: 6, Format: FormatRGB24,
		Data: []byte{
			1, 2, 3, 4, 5, 6,
			7, 8, 9, 10, 11, 12,
		}}
	if got := im.PixelAt(1, 1); got != (color.RGB{R: 10, G: 11, B: 12}) {
		t.Errorf("expected RGB{10, 11, 12}, got %+v", got)
	}
}

func TestImage_RGBA32(t *testing.T) {
	im := &Image{Width: 1, Height: 1, Stride: 4, Format: FormatRGBA32, Data: []byte{200, 100, 50, 255}}
	if got := im.PixelAt(0, 0); got != (color.RGB{R: 200, G: 100, B: 50}) {
		t.Errorf("expected RGB{200, 100, 50}, got %+v", got)
	}
}

func TestImage_Stride(t *testing.T) {
	// Row 0 padding must be skipped.
	im := &Image{Width: 1, Height: 2, Stride: 4, Format: FormatRGB24,
		Data: []byte{1, 2, 3, 0xee, 4, 5, 6, 0xee}}
	if got := im.PixelAt(0, 1); got != (color.RGB{R: 4, G: 5, B: 6}) {
		t.Errorf("expected RGB{4, 5, 6}, got %+v", got)
	}
}

func TestImage_Palette(t *testing.T) {
	f := PixelFormat{BitsPerPixel: 8, ByteOrder: binary.LittleEndian,
		Palette: []color.RGB{{}, {R: 9, G: 8, B: 7}}}
	im := &Image{Width: 3, Height: 1, Stride: 4, Format: f, Data: []byte{0, 1, 200, 0}}
	if got := im.PixelAt(1, 0); got != (color.RGB{R: 9, G: 8, B: 7}) {
		t.Errorf("expected palette entry 1, got %+v", got)
	}
	if got := im.PixelAt(2, 0); got != (color.RGB{}) {
		t.Errorf("expected black for index past palette, got %+v", got)
	}
}

func TestStride(t *testing.T) {
	tests := []struct {
		width, bpp, pad, want int
	}{
		{3, 24, 32, 12},
		{10, 16, 32, 20},
		{3, 8, 32, 4},
		{4, 32, 32, 16},
		{5, 24, 8, 15},
		{5, 24, 0, 15},
	}
	for _, tt := range tests {
		if got := stride(tt.width, tt.bpp, tt.pad); got != tt.want {
			t.Errorf("stride(%d, %d, %d): expected %d, got %d", tt.width, tt.bpp, tt.pad, tt.want, got)
		}
	}
}

func TestSnapshotFrameRelease(t *testing.T) {
	f := &snapshotFrame{img: &Image{Width: 1, Height: 1, Stride: 3, Format: FormatRGB24, Data: []byte{1, 2, 3}}}
	f.Release()
	if f.img.Data != nil {
		t.Error("expected snapshot data dropped")
	}
}

func TestSenderToToken(t *testing.T) {
	if got := senderToToken(":1.42"); got != "1_42" {
		t.Errorf("expected 1_42, got %q", got)
	}
}

func TestExtractNodeID(t *testing.T) {
	props := map[string]dbus.Variant{"size": dbus.MakeVariant([]int32{1920, 1080})}
	tests := []struct {
		name    string
		streams any
	}{
		{"nested", [][]any{{uint32(57), props}}},
		{"flat", []any{[]any{uint32(57), props}}},
	}
	for _, tt := range tests {
		resp := map[string]dbus.Variant{"streams": dbus.MakeVariant(tt.streams)}
		node, err := extractNodeID(resp)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if node != 57 {
			t.Errorf("%s: expected node 57, got %d", tt.name, node)
		}
	}

	if _, err := extractNodeID(map[string]dbus.Variant{}); err == nil {
		t.Error("expected error without streams")
	}
	empty := map[string]dbus.Variant{"streams": dbus.MakeVariant([][]any{})}
	if _, err := extractNodeID(empty); err == nil {
		t.Error("expected error for empty streams")
	}
}

func TestImage_DirectColorRamps(t *testing.T) {
	f := FormatBGRX32
	for i := range f.Ramps {
		f.Ramps[i] = make([]uint8, 256)
	}
	for v := 0; v < 256; v++ {
		f.Ramps[0][v] = uint8(255 - v)
		f.Ramps[1][v] = uint8(v / 2)
		f.Ramps[2][v] = uint8(v)
	}
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, f.Compose(10, 100, 200))
	im := &Image{Width: 1, Height: 1, Stride: 4, Format: f, Data: data}

	if got := im.PixelAt(0, 0); got != (color.RGB{R: 245, G: 50, B: 200}) {
		t.Errorf("expected colors through the ramps, got %+v", got)
	}
}

func TestImage_DirectColorShortRamp(t *testing.T) {
	f := FormatRGB565
	f.Ramps = [3][]uint8{{0, 100}, {0, 100}, {0, 100}}
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, uint16(f.Compose(1, 5, 1)))
	im := &Image{Width: 1, Height: 1, Stride: 2, Format: f, Data: data}

	if got := im.PixelAt(0, 0); got != (color.RGB{R: 100, B: 100}) {
		t.Errorf("expected green past its ramp to be 0, got %+v", got)
	}
}

func TestPixelFormat_Compose(t *testing.T) {
	if got := FormatRGB565.Compose(31, 63, 31); got != 0xffff {
		t.Errorf("expected 0xffff, got %#x", got)
	}
	if got := FormatBGRX32.Compose(0x12, 0x34, 0x56); got != 0x123456 {
		t.Errorf("expected 0x123456, got %#x", got)
	}
}
