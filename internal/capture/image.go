package capture

import (
	"encoding/binary"
	"math/bits"

	"ambisync/internal/color"
)

// PixelFormat describes how native pixel values are stored and how they
// resolve to RGB.
type PixelFormat struct {
	BitsPerPixel int
	ByteOrder    binary.ByteOrder

	RedMask, GreenMask, BlueMask uint32

	// Palette resolves pixel values of indexed visuals. Masks are ignored
	// when it is set.
	Palette []color.RGB

	// Ramps map each masked subfield (red, green, blue) of a DirectColor
	// pixel through its own colormap ramp.
	Ramps [3][]uint8
}

var (
	// FormatRGB24 is packed R,G,B bytes as produced by ffmpeg and GStreamer.
	FormatRGB24 = PixelFormat{BitsPerPixel: 24, ByteOrder: binary.BigEndian, RedMask: 0xff0000, GreenMask: 0x00ff00, BlueMask: 0x0000ff}
	// FormatRGBA32 is the layout of image.RGBA.
	FormatRGBA32 = PixelFormat{BitsPerPixel: 32, ByteOrder: binary.BigEndian, RedMask: 0xff000000, GreenMask: 0x00ff0000, BlueMask: 0x0000ff00}
	// FormatBGRX32 is the usual 24-bit depth X11 ZPixmap on little-endian hosts.
	FormatBGRX32 = PixelFormat{BitsPerPixel: 32, ByteOrder: binary.LittleEndian, RedMask: 0xff0000, GreenMask: 0x00ff00, BlueMask: 0x0000ff}
	// FormatRGB565 is the 16-bit depth X11 ZPixmap on little-endian hosts.
	FormatRGB565 = PixelFormat{BitsPerPixel: 16, ByteOrder: binary.LittleEndian, RedMask: 0xf800, GreenMask: 0x07e0, BlueMask: 0x001f}
)

// Resolve converts a native pixel value to 8-bit RGB.
func (f PixelFormat) Resolve(pixel uint32) color.RGB {
	if f.Palette != nil {
		if int(pixel) < len(f.Palette) {
			return f.Palette[pixel]
		}
		return color.RGB{}
	}
	if f.Ramps[0] != nil {
		return color.RGB{
			R: lookup(f.Ramps[0], field(pixel, f.RedMask)),
			G: lookup(f.Ramps[1], field(pixel, f.GreenMask)),
			B: lookup(f.Ramps[2], field(pixel, f.BlueMask)),
		}
	}
	return color.RGB{
		R: channel(pixel, f.RedMask),
		G: channel(pixel, f.GreenMask),
		B: channel(pixel, f.BlueMask),
	}
}

// Compose packs subfield values into a pixel using the channel masks.
func (f PixelFormat) Compose(r, g, b uint32) uint32 {
	return place(r, f.RedMask) | place(g, f.GreenMask) | place(b, f.BlueMask)
}

func place(v, mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	return (v << bits.TrailingZeros32(mask)) & mask
}

func field(pixel, mask uint32) uint32 {
	if mask == 0 {
		return 0
	}
	return (pixel & mask) >> bits.TrailingZeros32(mask)
}

func lookup(ramp []uint8, v uint32) uint8 {
	if int(v) < len(ramp) {
		return ramp[v]
	}
	return 0
}

func channel(pixel, mask uint32) uint8 {
	if mask == 0 {
		return 0
	}
	shift := bits.TrailingZeros32(mask)
	v := (pixel & mask) >> shift
	top := mask >> shift
	if top == 0xff {
		return uint8(v)
	}
	return uint8(uint64(v) * 255 / uint64(top))
}

// Image is a captured pixel grid.
type Image struct {
	Width, Height int
	Stride        int
	Format        PixelFormat
	Data          []byte
}

// Native returns the raw pixel value at (x, y). Coordinates must lie inside
// the image.
func (im *Image) Native(x, y int) uint32 {
	bpp := im.Format.BitsPerPixel
	off := y*im.Stride + x*bpp/8
	order := im.Format.ByteOrder

	switch bpp {
	case 8:
		return uint32(im.Data[off])
	case 16:
		return uint32(order.Uint16(im.Data[off:]))
	case 24:
		b := im.Data[off : off+3]
		if order == binary.LittleEndian {
			return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		}
		return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	default:
		return order.Uint32(im.Data[off:])
	}
}

// PixelAt returns the color at (x, y). Coordinates must lie inside the image.
func (im *Image) PixelAt(x, y int) color.RGB {
	return im.Format.Resolve(im.Native(x, y))
}

// stride returns the row size of a width-pixel row padded to pad bits.
func stride(width, bitsPerPixel, pad int) int {
	if pad <= 0 {
		pad = 8
	}
	rowBits := width * bitsPerPixel
	return (rowBits + pad - 1) / pad * pad / 8
}
