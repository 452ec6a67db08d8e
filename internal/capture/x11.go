package capture

import (
	"encoding/binary"
	"fmt"

	"github.com/jezek/xgb"
	xshm "github.com/jezek/xgb/shm"
	"github.com/jezek/xgb/xproto"

	"ambisync/internal/color"
)

const allPlanes = 0xffffffff

// X11 captures the root window of the default screen of an X server.
type X11 struct {
	conn   *xgb.Conn
	root   xproto.Window
	format PixelFormat
	pad    int
}

// OpenX11 connects to display ("" uses $DISPLAY) and resolves the root
// window's pixel format.
func OpenX11(display string) (*X11, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connecting to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	var pixmap *xproto.Format
	for i := range setup.PixmapFormats {
		if setup.PixmapFormats[i].Depth == screen.RootDepth {
			pixmap = &setup.PixmapFormats[i]
			break
		}
	}
	if pixmap == nil {
		conn.Close()
		return nil, fmt.Errorf("no pixmap format for depth %d", screen.RootDepth)
	}

	visual := rootVisual(screen)
	if visual == nil {
		conn.Close()
		return nil, fmt.Errorf("root visual %d not found", screen.RootVisual)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if setup.ImageByteOrder == xproto.ImageOrderMSBFirst {
		order = binary.BigEndian
	}

	format := PixelFormat{
		BitsPerPixel: int(pixmap.BitsPerPixel),
		ByteOrder:    order,
	}
	switch visual.Class {
	case xproto.VisualClassTrueColor:
		format.RedMask = visual.RedMask
		format.GreenMask = visual.GreenMask
		format.BlueMask = visual.BlueMask
	case xproto.VisualClassDirectColor:
		format.RedMask = visual.RedMask
		format.GreenMask = visual.GreenMask
		format.BlueMask = visual.BlueMask
		ramps, err := queryRamps(conn, screen.DefaultColormap, format, int(visual.ColormapEntries))
		if err != nil {
			conn.Close()
			return nil, err
		}
		format.Ramps = ramps
	default:
		palette, err := queryPalette(conn, screen.DefaultColormap, int(visual.ColormapEntries))
		if err != nil {
			conn.Close()
			return nil, err
		}
		format.Palette = palette
	}

	switch format.BitsPerPixel {
	case 8, 16, 24, 32:
	default:
		conn.Close()
		return nil, fmt.Errorf("unsupported %d bits per pixel", format.BitsPerPixel)
	}

	return &X11{
		conn:   conn,
		root:   screen.Root,
		format: format,
		pad:    int(pixmap.ScanlinePad),
	}, nil
}

func rootVisual(screen *xproto.ScreenInfo) *xproto.VisualInfo {
	for _, depth := range screen.AllowedDepths {
		if depth.Depth != screen.RootDepth {
			continue
		}
		for i := range depth.Visuals {
			if depth.Visuals[i].VisualId == screen.RootVisual {
				return &depth.Visuals[i]
			}
		}
	}
	return nil
}

// queryPalette reads the default colormap once so indexed pixels resolve
// without a round trip per sample.
func queryPalette(conn *xgb.Conn, cmap xproto.Colormap, entries int) ([]color.RGB, error) {
	pixels := make([]uint32, entries)
	for i := range pixels {
		pixels[i] = uint32(i)
	}
	reply, err := xproto.QueryColors(conn, cmap, pixels).Reply()
	if err != nil {
		return nil, fmt.Errorf("querying colormap: %w", err)
	}
	palette := make([]color.RGB, len(reply.Colors))
	for i, c := range reply.Colors {
		palette[i] = color.RGB{R: uint8(c.Red >> 8), G: uint8(c.Green >> 8), B: uint8(c.Blue >> 8)}
	}
	return palette, nil
}

// queryRamps reads the per-channel colormap ramps of a DirectColor visual.
// Entry v of each ramp is the channel value for subfield value v.
func queryRamps(conn *xgb.Conn, cmap xproto.Colormap, f PixelFormat, entries int) ([3][]uint8, error) {
	pixels := make([]uint32, entries)
	for v := range pixels {
		pixels[v] = f.Compose(uint32(v), uint32(v), uint32(v))
	}
	reply, err := xproto.QueryColors(conn, cmap, pixels).Reply()
	if err != nil {
		return [3][]uint8{}, fmt.Errorf("querying colormap: %w", err)
	}
	var ramps [3][]uint8
	for i := range ramps {
		ramps[i] = make([]uint8, len(reply.Colors))
	}
	for v, c := range reply.Colors {
		ramps[0][v] = uint8(c.Red >> 8)
		ramps[1][v] = uint8(c.Green >> 8)
		ramps[2][v] = uint8(c.Blue >> 8)
	}
	return ramps, nil
}

// RootSize returns the size of the default screen of display ("" uses
// $DISPLAY).
func RootSize(display string) (int, int, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return 0, 0, fmt.Errorf("connecting to X server: %w", err)
	}
	defer conn.Close()
	screen := xproto.Setup(conn).DefaultScreen(conn)
	return int(screen.WidthInPixels), int(screen.HeightInPixels), nil
}

func (x *X11) Name() string { return "x11" }

// Format returns the native pixel format of the root window.
func (x *X11) Format() PixelFormat { return x.format }

func (x *X11) QueryShm() error {
	if err := xshm.Init(x.conn); err != nil {
		return fmt.Errorf("%w: %v", ErrNotSupported, err)
	}
	if _, err := xshm.QueryVersion(x.conn).Reply(); err != nil {
		return fmt.Errorf("MIT-SHM query version: %w", err)
	}
	return nil
}

func (x *X11) ImageLayout(width, height int) (Layout, error) {
	if err := checkSize(width, height); err != nil {
		return Layout{}, err
	}
	return Layout{
		Width:  width,
		Height: height,
		Stride: stride(width, x.format.BitsPerPixel, x.pad),
		Format: x.format,
	}, nil
}

func (x *X11) AttachShm(shmID int) (uint32, error) {
	seg, err := xshm.NewSegId(x.conn)
	if err != nil {
		return 0, fmt.Errorf("allocating segment id: %w", err)
	}
	if err := xshm.AttachChecked(x.conn, seg, uint32(shmID), false).Check(); err != nil {
		return 0, fmt.Errorf("attaching segment: %w", err)
	}
	return uint32(seg), nil
}

func (x *X11) DetachShm(seg uint32) error {
	return xshm.DetachChecked(x.conn, xshm.Seg(seg)).Check()
}

func (x *X11) GetShmImage(seg uint32, l Layout) error {
	_, err := xshm.GetImage(x.conn, xproto.Drawable(x.root),
		0, 0, uint16(l.Width), uint16(l.Height),
		allPlanes, xproto.ImageFormatZPixmap, xshm.Seg(seg), 0).Reply()
	return err
}

func (x *X11) GetImage(width, height int) (*Image, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	reply, err := xproto.GetImage(x.conn, xproto.ImageFormatZPixmap, xproto.Drawable(x.root),
		0, 0, uint16(width), uint16(height), allPlanes).Reply()
	if err != nil {
		return nil, err
	}
	rowBytes := stride(width, x.format.BitsPerPixel, x.pad)
	if len(reply.Data) < rowBytes*height {
		return nil, fmt.Errorf("image reply holds %d bytes, want %d", len(reply.Data), rowBytes*height)
	}
	return &Image{
		Width:  width,
		Height: height,
		Stride: rowBytes,
		Format: x.format,
		Data:   reply.Data,
	}, nil
}

func (x *X11) Close() error {
	x.conn.Close()
	return nil
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 || width > 0xffff || height > 0xffff {
		return fmt.Errorf("invalid capture size %dx%d", width, height)
	}
	return nil
}
